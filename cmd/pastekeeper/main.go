package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/pastekeeper/internal/cli"
	"github.com/dmitrijs2005/pastekeeper/internal/config"
	"github.com/dmitrijs2005/pastekeeper/internal/flagx"
	"github.com/dmitrijs2005/pastekeeper/internal/logging"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	global, cmd, rest := flagx.SplitCommand(args, config.Flags)

	cfg, err := config.LoadConfig(global)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	logger := logging.NewConsole(level)

	app, err := cli.NewApp(ctx, cfg, logger, os.Stdin, os.Stdout)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn(ctx, "close failed", "error", err)
		}
	}()

	if cmd == "" {
		cmd = "shell"
	}
	if err := app.Exec(ctx, cmd, rest); err != nil {
		app.Report(err)
		return 1
	}
	return 0
}
