package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/pastekeeper/internal/flagx"
)

// Flags lists the global flags that take a value, including -c/-config.
var Flags = []string{"-d", "-n", "-x", "-w", "-l", "-c", "-config"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-d string     database path
//	-n int        render cache size
//	-x duration   maximum entry lifetime (e.g. "24h")
//	-w int        blocking pool size
//	-l string     log level
//
// Other arguments are ignored so subcommands can define their own flags.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-n", "-x", "-w", "-l"})

	fs := flag.NewFlagSet("pastekeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.DatabasePath, "d", config.DatabasePath, "database path")
	fs.IntVar(&config.CacheSize, "n", config.CacheSize, "render cache size")
	fs.DurationVar(&config.MaxExpiration, "x", config.MaxExpiration, "maximum entry lifetime")
	fs.IntVar(&config.BlockingWorkers, "w", config.BlockingWorkers, "blocking pool size")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	return fs.Parse(args)
}
