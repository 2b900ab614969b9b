package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/pastekeeper/internal/blocking"
	"github.com/dmitrijs2005/pastekeeper/internal/common"
	"github.com/dmitrijs2005/pastekeeper/internal/config"
	"github.com/dmitrijs2005/pastekeeper/internal/ident"
	"github.com/dmitrijs2005/pastekeeper/internal/logging"
	"github.com/dmitrijs2005/pastekeeper/internal/pastes"
	"github.com/dmitrijs2005/pastekeeper/internal/render"
	"github.com/dmitrijs2005/pastekeeper/internal/store"
)

// ErrUsage is returned for malformed command lines.
var ErrUsage = errors.New("usage error")

// Service is the subset of *pastes.Service driven by the command line.
type Service interface {
	Create(ctx context.Context, e store.InsertEntry) (render.Key, error)
	View(ctx context.Context, key render.Key) (string, error)
	Raw(ctx context.Context, id ident.ID) (store.ReadEntry, error)
	Delete(ctx context.Context, id ident.ID, requester *int64) error
	NewOwner(ctx context.Context) (int64, error)
}

type App struct {
	service     Service
	logger      logging.Logger
	in          io.Reader
	out         io.Writer
	interactive bool
	close       func() error
}

// NewApp opens the store described by cfg and wires the render cache and
// the pastes service on top of it.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	pool := blocking.NewPool(cfg.BlockingWorkers)

	opts := store.Options{Mode: store.File, Path: cfg.DatabasePath, Logger: logger, Pool: pool}
	if cfg.InMemory() {
		opts = store.Options{Mode: store.InMemory, Logger: logger, Pool: pool}
	}

	st, err := store.Open(ctx, opts)
	if err != nil {
		return nil, err
	}

	cache, err := render.NewCache(cfg.CacheSize, st, pool, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	logger.Debug(ctx, "store opened", "mode", opts.Mode.String(), "cache_size", cfg.CacheSize, "workers", pool.Size())

	svc := pastes.NewService(st, cache, render.Plain, cfg.MaxExpiration, logger)
	return &App{service: svc, logger: logger, in: in, out: out, close: st.Close}, nil
}

// Close releases the underlying store.
func (a *App) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

// Exec runs a single command. Each invocation is logged under its own
// command_id.
func (a *App) Exec(ctx context.Context, cmd string, args []string) error {
	log := a.logger.With("command", cmd, "command_id", uuid.NewString())
	log.Debug(ctx, "command started", "args", len(args))

	err := a.dispatch(ctx, cmd, args)
	if err != nil {
		log.Debug(ctx, "command failed", "error", err)
	}
	return err
}

func (a *App) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "put":
		return a.put(ctx, args)
	case "get", "view":
		return a.get(ctx, args)
	case "raw":
		return a.raw(ctx, args)
	case "delete", "rm":
		return a.delete(ctx, args)
	case "uid":
		return a.uid(ctx, args)
	case "stats":
		return a.stats(args)
	case "shell":
		if a.interactive {
			return fmt.Errorf("%w: already in shell", ErrUsage)
		}
		return a.Shell(ctx)
	case "help":
		a.help()
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

// Shell reads commands line by line from the app input until EOF or "exit".
// Errors are reported and do not end the session.
func (a *App) Shell(ctx context.Context) error {
	a.interactive = true
	defer func() { a.interactive = false }()

	scanner := bufio.NewScanner(a.in)
	for {
		fmt.Fprint(a.out, "pastekeeper> ")
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if parts[0] == "exit" || parts[0] == "quit" {
			return nil
		}
		if err := a.Exec(ctx, parts[0], parts[1:]); err != nil {
			a.Report(err)
		}
	}
	return scanner.Err()
}

// Report prints the caller-safe form of err.
func (a *App) Report(err error) {
	if errors.Is(err, ErrUsage) {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(a.out, "error: %v\n", common.Public(err))
}

func (a *App) help() {
	fmt.Fprintln(a.out, `commands:
  put [-e seconds] [-b] [-u uid] [-x ext] [-f file] [text...]
  get <id>[.<ext>]
  raw <id>
  delete -u <uid> <id>
  uid
  stats
  shell`)
}
