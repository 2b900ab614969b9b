package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrijs2005/pastekeeper/internal/ident"
	"github.com/dmitrijs2005/pastekeeper/internal/metrics"
	"github.com/dmitrijs2005/pastekeeper/internal/render"
	"github.com/dmitrijs2005/pastekeeper/internal/store"
)

// optionalInt64 is a flag.Value that records whether it was set.
type optionalInt64 struct {
	v *int64
}

func (o *optionalInt64) String() string {
	if o.v == nil {
		return ""
	}
	return fmt.Sprint(*o.v)
}

func (o *optionalInt64) Set(s string) error {
	var v int64
	if _, err := fmt.Sscan(s, &v); err != nil {
		return err
	}
	o.v = &v
	return nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *App) put(ctx context.Context, args []string) error {
	fs := newFlagSet("put")
	expires := fs.Uint("e", 0, "lifetime in seconds, 0 never expires")
	burn := fs.Bool("b", false, "burn after reading")
	ext := fs.String("x", "", "preferred format extension")
	file := fs.String("f", "", "read text from file, - for stdin")
	uid := &optionalInt64{}
	fs.Var(uid, "u", "owner uid")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: put: %v", ErrUsage, err)
	}

	text, err := a.readText(*file, fs.Args())
	if err != nil {
		return err
	}

	e := store.InsertEntry{
		Text:             text,
		Extension:        extension(*ext, *file),
		BurnAfterReading: *burn,
		UID:              uid.v,
	}
	if *expires > 0 {
		secs := uint32(min(*expires, uint(^uint32(0))))
		e.Expires = &secs
	}

	key, err := a.service.Create(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, key.String())
	return nil
}

// extension picks the preferred format: the explicit one, else the suffix of
// the source file name.
func extension(explicit, file string) string {
	if explicit != "" || file == "" || file == "-" {
		return explicit
	}
	return strings.TrimPrefix(filepath.Ext(file), ".")
}

func (a *App) readText(file string, rest []string) (string, error) {
	switch {
	case len(rest) > 0:
		return strings.Join(rest, " "), nil
	case file != "" && file != "-":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("%w: put: %v", ErrUsage, err)
		}
		return string(b), nil
	case a.interactive:
		return "", fmt.Errorf("%w: put: text required in shell", ErrUsage)
	default:
		b, err := io.ReadAll(a.in)
		if err != nil {
			return "", fmt.Errorf("%w: put: %v", ErrUsage, err)
		}
		return string(b), nil
	}
}

func (a *App) get(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: get <id>[.<ext>]", ErrUsage)
	}
	key, err := render.ParseKey(args[0])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	html, err := a.service.View(ctx, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, html)
	return nil
}

func (a *App) raw(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: raw <id>", ErrUsage)
	}
	id, err := ident.Parse(args[0])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	e, err := a.service.Raw(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, e.Text)
	if !strings.HasSuffix(e.Text, "\n") {
		fmt.Fprintln(a.out)
	}
	if e.Burned {
		a.logger.Info(ctx, "entry burned", "id", id.String())
	}
	return nil
}

func (a *App) delete(ctx context.Context, args []string) error {
	fs := newFlagSet("delete")
	uid := &optionalInt64{}
	fs.Var(uid, "u", "owner uid")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: delete: %v", ErrUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: delete -u <uid> <id>", ErrUsage)
	}
	id, err := ident.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	if err := a.service.Delete(ctx, id, uid.v); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "deleted", id.String())
	return nil
}

func (a *App) uid(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: uid takes no arguments", ErrUsage)
	}
	n, err := a.service.NewOwner(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, n)
	return nil
}

func (a *App) stats(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: stats takes no arguments", ErrUsage)
	}
	return metrics.Dump(a.out, prometheus.DefaultGatherer)
}
