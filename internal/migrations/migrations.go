// Package migrations brings an entries database to the current schema.
//
// Steps 1, 2, 3 and 5 are plain SQL files embedded below. Step 4 is a Go
// migration: it adds the compressed data column and rewrites every legacy
// plain-text row into it, so that step 5 can drop the text column without
// losing content. goose runs each step in its own transaction and records
// progress in goose_db_version, so a failed run can simply be retried.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/pastekeeper/internal/codec"
	"github.com/dmitrijs2005/pastekeeper/internal/logging"
)

//go:embed *.sql
var Migrations embed.FS

// LatestVersion is the schema version Run migrates to.
const LatestVersion int64 = 5

const compressVersion int64 = 4

// newProvider is a seam for testing goose.NewProvider.
var newProvider = goose.NewProvider

// NewProvider returns a goose provider holding every step, without running it.
func NewProvider(db *sql.DB, logger logging.Logger) (*goose.Provider, error) {
	return newProvider(goose.DialectSQLite3, db, Migrations,
		goose.WithGoMigrations(
			goose.NewGoMigration(compressVersion, &goose.GoFunc{RunTx: compressEntries(logger)}, nil),
		),
	)
}

// Run applies all pending steps. Running against an up-to-date database is a
// no-op.
func Run(ctx context.Context, db *sql.DB, logger logging.Logger) error {
	p, err := NewProvider(db, logger)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}

	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	for _, r := range results {
		logger.Info(ctx, "applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

type legacyRow struct {
	id   int64
	text string
}

// compressEntries adds the data column and fills it with the compressed form
// of each row's text.
func compressEntries(logger logging.Logger) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `ALTER TABLE entries ADD COLUMN data BLOB`); err != nil {
			return fmt.Errorf("add data column: %w", err)
		}

		rows, err := tx.QueryContext(ctx, `SELECT id, text FROM entries`)
		if err != nil {
			return fmt.Errorf("select legacy rows: %w", err)
		}

		var legacy []legacyRow
		for rows.Next() {
			var r legacyRow
			if err := rows.Scan(&r.id, &r.text); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scan legacy row: %w", err)
			}
			legacy = append(legacy, r)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}
		if err := rows.Close(); err != nil {
			return err
		}

		logger.Debug(ctx, "compressing legacy rows", "rows", len(legacy))

		for _, r := range legacy {
			data, err := codec.Compress(r.text)
			if err != nil {
				return fmt.Errorf("compress row %d: %w", r.id, err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE entries SET data = ? WHERE id = ?`, data, r.id); err != nil {
				return fmt.Errorf("update row %d: %w", r.id, err)
			}
		}
		return nil
	}
}
