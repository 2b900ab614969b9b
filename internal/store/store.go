package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/dmitrijs2005/pastekeeper/internal/blocking"
	"github.com/dmitrijs2005/pastekeeper/internal/codec"
	"github.com/dmitrijs2005/pastekeeper/internal/common"
	"github.com/dmitrijs2005/pastekeeper/internal/dbx"
	"github.com/dmitrijs2005/pastekeeper/internal/filex"
	"github.com/dmitrijs2005/pastekeeper/internal/ident"
	"github.com/dmitrijs2005/pastekeeper/internal/logging"
	"github.com/dmitrijs2005/pastekeeper/internal/metrics"
	"github.com/dmitrijs2005/pastekeeper/internal/migrations"
)

// Mode selects the backing storage of a Store.
type Mode int

const (
	// InMemory keeps everything in an ephemeral database that is lost on Close.
	InMemory Mode = iota
	// File keeps the database in the file named by Options.Path.
	File
)

// Options configure Open.
type Options struct {
	Mode   Mode
	Path   string
	Logger logging.Logger
	// Pool runs compression work. A nil Pool gets a default-sized one.
	Pool *blocking.Pool
}

// InsertEntry is an uncompressed entry to be inserted.
type InsertEntry struct {
	// Text is the content.
	Text string
	// Extension is the preferred output format. It shapes the render key
	// handed back to clients and is not persisted.
	Extension string
	// Expires is the lifetime in seconds from now; nil never expires.
	Expires *uint32
	// BurnAfterReading deletes the entry on its first read.
	BurnAfterReading bool
	// UID is the owner of the entry, if any.
	UID *int64
}

// ReadEntry is an entry as returned by Get.
type ReadEntry struct {
	Text string
	UID  *int64
	// Burned reports that this read consumed a burn-after-reading entry.
	Burned bool
}

// Store is the entry database.
type Store struct {
	conn   *dbx.Conn
	pool   *blocking.Pool
	logger logging.Logger
}

// runMigrations is a seam for testing migration failures.
var runMigrations = migrations.Run

// Open opens the database selected by opts and migrates it to the latest
// schema. Every failure wraps common.ErrorStoreInit.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dsn, err := opts.dsn()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorStoreInit, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With("component", "store")

	if opts.Mode == File {
		if _, err := filex.EnsureParentDir(opts.Path); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrorStoreInit, err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", common.ErrorStoreInit, err)
	}
	conn := dbx.NewConn(db)

	if err := db.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: ping: %w", common.ErrorStoreInit, err)
	}

	if err := runMigrations(ctx, conn.DB(), logger); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrorStoreInit, err)
	}

	logger.Debug(ctx, "store opened", "mode", opts.Mode.String(), "path", opts.Path)
	return newStore(conn, opts.Pool, logger), nil
}

func newStore(conn *dbx.Conn, pool *blocking.Pool, logger logging.Logger) *Store {
	if pool == nil {
		pool = blocking.NewPool(0)
	}
	return &Store{conn: conn, pool: pool, logger: logger}
}

func (o Options) dsn() (string, error) {
	switch o.Mode {
	case InMemory:
		return ":memory:", nil
	case File:
		if o.Path == "" {
			return "", errors.New("file mode requires a path")
		}
		if strings.ContainsAny(o.Path, "?#%") {
			return "", fmt.Errorf("path %q contains a character reserved in sqlite URIs (?, # or %%)", o.Path)
		}
		return "file:" + o.Path + "?_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("unknown mode %d", o.Mode)
	}
}

func (m Mode) String() string {
	switch m {
	case InMemory:
		return "memory"
	case File:
		return "file"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Close releases the database. An in-memory database is discarded.
func (s *Store) Close() error {
	return s.conn.Close()
}

func ioError(op string, id ident.ID, err error) error {
	return fmt.Errorf("%w: %s %s: %w", common.ErrorStoreIO, op, id, err)
}

const (
	insertQuery = `INSERT INTO entries (id, uid, data, burn_after_reading) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`
	insertExpiringQuery = `INSERT INTO entries (id, uid, data, burn_after_reading, expires) VALUES (?, ?, ?, ?, datetime('now', ?))
		ON CONFLICT(id) DO NOTHING`
)

// Insert compresses e and stores it under id. An existing entry with the
// same id is left untouched and common.ErrorDuplicateID is returned.
func (s *Store) Insert(ctx context.Context, id ident.ID, e InsertEntry) error {
	data, err := blocking.Do(ctx, s.pool, func() ([]byte, error) {
		return codec.Compress(e.Text)
	})
	if err != nil {
		return err
	}

	uid := sql.NullInt64{}
	if e.UID != nil {
		uid = sql.NullInt64{Int64: *e.UID, Valid: true}
	}
	burn := sql.NullBool{Bool: e.BurnAfterReading, Valid: e.BurnAfterReading}

	err = s.conn.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var (
			res sql.Result
			err error
		)
		if e.Expires == nil {
			res, err = db.ExecContext(ctx, insertQuery, int64(id), uid, data, burn)
		} else {
			res, err = db.ExecContext(ctx, insertExpiringQuery, int64(id), uid, data, burn,
				fmt.Sprintf("+%d seconds", *e.Expires))
		}
		if err != nil {
			return ioError("insert", id, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return ioError("insert", id, err)
		}
		if n == 0 {
			return fmt.Errorf("insert %s: %w", id, common.ErrorDuplicateID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.EntriesInsertedTotal.Inc()
	metrics.CompressedBytesTotal.Add(float64(len(data)))
	return nil
}

// Get returns the entry stored under id. Absent and expired entries yield
// common.ErrorNotFound; an expired entry is deleted on the way. A
// burn-after-reading entry is deleted and still returned to this caller.
//
// The burn delete happens before decompression, so if decompression fails or
// ctx is cancelled while waiting for a pool slot, the entry is gone and its
// content is returned to no one.
func (s *Store) Get(ctx context.Context, id ident.ID) (ReadEntry, error) {
	var (
		data []byte
		uid  sql.NullInt64
		burn sql.NullBool
	)

	err := s.conn.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var expired sql.NullBool
		row := db.QueryRowContext(ctx,
			`SELECT data, burn_after_reading, uid, expires < datetime('now') FROM entries WHERE id = ?`, int64(id))
		if err := row.Scan(&data, &burn, &uid, &expired); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("get %s: %w", id, common.ErrorNotFound)
			}
			return ioError("get", id, err)
		}

		if expired.Bool {
			s.retire(ctx, db, id, metrics.Expired)
			return fmt.Errorf("get %s: %w", id, common.ErrorNotFound)
		}
		if burn.Bool {
			s.retire(ctx, db, id, metrics.Burned)
		}
		return nil
	})
	if err != nil {
		return ReadEntry{}, err
	}

	text, err := blocking.Do(ctx, s.pool, func() (string, error) {
		return codec.Decompress(data)
	})
	if err != nil {
		return ReadEntry{}, fmt.Errorf("get %s: %w", id, err)
	}

	return ReadEntry{Text: text, UID: nullableInt64(uid), Burned: burn.Bool}, nil
}

// GetOwner returns the owner of id without decompressing or consuming it.
// Expiry is enforced as in Get; burn-after-reading is not triggered.
func (s *Store) GetOwner(ctx context.Context, id ident.ID) (*int64, error) {
	var uid sql.NullInt64

	err := s.conn.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		var expired sql.NullBool
		row := db.QueryRowContext(ctx,
			`SELECT uid, expires < datetime('now') FROM entries WHERE id = ?`, int64(id))
		if err := row.Scan(&uid, &expired); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("get owner %s: %w", id, common.ErrorNotFound)
			}
			return ioError("get owner", id, err)
		}

		if expired.Bool {
			s.retire(ctx, db, id, metrics.Expired)
			return fmt.Errorf("get owner %s: %w", id, common.ErrorNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return nullableInt64(uid), nil
}

// Delete removes id. Deleting an absent entry is not an error.
func (s *Store) Delete(ctx context.Context, id ident.ID) error {
	return s.conn.Do(ctx, func(ctx context.Context, db dbx.DBTX) error {
		if _, err := db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, int64(id)); err != nil {
			return ioError("delete", id, err)
		}
		return nil
	})
}

// NextSequence increments the owner counter and returns its new value.
func (s *Store) NextSequence(ctx context.Context) (int64, error) {
	var n int64
	err := s.conn.Tx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return tx.QueryRowContext(ctx, `UPDATE uids SET n = n + 1 WHERE id = 0 RETURNING n`).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: next sequence: %w", common.ErrorStoreIO, err)
	}
	return n, nil
}

// retire deletes an entry that a read found expired or burned. The read has
// already been decided, so a failure is only logged. The delete is detached
// from ctx cancellation so an aborted reader cannot leave the entry behind.
func (s *Store) retire(ctx context.Context, db dbx.DBTX, id ident.ID, reason string) {
	if _, err := db.ExecContext(context.WithoutCancel(ctx), `DELETE FROM entries WHERE id = ?`, int64(id)); err != nil {
		metrics.CleanupFailuresTotal.Inc()
		s.logger.Warn(ctx, "failed to delete entry on read", "id", id.String(), "reason", reason, "error", err)
		return
	}
	metrics.EntriesRemovedOnReadTotal.WithLabelValues(reason).Inc()
}

func nullableInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
