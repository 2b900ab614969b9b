// Package dbx holds the small database/sql helpers shared by the store and
// the migrator: a DBTX interface satisfied by both *sql.DB and *sql.Tx, a
// transaction helper, and Conn, which serializes every statement issued
// against a single SQLite connection.
package dbx

import (
	"context"
	"database/sql"
	"sync"
)

// DBTX is the subset of database/sql used by the store.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with it, then commits on success or
// rolls back on error or panic. Panics are rethrown.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// Conn owns a *sql.DB and lets at most one caller use it at a time. The lock
// is held only while fn runs, so callers should keep non-database work
// (compression, rendering) outside of fn.
type Conn struct {
	mu sync.Mutex
	db *sql.DB
}

// NewConn wraps db. The pool is pinned to one connection: an in-memory
// SQLite database lives and dies with its connection.
func NewConn(db *sql.DB) *Conn {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	return &Conn{db: db}
}

// DB exposes the underlying handle for work that must run before the Conn is
// shared, such as schema migrations.
func (c *Conn) DB() *sql.DB { return c.db }

// Do runs fn with exclusive use of the connection.
func (c *Conn) Do(ctx context.Context, fn func(ctx context.Context, db DBTX) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(ctx, c.db)
}

// Tx is Do inside a transaction.
func (c *Conn) Tx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return WithTx(ctx, c.db, nil, fn)
}

// Close closes the underlying database.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}
