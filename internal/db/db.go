// Package db contains the message metadata database for mailident.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB is the main database interface.
type DB struct {
	sql    *SQLiteDB
	closed atomic.Bool
	log    *slog.Logger
}

// NewDB opens (creating if necessary) the database at path and brings its
// schema up to date.
func NewDB(log *slog.Logger, path string) (*DB, error) {
	if log == nil {
		log = slog.Default()
	}
	ctx := context.Background()
	sqlDB, err := NewSQLiteDB(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	from, to, err := migrate(ctx, sqlDB.sql)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("applying migrations: %w", err)
	}
	if from != to {
		log.Info("migrated database schema", "path", path, "from", from, "to", to)
	}

	return &DB{sql: sqlDB, log: log}, nil
}

// Close closes the database. It is safe to call more than once.
func (db *DB) Close() error {
	if db.closed.CompareAndSwap(false, true) {
		return db.sql.Close()
	}
	return nil
}

// Tx is a wrapper around a SQL transaction that the query helpers hang off.
type Tx struct {
	*sql.Tx
}

// ReadTx starts a new read-only transaction.
func (db *DB) ReadTx(ctx context.Context) (*Tx, error) {
	tx, err := db.sql.BeginReadTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return &Tx{tx}, nil
}

// Tx starts a new write transaction.
func (db *DB) Tx(ctx context.Context) (*Tx, error) {
	tx, err := db.sql.BeginWriteTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return &Tx{tx}, nil
}

// Read runs fn in a read-only transaction.
func (db *DB) Read(ctx context.Context, fn func(*Tx) error) error {
	tx, err := db.ReadTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}

// Write runs fn in a write transaction, committing if fn returns nil.
func (db *DB) Write(ctx context.Context, fn func(*Tx) error) error {
	tx, err := db.Tx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
