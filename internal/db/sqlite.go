package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"

	"modernc.org/sqlite"
)

// pragmas are applied, in order, to every new connection.
var pragmas = []string{
	`PRAGMA busy_timeout=10000;`,
	`PRAGMA journal_mode=WAL;`,
	`PRAGMA synchronous=NORMAL;`,
	`PRAGMA foreign_keys=ON;`,
}

// SQLiteDB holds separate connection pools for writes and reads, so that
// readers never queue behind the single writer.
type SQLiteDB struct {
	sql   *sql.DB
	sqlRO *sql.DB
}

func NewSQLiteDB(ctx context.Context, path string) (*SQLiteDB, error) {
	// The write pool is opened first so that it creates the file and
	// switches it to WAL mode before any read-only connection exists.
	rw, err := openPool(ctx, "file:"+path, 1)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	ro, err := openPool(ctx, "file:"+path+"?mode=ro", max(runtime.GOMAXPROCS(0), 2))
	if err != nil {
		rw.Close()
		return nil, fmt.Errorf("opening read-only database: %w", err)
	}
	return &SQLiteDB{sql: rw, sqlRO: ro}, nil
}

// Close closes both pools, checkpointing the WAL on the way out.
func (db *SQLiteDB) Close() error {
	roErr := db.sqlRO.Close()
	db.sql.Exec(`PRAGMA wal_checkpoint(TRUNCATE);`)
	return errors.Join(roErr, db.sql.Close())
}

// BeginWriteTx starts a transaction on the write pool.
func (db *SQLiteDB) BeginWriteTx(ctx context.Context) (*sql.Tx, error) {
	return db.sql.BeginTx(ctx, nil)
}

// BeginReadTx starts a read-only transaction on the read pool.
func (db *SQLiteDB) BeginReadTx(ctx context.Context) (*sql.Tx, error) {
	return db.sqlRO.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
}

func openPool(ctx context.Context, uri string, conns int) (_ *sql.DB, retErr error) {
	pool, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite database: %w", err)
	}
	defer func() {
		if retErr != nil {
			pool.Close()
		}
	}()

	pool.Driver().(*sqlite.Driver).RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, _ string) error {
		for _, stmt := range pragmas {
			if _, err := conn.ExecContext(ctx, stmt, nil); err != nil {
				return fmt.Errorf("executing %q: %w", stmt, err)
			}
		}
		return nil
	})

	pool.SetMaxOpenConns(conns)
	pool.SetMaxIdleConns(conns)
	pool.SetConnMaxLifetime(0)
	pool.SetConnMaxIdleTime(0)

	// Open one connection eagerly so that configuration errors surface
	// here rather than on the first query.
	if err := pool.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	return pool, nil
}
