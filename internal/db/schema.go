package db

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order; the schema version stored in the
// database's user_version is the number of migrations applied so far. Never
// edit an existing entry, only append.
var migrations = []string{
	`CREATE TABLE messages (
		id           TEXT PRIMARY KEY,
		sender       TEXT NOT NULL,
		address      TEXT NOT NULL,
		group_key    TEXT NOT NULL,
		brand_domain TEXT,
		subject      TEXT NOT NULL DEFAULT '',
		snippet      TEXT NOT NULL DEFAULT '',
		received_at  INTEGER NOT NULL
	) STRICT`,
	`CREATE INDEX messages_group_key ON messages (group_key, received_at DESC)`,
	`CREATE INDEX messages_received_at ON messages (received_at)`,
}

// migrate brings the schema up to date inside a single transaction, and
// returns the versions before and after.
func migrate(ctx context.Context, db *sql.DB) (from, to int, retErr error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if retErr != nil {
			tx.Rollback()
		}
	}()

	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&from); err != nil {
		return 0, 0, fmt.Errorf("getting schema version: %w", err)
	}
	to = len(migrations)
	switch {
	case from == to:
		return from, to, tx.Commit()
	case from > to:
		return from, to, fmt.Errorf("database version (%d) is newer than this binary supports (%d)", from, to)
	}

	for i := from; i < to; i++ {
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			return from, to, fmt.Errorf("migrating from %d to %d: %w", i, i+1, err)
		}
	}

	// PRAGMAs don't take bound parameters; to is a trusted integer.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, to)); err != nil {
		return from, to, fmt.Errorf("setting schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return from, to, fmt.Errorf("committing migrations: %w", err)
	}
	return from, to, nil
}
