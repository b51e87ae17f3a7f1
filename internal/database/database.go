package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// ErrStoreNotFound is returned when a store file that must already exist is missing.
var ErrStoreNotFound = errors.New("store not found")

// Open opens a SQLite database at the given DSN and configures it for
// writing: WAL mode, busy timeout of 5s, single connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite to avoid locking issues.
	db.SetMaxOpenConns(1)

	if err := execPragmas(db,
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenReadOnly opens an existing store for reading. Writes through the
// returned handle fail. A missing file yields ErrStoreNotFound rather than a
// new empty database.
func OpenReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, path)
		}
		return nil, fmt.Errorf("stat store: %w", err)
	}

	// Pragmas in the DSN are applied to every pooled connection, so
	// concurrent readers all see query_only.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Recreate deletes the store at path, including WAL side files, and returns a
// freshly opened store with the schema applied.
func Recreate(ctx context.Context, path string) (*sql.DB, error) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove %s: %w", p, err)
		}
	}

	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := ApplySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ApplySchema creates all tables and indexes inside a single transaction.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	return ExecScript(ctx, db, Schema)
}

// ExecScript runs every statement of a semicolon-terminated script in one transaction.
func ExecScript(ctx context.Context, db *sql.DB, script string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin script: %w", err)
	}

	for _, stmt := range SplitStatements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec script: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit script: %w", err)
	}
	return nil
}

func execPragmas(db *sql.DB, pragmas ...string) error {
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("exec %q: %w", p, err)
		}
	}
	return nil
}
