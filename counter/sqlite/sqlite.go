// Package sqlite provides a single-file CounterStore for one-instance
// deployments, using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/magiconsole/magi"
)

const defaultBusyTimeout = 5 * time.Second

// Store is a SQLite-backed CounterStore.
type Store struct {
	db *sql.DB
}

var _ magi.CounterStore = (*Store)(nil)

// Open opens (or creates) the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("magi/sqlite: db path cannot be empty")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		path, defaultBusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("magi/sqlite: open: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS counters (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("magi/sqlite: init schema: %w", err)
	}
	return nil
}

func (s *Store) Incr(ctx context.Context, name string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counters (name, value, updated_at) VALUES (?, 1, ?)
		ON CONFLICT (name) DO UPDATE SET value = value + 1, updated_at = excluded.updated_at
		RETURNING value`,
		name, time.Now().Unix(),
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("magi/sqlite: incr %s: %w", name, err)
	}
	return v, nil
}

func (s *Store) Get(ctx context.Context, name string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("magi/sqlite: get %s: %w", name, err)
	}
	return v, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
