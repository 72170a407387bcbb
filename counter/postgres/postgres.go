// Package postgres provides a PostgreSQL-backed CounterStore.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/magiconsole/magi"
)

// Store is a PostgreSQL-backed CounterStore.
type Store struct {
	pool        *pgxpool.Pool
	tablePrefix string
}

var _ magi.CounterStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithTablePrefix sets the table name prefix (default "magi_").
func WithTablePrefix(prefix string) Option {
	return func(s *Store) { s.tablePrefix = prefix }
}

// New creates a PostgreSQL-backed CounterStore.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		tablePrefix: "magi_",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) table() string { return s.tablePrefix + "counters" }

// EnsureSchema creates the counters table if it doesn't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			value BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`, s.table())
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("magi/postgres: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Incr(ctx context.Context, name string) (int64, error) {
	var v int64
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, value) VALUES ($1, 1)
			ON CONFLICT (name) DO UPDATE SET value = %[1]s.value + 1, updated_at = now()
			RETURNING value`, s.table()),
		name,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("magi/postgres: incr %s: %w", name, err)
	}
	return v, nil
}

func (s *Store) Get(ctx context.Context, name string) (int64, error) {
	var v int64
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT value FROM %s WHERE name = $1`, s.table()),
		name,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("magi/postgres: get %s: %w", name, err)
	}
	return v, nil
}
