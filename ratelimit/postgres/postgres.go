// Package postgres provides a PostgreSQL-backed rate-limit Gate.
//
// Buckets live in one table; each admission check locks the identity's
// row inside a transaction, so concurrent checks serialize per identity.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/magiconsole/magi"
	"github.com/magiconsole/magi/ratelimit"
)

// Gate is a PostgreSQL-backed token-bucket Gate.
type Gate struct {
	pool        *pgxpool.Pool
	tablePrefix string
	maxTokens   int
	window      time.Duration
	staleAfter  time.Duration
	now         func() time.Time
}

var _ magi.Gate = (*Gate)(nil)

// Option configures Gate.
type Option func(*Gate)

// WithTablePrefix sets the table name prefix (default "magi_").
func WithTablePrefix(prefix string) Option {
	return func(g *Gate) { g.tablePrefix = prefix }
}

// WithMaxTokens sets the bucket capacity.
func WithMaxTokens(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithWindow sets the refill window.
func WithWindow(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithStaleAfter sets the idle age after which Sweep deletes full rows.
func WithStaleAfter(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.staleAfter = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New creates a PostgreSQL-backed Gate.
func New(pool *pgxpool.Pool, opts ...Option) *Gate {
	g := &Gate{
		pool:        pool,
		tablePrefix: "magi_",
		maxTokens:   ratelimit.DefaultMaxTokens,
		window:      ratelimit.DefaultWindow,
		staleAfter:  ratelimit.DefaultStaleAfter,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) table() string { return g.tablePrefix + "rate_limits" }

// EnsureSchema creates the bucket table if it doesn't exist.
func (g *Gate) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			identity TEXT PRIMARY KEY,
			tokens INTEGER NOT NULL,
			last_refill TIMESTAMPTZ NOT NULL
		);
	`, g.table())
	if _, err := g.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("magi/postgres: ensure schema: %w", err)
	}
	return nil
}

// Allow consumes one token for identity.
func (g *Gate) Allow(ctx context.Context, identity string) (bool, error) {
	now := g.now().UTC()

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("magi/postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// First sight: insert with one token already spent.
	tag, err := tx.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (identity, tokens, last_refill) VALUES ($1, $2, $3)
			ON CONFLICT (identity) DO NOTHING`, g.table()),
		identity, g.maxTokens-1, now,
	)
	if err != nil {
		return false, fmt.Errorf("magi/postgres: insert bucket: %w", err)
	}
	if tag.RowsAffected() == 1 {
		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("magi/postgres: commit: %w", err)
		}
		return true, nil
	}

	var e ratelimit.Entry
	err = tx.QueryRow(ctx,
		fmt.Sprintf(`SELECT tokens, last_refill FROM %s WHERE identity = $1 FOR UPDATE`, g.table()),
		identity,
	).Scan(&e.Tokens, &e.LastRefill)
	if errors.Is(err, pgx.ErrNoRows) {
		// Swept between the insert and the select; treat as first sight.
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("magi/postgres: select bucket: %w", err)
	}

	if windows := int64(now.Sub(e.LastRefill) / g.window); windows > 0 {
		e.Tokens = g.maxTokens
		e.LastRefill = now
	}

	admitted := e.Tokens > 0
	if admitted {
		e.Tokens--
	}

	_, err = tx.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET tokens = $1, last_refill = $2 WHERE identity = $3`, g.table()),
		e.Tokens, e.LastRefill, identity,
	)
	if err != nil {
		return false, fmt.Errorf("magi/postgres: update bucket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("magi/postgres: commit: %w", err)
	}
	return admitted, nil
}

// Sweep deletes full buckets idle for longer than the staleness window.
// A bucket with a refill due counts as full.
func (g *Gate) Sweep(ctx context.Context) (int, error) {
	now := g.now().UTC()
	tag, err := g.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s
			WHERE last_refill < $1 AND (tokens = $2 OR last_refill <= $3)`, g.table()),
		now.Add(-g.staleAfter), g.maxTokens, now.Add(-g.window),
	)
	if err != nil {
		return 0, fmt.Errorf("magi/postgres: sweep: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Lookup returns identity's stored bucket.
func (g *Gate) Lookup(ctx context.Context, identity string) (ratelimit.Entry, bool, error) {
	var e ratelimit.Entry
	err := g.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT tokens, last_refill FROM %s WHERE identity = $1`, g.table()),
		identity,
	).Scan(&e.Tokens, &e.LastRefill)
	if errors.Is(err, pgx.ErrNoRows) {
		return ratelimit.Entry{}, false, nil
	}
	if err != nil {
		return ratelimit.Entry{}, false, fmt.Errorf("magi/postgres: lookup: %w", err)
	}
	return e, true, nil
}
