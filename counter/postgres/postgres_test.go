//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	counterpg "github.com/magiconsole/magi/counter/postgres"
)

func newTestStore(t *testing.T) *counterpg.Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "postgres://localhost:5432/magi_test?sslmode=disable"
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("postgres not available: %v", err)
	}

	prefix := fmt.Sprintf("test_%s_", strings.ToLower(t.Name()))
	s := counterpg.New(pool, counterpg.WithTablePrefix(prefix))
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() {
		pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %scounters", prefix))
		pool.Close()
	})
	return s
}

func TestIncrAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if v, err := s.Get(ctx, "portfolio_visits"); err != nil || v != 0 {
		t.Fatalf("expected 0 for missing row, got %d (err=%v)", v, err)
	}

	for i := int64(1); i <= 3; i++ {
		v, err := s.Incr(ctx, "portfolio_visits")
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if v != i {
			t.Fatalf("expected %d, got %d", i, v)
		}
	}
}

func TestConcurrentIncr(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Incr(ctx, "n"); err != nil {
				t.Errorf("incr: %v", err)
			}
		}()
	}
	wg.Wait()

	if v, _ := s.Get(ctx, "n"); v != 20 {
		t.Fatalf("expected 20, got %d", v)
	}
}
