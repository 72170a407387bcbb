//go:build integration

package redis_test

import (
	"context"
	"os"
	"sync"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	counterredis "github.com/magiconsole/magi/counter/redis"
)

func newTestStore(t *testing.T) *counterredis.Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis not available at %s: %v", addr, err)
	}
	prefix := "test:" + t.Name() + ":"
	t.Cleanup(func() {
		iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		client.Close()
	})
	return counterredis.New(client, counterredis.WithKeyPrefix(prefix))
}

func TestIncrAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.Get(ctx, "portfolio_visits")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected 0 for missing key, got %d", v)
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
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Incr(ctx, "n")
		}()
	}
	wg.Wait()

	v, _ := s.Get(ctx, "n")
	if v != 50 {
		t.Fatalf("expected 50, got %d", v)
	}
}
