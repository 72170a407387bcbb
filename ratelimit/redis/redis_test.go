//go:build integration

package redis_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	ratelimitredis "github.com/magiconsole/magi/ratelimit/redis"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestGate(t *testing.T, client *goredis.Client, c *clock) *ratelimitredis.Gate {
	t.Helper()
	// Use a unique prefix per test to avoid collisions.
	prefix := "test:" + t.Name() + ":"
	g := ratelimitredis.New(client,
		ratelimitredis.WithKeyPrefix(prefix),
		ratelimitredis.WithClock(c.Now),
	)
	t.Cleanup(func() {
		ctx := context.Background()
		iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	})
	return g
}

func TestAllowSequence(t *testing.T) {
	client := newTestClient(t)
	c := &clock{now: time.Now()}
	g := newTestGate(t, client, c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := g.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !ok {
			t.Fatalf("request %d rejected", i+1)
		}
	}

	ok, err := g.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok {
		t.Fatal("4th request within the window admitted")
	}

	c.Advance(time.Minute)
	ok, err = g.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !ok {
		t.Fatal("request after a full window rejected")
	}

	e, found, err := g.Lookup(ctx, "1.2.3.4")
	if err != nil || !found {
		t.Fatalf("lookup: found=%v err=%v", found, err)
	}
	if e.Tokens != 2 {
		t.Fatalf("expected tokens=2 after refill, got %d", e.Tokens)
	}
}

func TestRejectKeepsLastRefill(t *testing.T) {
	client := newTestClient(t)
	c := &clock{now: time.Now()}
	g := newTestGate(t, client, c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		g.Allow(ctx, "a")
	}
	before, _, _ := g.Lookup(ctx, "a")

	c.Advance(30 * time.Second)
	if ok, _ := g.Allow(ctx, "a"); ok {
		t.Fatal("expected reject")
	}

	after, _, _ := g.Lookup(ctx, "a")
	if !after.LastRefill.Equal(before.LastRefill) {
		t.Fatalf("last_refill moved on reject: %v -> %v", before.LastRefill, after.LastRefill)
	}
}

func TestKeyExpires(t *testing.T) {
	client := newTestClient(t)
	c := &clock{now: time.Now()}
	g := newTestGate(t, client, c)
	ctx := context.Background()

	g.Allow(ctx, "a")
	ttl, err := client.PTTL(ctx, "test:"+t.Name()+":a").Result()
	if err != nil {
		t.Fatalf("pttl: %v", err)
	}
	if ttl <= 0 || ttl > 5*time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}

func TestConcurrentAllow(t *testing.T) {
	client := newTestClient(t)
	c := &clock{now: time.Now()}
	g := newTestGate(t, client, c)
	ctx := context.Background()

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := g.Allow(ctx, "shared"); err == nil && ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != 3 {
		t.Fatalf("expected 3 admitted, got %d", admitted.Load())
	}
}
