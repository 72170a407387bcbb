// Package redis provides a Redis-backed rate-limit Gate shared by every
// instance of the service.
//
// Each identity is a Redis hash holding tokens and last_refill. The
// admission check runs as one Lua script, so concurrent requests for the
// same identity cannot push tokens outside [0, max]. Keys expire after
// the staleness window, which takes the place of the in-memory sweep: a
// key idle for longer than a window is full anyway.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/magiconsole/magi"
	"github.com/magiconsole/magi/ratelimit"
)

// Gate is a Redis-backed token-bucket Gate.
type Gate struct {
	client     goredis.Cmdable
	keyPrefix  string
	maxTokens  int
	window     time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

var _ magi.Gate = (*Gate)(nil)

// Option configures Gate.
type Option func(*Gate)

// WithKeyPrefix sets the Redis key prefix (default "magi:ratelimit:").
func WithKeyPrefix(prefix string) Option {
	return func(g *Gate) { g.keyPrefix = prefix }
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

// WithStaleAfter sets the key TTL. Values shorter than the window are
// raised to the window.
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

// New creates a Redis-backed Gate.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Gate {
	g := &Gate{
		client:     client,
		keyPrefix:  "magi:ratelimit:",
		maxTokens:  ratelimit.DefaultMaxTokens,
		window:     ratelimit.DefaultWindow,
		staleAfter: ratelimit.DefaultStaleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.staleAfter < g.window {
		g.staleAfter = g.window
	}
	return g
}

func (g *Gate) key(identity string) string {
	return g.keyPrefix + identity
}

// allowScript performs one admission check.
// KEYS[1] = bucket hash key
// ARGV[1] = max tokens
// ARGV[2] = window (ms)
// ARGV[3] = now (unix ms)
// ARGV[4] = ttl (ms)
//
// Returns 1 when admitted, 0 when rejected.
var allowScript = goredis.NewScript(`
local key = KEYS[1]
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tokens = redis.call("HGET", key, "tokens")
if not tokens then
    redis.call("HSET", key, "tokens", max - 1, "last_refill", now)
    redis.call("PEXPIRE", key, ttl)
    return 1
end
tokens = tonumber(tokens)

local last = tonumber(redis.call("HGET", key, "last_refill") or "0")
local windows = math.floor((now - last) / window)
if windows > 0 then
    tokens = math.min(max, tokens + windows * max)
    redis.call("HSET", key, "tokens", tokens, "last_refill", now)
end

if tokens > 0 then
    redis.call("HSET", key, "tokens", tokens - 1)
    redis.call("PEXPIRE", key, ttl)
    return 1
end
return 0
`)

// Allow consumes one token for identity.
func (g *Gate) Allow(ctx context.Context, identity string) (bool, error) {
	result, err := allowScript.Run(ctx, g.client,
		[]string{g.key(identity)},
		g.maxTokens, g.window.Milliseconds(), g.now().UnixMilli(), g.staleAfter.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("magi/redis: allow: %w", err)
	}
	return result == 1, nil
}

// Lookup returns identity's current bucket as stored, without refilling.
func (g *Gate) Lookup(ctx context.Context, identity string) (ratelimit.Entry, bool, error) {
	vals, err := g.client.HMGet(ctx, g.key(identity), "tokens", "last_refill").Result()
	if err != nil {
		return ratelimit.Entry{}, false, fmt.Errorf("magi/redis: lookup: %w", err)
	}
	if vals[0] == nil {
		return ratelimit.Entry{}, false, nil
	}

	var tokens int
	var lastMs int64
	if _, err := fmt.Sscan(vals[0].(string), &tokens); err != nil {
		return ratelimit.Entry{}, false, fmt.Errorf("magi/redis: lookup tokens: %w", err)
	}
	if s, ok := vals[1].(string); ok {
		if _, err := fmt.Sscan(s, &lastMs); err != nil {
			return ratelimit.Entry{}, false, fmt.Errorf("magi/redis: lookup last_refill: %w", err)
		}
	}
	return ratelimit.Entry{Tokens: tokens, LastRefill: time.UnixMilli(lastMs)}, true, nil
}
