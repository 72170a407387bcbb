// Package ratelimit provides token-bucket admission gates for mutating
// endpoints.
//
// Buckets refill in whole windows: once at least one full window has
// elapsed since the last refill the bucket is topped up to MaxTokens.
// There is no gradual trickle.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/magiconsole/magi"
)

// Defaults for the contact form gate.
const (
	DefaultMaxTokens  = 3
	DefaultWindow     = 60 * time.Second
	DefaultStaleAfter = 5 * time.Minute
)

// Entry is the state of one caller's bucket.
type Entry struct {
	Tokens     int
	LastRefill time.Time
}

// MemoryGate is an in-process token-bucket Gate keyed by caller identity.
type MemoryGate struct {
	mu      sync.Mutex
	entries map[string]*Entry

	maxTokens  int
	window     time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

var _ magi.Gate = (*MemoryGate)(nil)

// Option configures a MemoryGate.
type Option func(*MemoryGate)

// WithMaxTokens sets the bucket capacity.
func WithMaxTokens(n int) Option {
	return func(g *MemoryGate) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithWindow sets the refill window.
func WithWindow(d time.Duration) Option {
	return func(g *MemoryGate) {
		if d > 0 {
			g.window = d
		}
	}
}

// WithStaleAfter sets how long a full bucket must sit idle before Sweep
// may evict it.
func WithStaleAfter(d time.Duration) Option {
	return func(g *MemoryGate) {
		if d > 0 {
			g.staleAfter = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *MemoryGate) { g.now = now }
}

// NewMemoryGate creates a gate with the default limits.
func NewMemoryGate(opts ...Option) *MemoryGate {
	g := &MemoryGate{
		entries:    make(map[string]*Entry),
		maxTokens:  DefaultMaxTokens,
		window:     DefaultWindow,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allow consumes one token for identity. It never returns an error.
func (g *MemoryGate) Allow(_ context.Context, identity string) (bool, error) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[identity]
	if !ok {
		g.entries[identity] = &Entry{Tokens: g.maxTokens - 1, LastRefill: now}
		return true, nil
	}

	g.refill(e, now)

	if e.Tokens > 0 {
		e.Tokens--
		return true, nil
	}
	return false, nil
}

// refill tops e up when at least one whole window has elapsed. A clock
// that steps backwards yields zero windows, so LastRefill never decreases.
func (g *MemoryGate) refill(e *Entry, now time.Time) {
	windows := int64(now.Sub(e.LastRefill) / g.window)
	if windows <= 0 {
		return
	}
	tokens := int64(e.Tokens) + windows*int64(g.maxTokens)
	if tokens > int64(g.maxTokens) {
		tokens = int64(g.maxTokens)
	}
	e.Tokens = int(tokens)
	e.LastRefill = now
}

// Sweep evicts entries that are full and whose last refill is older than
// the staleness window. Fullness counts a refill that is due but not yet
// applied, since Allow always spends a token and never leaves a stored
// bucket at capacity. Partially depleted entries are kept regardless of
// age. It returns the number of evicted entries.
func (g *MemoryGate) Sweep(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	evicted := 0
	for id, e := range g.entries {
		if g.effectiveTokens(e, now) == g.maxTokens && now.Sub(e.LastRefill) > g.staleAfter {
			delete(g.entries, id)
			evicted++
		}
	}
	return evicted
}

func (g *MemoryGate) effectiveTokens(e *Entry, now time.Time) int {
	if now.Sub(e.LastRefill) >= g.window {
		return g.maxTokens
	}
	return e.Tokens
}

// Lookup returns a copy of identity's entry.
func (g *MemoryGate) Lookup(identity string) (Entry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[identity]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of tracked identities.
func (g *MemoryGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// MaxTokens returns the bucket capacity.
func (g *MemoryGate) MaxTokens() int { return g.maxTokens }
