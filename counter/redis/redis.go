// Package redis provides a Redis-backed CounterStore.
//
// Counters are plain string keys driven by INCR, so an existing key such
// as "portfolio_visits" created by another client keeps counting.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/magiconsole/magi"
)

// Store is a Redis-backed CounterStore.
type Store struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ magi.CounterStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithKeyPrefix sets a prefix prepended to every counter name (default none).
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// New creates a Redis-backed CounterStore.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Incr(ctx context.Context, name string) (int64, error) {
	v, err := s.client.Incr(ctx, s.keyPrefix+name).Result()
	if err != nil {
		return 0, fmt.Errorf("magi/redis: incr %s: %w", name, err)
	}
	return v, nil
}

func (s *Store) Get(ctx context.Context, name string) (int64, error) {
	v, err := s.client.Get(ctx, s.keyPrefix+name).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("magi/redis: get %s: %w", name, err)
	}
	return v, nil
}
