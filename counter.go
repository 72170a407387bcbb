package magi

import "context"

// CounterStore keeps named monotonically increasing counters.
type CounterStore interface {
	// Incr increments the counter and returns the new value.
	Incr(ctx context.Context, name string) (int64, error)

	// Get returns the current value; a missing counter reads as zero.
	Get(ctx context.Context, name string) (int64, error)
}
