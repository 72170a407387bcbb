package magi

import "context"

// Gate admits or rejects mutating requests per caller identity.
type Gate interface {
	// Allow reports whether identity may proceed. Shared backends may
	// return an error when their store is unreachable.
	Allow(ctx context.Context, identity string) (bool, error)
}
