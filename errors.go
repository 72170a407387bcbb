package magi

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrRateLimited         = errors.New("magi: rate limited by provider")
	ErrAuthFailed          = errors.New("magi: authentication failed")
	ErrInvalidRequest      = errors.New("magi: invalid request")
	ErrProviderUnavailable = errors.New("magi: provider unavailable")
	ErrProviderTimeout     = errors.New("magi: provider timeout")
	ErrEmptyResponse       = errors.New("magi: empty response")
	ErrStrategyDisabled    = errors.New("magi: strategy disabled")
	ErrStrategyUnhealthy   = errors.New("magi: strategy unhealthy")
)

// StrategyError wraps a failed attempt with the strategy that made it.
type StrategyError struct {
	Err      error
	Source   Source
	Provider string
	Model    string
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("magi: source=%s provider=%s model=%s: %v",
		e.Source, e.Provider, e.Model, e.Err)
}

func (e *StrategyError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if retrying the same provider cannot succeed
// without operator action (bad key, malformed request).
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrInvalidRequest)
}

// IsRetryable returns true if the provider may succeed on a later request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrProviderTimeout) ||
		errors.Is(err, ErrEmptyResponse)
}
