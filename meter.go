package magi

import "time"

// Meter observes pipeline events for monitoring/logging.
type Meter interface {
	// OnAttempt is called before a strategy is tried.
	OnAttempt(event AttemptEvent)

	// OnResult is called when a strategy returns.
	OnResult(event ResultEvent)
}

// AttemptEvent describes a strategy about to be tried.
type AttemptEvent struct {
	RequestID   string
	Source      Source
	Provider    string
	AttemptNum  int
	EstimatedIn int64
}

// ResultEvent describes the outcome of a strategy attempt.
type ResultEvent struct {
	RequestID string
	Source    Source
	Provider  string
	Model     string
	Success   bool
	Duration  time.Duration
	Usage     Usage
	Error     error
}
