package magi

import (
	"sync"
	"time"
)

const (
	healthFailureThreshold = 3
	healthFailureWindow    = 5 * time.Minute
	healthUnhealthyPeriod  = 30 * time.Second
)

// HealthState describes the health of a strategy.
type HealthState int

const (
	HealthHealthy HealthState = iota
	HealthUnhealthy
	HealthHalfOpen
)

func (h HealthState) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthUnhealthy:
		return "unhealthy"
	case HealthHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// HealthTracker tracks per-strategy health using a circuit breaker pattern.
// A strategy that keeps failing is skipped for a short period so that
// visitors reach the next strategy without waiting on its timeout.
type HealthTracker struct {
	mu      sync.Mutex
	now     func() time.Time
	sources map[Source]*sourceHealth
}

type sourceHealth struct {
	state       HealthState
	failures    []time.Time // sliding window of failure timestamps
	unhealthyAt time.Time
}

// NewHealthTracker creates a new HealthTracker.
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{
		now:     time.Now,
		sources: make(map[Source]*sourceHealth),
	}
}

// GetHealth returns the current health state for a strategy.
func (h *HealthTracker) GetHealth(src Source) HealthState {
	h.mu.Lock()
	defer h.mu.Unlock()

	sh, ok := h.sources[src]
	if !ok {
		return HealthHealthy
	}

	// Unhealthy period elapsed: let one request probe the strategy.
	if sh.state == HealthUnhealthy && h.now().Sub(sh.unhealthyAt) >= healthUnhealthyPeriod {
		sh.state = HealthHalfOpen
	}

	return sh.state
}

// RecordSuccess records a successful attempt.
func (h *HealthTracker) RecordSuccess(src Source) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sh := h.getOrCreate(src)
	sh.state = HealthHealthy
	sh.failures = sh.failures[:0]
}

// RecordFailure records a failed attempt.
func (h *HealthTracker) RecordFailure(src Source) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sh := h.getOrCreate(src)
	if sh.state == HealthUnhealthy {
		return
	}

	now := h.now()

	// A failed probe reopens the breaker immediately.
	if sh.state == HealthHalfOpen {
		sh.state = HealthUnhealthy
		sh.unhealthyAt = now
		return
	}

	cutoff := now.Add(-healthFailureWindow)
	valid := sh.failures[:0]
	for _, t := range sh.failures {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	sh.failures = append(valid, now)

	if len(sh.failures) >= healthFailureThreshold {
		sh.state = HealthUnhealthy
		sh.unhealthyAt = now
	}
}

func (h *HealthTracker) getOrCreate(src Source) *sourceHealth {
	sh, ok := h.sources[src]
	if !ok {
		sh = &sourceHealth{state: HealthHealthy}
		h.sources[src] = sh
	}
	return sh
}
