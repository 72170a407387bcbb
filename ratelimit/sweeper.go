package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepInterval is how often idle buckets are evicted.
const DefaultSweepInterval = 5 * time.Minute

// SweepFunc evicts idle buckets and reports how many were removed.
type SweepFunc func(ctx context.Context) (int, error)

// MemorySweep adapts MemoryGate.Sweep to a SweepFunc.
func MemorySweep(g *MemoryGate) SweepFunc {
	return func(context.Context) (int, error) {
		return g.Sweep(g.now()), nil
	}
}

// Sweeper runs a SweepFunc on a fixed interval. Admission checks only
// wait on the gate lock for the duration of one map scan.
type Sweeper struct {
	sweep    SweepFunc
	interval time.Duration
	cron     *cron.Cron
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper; a non-positive interval means
// DefaultSweepInterval.
func NewSweeper(sweep SweepFunc, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		sweep:    sweep,
		interval: interval,
		cron:     cron.New(),
		logger:   logger.With(zap.String("component", "ratelimit.sweeper")),
	}
}

// Start schedules the sweep. The job stops when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	schedule := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("ratelimit: schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("sweeper stopped")
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) {
	n, err := s.sweep(ctx)
	if err != nil {
		s.logger.Warn("sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Debug("swept idle buckets", zap.Int("evicted", n))
	}
}
