package magi

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Pipeline answers chat queries by walking an ordered strategy chain and
// falling back to a local responder when every external strategy fails.
type Pipeline struct {
	strategies []Strategy
	fallback   *LocalResponder
	profiles   ProfileSource
	meter      Meter
	health     *HealthTracker
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMeter sets the meter.
func WithMeter(m Meter) Option {
	return func(p *Pipeline) { p.meter = m }
}

// WithHealthTracker sets the health tracker.
func WithHealthTracker(h *HealthTracker) Option {
	return func(p *Pipeline) { p.health = h }
}

// WithProfiles sets the profile the instruction and the local responder
// are built from.
func WithProfiles(ps ProfileSource) Option {
	return func(p *Pipeline) { p.profiles = ps }
}

// WithFallback replaces the terminal local responder.
func WithFallback(l *LocalResponder) Option {
	return func(p *Pipeline) { p.fallback = l }
}

// NewPipeline creates a Pipeline trying strategies in the given order.
// Nil strategies are ignored, so callers can pass optional providers
// without branching.
func NewPipeline(strategies []Strategy, opts ...Option) *Pipeline {
	p := &Pipeline{health: NewHealthTracker()}
	for _, s := range strategies {
		if s != nil {
			p.strategies = append(p.strategies, s)
		}
	}

	for _, opt := range opts {
		opt(p)
	}

	// Apply defaults after options.
	if p.profiles == nil {
		p.profiles = StaticProfile(DefaultProfile())
	}
	if p.fallback == nil {
		p.fallback = NewLocalResponder(p.profiles)
	}
	if p.meter == nil {
		p.meter = &noopMeter{}
	}

	return p
}

// Strategies returns the configured chain, without the terminal fallback.
func (p *Pipeline) Strategies() []Strategy {
	out := make([]Strategy, len(p.strategies))
	copy(out, p.strategies)
	return out
}

// Respond produces a reply for q. It never fails: every strategy error is
// recorded and demoted to the next link, and the local responder always
// answers.
func (p *Pipeline) Respond(ctx context.Context, q Query) Reply {
	requestID := uuid.New().String()
	prompt := Prompt{
		Query:       q,
		Instruction: BuildInstruction(p.profiles.Profile(), q.IsFirstTurn),
	}
	estimated := EstimateTokens([]Message{
		{Role: RoleSystem, Content: prompt.Instruction},
		{Role: RoleUser, Content: q.Text},
	})

	attempts := 0
	for _, s := range p.strategies {
		if !s.Enabled() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if p.health != nil && p.health.GetHealth(s.Source()) == HealthUnhealthy {
			p.meter.OnResult(ResultEvent{
				RequestID: requestID,
				Source:    s.Source(),
				Provider:  s.Name(),
				Error:     ErrStrategyUnhealthy,
			})
			continue
		}

		attempts++
		p.meter.OnAttempt(AttemptEvent{
			RequestID:   requestID,
			Source:      s.Source(),
			Provider:    s.Name(),
			AttemptNum:  attempts,
			EstimatedIn: estimated,
		})

		start := time.Now()
		c, err := s.Attempt(ctx, prompt)
		duration := time.Since(start)

		if err == nil && c.Text == "" {
			err = ErrEmptyResponse
		}
		if err != nil {
			if p.health != nil {
				p.health.RecordFailure(s.Source())
			}
			p.meter.OnResult(ResultEvent{
				RequestID: requestID,
				Source:    s.Source(),
				Provider:  s.Name(),
				Model:     c.Model,
				Duration:  duration,
				Error: &StrategyError{
					Err:      err,
					Source:   s.Source(),
					Provider: s.Name(),
					Model:    c.Model,
				},
			})
			continue
		}

		if p.health != nil {
			p.health.RecordSuccess(s.Source())
		}
		p.meter.OnResult(ResultEvent{
			RequestID: requestID,
			Source:    s.Source(),
			Provider:  s.Name(),
			Model:     c.Model,
			Success:   true,
			Duration:  duration,
			Usage:     c.Usage,
		})

		return Reply{Text: c.Text, Source: s.Source(), Attempts: attempts}
	}

	attempts++
	text := p.fallback.Respond(q)
	p.meter.OnResult(ResultEvent{
		RequestID: requestID,
		Source:    SourceLocal,
		Provider:  p.fallback.Name(),
		Success:   true,
	})
	return Reply{Text: text, Source: SourceLocal, Attempts: attempts}
}

// noopMeter is a meter that does nothing.
type noopMeter struct{}

func (m *noopMeter) OnAttempt(AttemptEvent) {}
func (m *noopMeter) OnResult(ResultEvent)   {}
