package meter

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/magiconsole/magi"
)

// Result label values.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeSkipped   = "skipped"
	OutcomeTimeout   = "timeout"
	OutcomeEmpty     = "empty"
	OutcomeRateLimit = "rate_limited"
	OutcomeAuth      = "auth_failed"
)

// PromMeter exports pipeline events as Prometheus metrics.
type PromMeter struct {
	attempts *prometheus.CounterVec
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
}

var _ magi.Meter = (*PromMeter)(nil)

// NewPromMeter registers the pipeline collectors on reg.
func NewPromMeter(reg prometheus.Registerer) *PromMeter {
	f := promauto.With(reg)
	return &PromMeter{
		attempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "magi_pipeline_attempts_total",
				Help: "Total number of strategy attempts",
			},
			[]string{"source", "provider"},
		),
		results: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "magi_pipeline_results_total",
				Help: "Total number of strategy results by outcome",
			},
			[]string{"source", "provider", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "magi_pipeline_attempt_duration_seconds",
				Help:    "Duration of strategy attempts in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"source", "provider"},
		),
		tokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "magi_pipeline_tokens_total",
				Help: "Provider-reported token usage",
			},
			[]string{"provider", "kind"},
		),
	}
}

func (m *PromMeter) OnAttempt(e magi.AttemptEvent) {
	m.attempts.WithLabelValues(e.Source.String(), e.Provider).Inc()
}

func (m *PromMeter) OnResult(e magi.ResultEvent) {
	outcome := Outcome(e)
	m.results.WithLabelValues(e.Source.String(), e.Provider, outcome).Inc()

	if outcome == OutcomeSkipped || e.Source == magi.SourceLocal {
		return
	}
	m.duration.WithLabelValues(e.Source.String(), e.Provider).Observe(e.Duration.Seconds())

	if e.Success {
		m.tokens.WithLabelValues(e.Provider, "prompt").Add(float64(e.Usage.PromptTokens))
		m.tokens.WithLabelValues(e.Provider, "completion").Add(float64(e.Usage.CompletionTokens))
	}
}

// Outcome classifies a result for the outcome label.
func Outcome(e magi.ResultEvent) string {
	switch {
	case e.Success:
		return OutcomeSuccess
	case errors.Is(e.Error, magi.ErrStrategyUnhealthy):
		return OutcomeSkipped
	case errors.Is(e.Error, magi.ErrRateLimited):
		return OutcomeRateLimit
	case errors.Is(e.Error, magi.ErrAuthFailed):
		return OutcomeAuth
	case errors.Is(e.Error, magi.ErrEmptyResponse):
		return OutcomeEmpty
	case errors.Is(e.Error, magi.ErrProviderTimeout):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}
