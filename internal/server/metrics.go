package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Contact outcomes.
const (
	contactSent        = "sent"
	contactBot         = "bot"
	contactInvalid     = "invalid"
	contactBadRequest  = "bad_request"
	contactRateLimited = "rate_limited"
	contactFailed      = "failed"
)

// Metrics holds the endpoint-level collectors.
type Metrics struct {
	gateDecisions  *prometheus.CounterVec
	contact        *prometheus.CounterVec
	chatReplies    *prometheus.CounterVec
	visitFallbacks prometheus.Counter
}

// NewMetrics registers the endpoint collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gateDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "magi_gate_decisions_total",
				Help: "Total number of rate gate decisions",
			},
			[]string{"result"},
		),
		contact: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "magi_contact_submissions_total",
				Help: "Total number of contact submissions by outcome",
			},
			[]string{"outcome"},
		),
		chatReplies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "magi_chat_replies_total",
				Help: "Total number of chat replies by answering source",
			},
			[]string{"source"},
		),
		visitFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "magi_visit_fallbacks_total",
			Help: "Total number of visit counter reads answered with the fallback value",
		}),
	}
}

func (m *Metrics) recordGate(allowed bool, err error) {
	switch {
	case err != nil:
		m.gateDecisions.WithLabelValues("error").Inc()
	case allowed:
		m.gateDecisions.WithLabelValues("allowed").Inc()
	default:
		m.gateDecisions.WithLabelValues("blocked").Inc()
	}
}

func (m *Metrics) recordContact(outcome string) {
	m.contact.WithLabelValues(outcome).Inc()
}
