package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	AuditsScored        prometheus.Counter
	ScoringDuration     prometheus.Histogram
	Transitions         *prometheus.CounterVec
	InvalidTransitions  prometheus.Counter
	IntegrityMismatches prometheus.Counter
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		AuditsScored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fortaudit_audits_scored_total",
			Help: "Total number of scoring engine invocations",
		}),
		ScoringDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fortaudit_scoring_duration_seconds",
			Help:    "Latency of scoring engine invocations",
			Buckets: prometheus.DefBuckets,
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fortaudit_session_transitions_total",
			Help: "Applied audit session transitions by from/to state",
		}, []string{"from", "to"}),
		InvalidTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fortaudit_session_invalid_transitions_total",
			Help: "Rejected audit session transition attempts",
		}),
		IntegrityMismatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fortaudit_integrity_mismatches_total",
			Help: "Stored integrity stamps that did not match recomputation",
		}),
	}
}

// ObserveScoring records one scoring invocation and its duration.
func (m *Metrics) ObserveScoring(d time.Duration) {
	if m == nil {
		return
	}
	m.AuditsScored.Inc()
	m.ScoringDuration.Observe(d.Seconds())
}

// RecordTransition increments the transition counter for a from/to pair.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// RecordInvalidTransition increments the rejected-transition counter.
func (m *Metrics) RecordInvalidTransition() {
	if m == nil {
		return
	}
	m.InvalidTransitions.Inc()
}

// RecordIntegrityMismatch increments the stamp-mismatch counter.
func (m *Metrics) RecordIntegrityMismatch() {
	if m == nil {
		return
	}
	m.IntegrityMismatches.Inc()
}
