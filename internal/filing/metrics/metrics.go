package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the filing pipeline.
type Metrics struct {
	// Status changes by target status
	Transitions *prometheus.CounterVec

	// Transport operation latency and failures by operation
	TransportLatency  *prometheus.HistogramVec
	TransportFailures *prometheus.CounterVec

	// Poll results by outcome
	PollOutcomes *prometheus.CounterVec

	// Preflight failures by stage (data, structural)
	PreflightFailures *prometheus.CounterVec

	// Duration of a full poll cycle
	PollCycleLatency prometheus.Histogram
}

// New creates a new Metrics instance with all filing metrics registered.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on reg. Tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rrfiler_submission_transitions_total",
			Help: "Total submission status transitions by target status",
		}, []string{"status"}),

		TransportLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rrfiler_transport_duration_seconds",
			Help:    "Duration of transfer host operations",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}), // op: "upload", "download", "list"

		TransportFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rrfiler_transport_failures_total",
			Help: "Total failed transfer host operations by operation and category",
		}, []string{"op", "category"}),

		PollOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rrfiler_poll_outcomes_total",
			Help: "Total poll results by outcome",
		}, []string{"outcome"}),

		PreflightFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rrfiler_preflight_failures_total",
			Help: "Total documents refused before upload by preflight stage",
		}, []string{"stage"}),

		PollCycleLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rrfiler_poll_cycle_duration_seconds",
			Help:    "Duration of a full poll cycle over due submissions",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
	}
}

// IncrementTransition records a status change.
func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.Transitions.WithLabelValues(status).Inc()
	}
}

// ObserveTransport records one transport operation.
func (m *Metrics) ObserveTransport(op string, d time.Duration, failureCategory string) {
	if m == nil {
		return
	}
	m.TransportLatency.WithLabelValues(op).Observe(d.Seconds())
	if failureCategory != "" {
		m.TransportFailures.WithLabelValues(op, failureCategory).Inc()
	}
}

// IncrementPollOutcome records the result of polling one submission.
func (m *Metrics) IncrementPollOutcome(outcome string) {
	if m != nil {
		m.PollOutcomes.WithLabelValues(outcome).Inc()
	}
}

// IncrementPreflightFailure records a refused document.
func (m *Metrics) IncrementPreflightFailure(stage string) {
	if m != nil {
		m.PreflightFailures.WithLabelValues(stage).Inc()
	}
}

// ObservePollCycle records the duration of a poll cycle.
func (m *Metrics) ObservePollCycle(d time.Duration) {
	if m != nil {
		m.PollCycleLatency.Observe(d.Seconds())
	}
}
