package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	m.IncrementTransition("submitted")
	m.IncrementTransition("submitted")
	m.IncrementPollOutcome("rescheduled")
	m.IncrementPreflightFailure("data")
	m.ObserveTransport("upload", 120*time.Millisecond, "")
	m.ObserveTransport("upload", time.Second, "connection")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("submitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollOutcomes.WithLabelValues("rescheduled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PreflightFailures.WithLabelValues("data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransportFailures.WithLabelValues("upload", "connection")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TransportLatency), "one series per op")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementTransition("accepted")
		m.ObserveTransport("list", time.Millisecond, "timeout")
		m.IncrementPollOutcome("accepted")
		m.IncrementPreflightFailure("structural")
		m.ObservePollCycle(time.Second)
	})
}
