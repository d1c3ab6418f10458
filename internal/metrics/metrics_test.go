package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCall("inventory", OutcomeSuccess)
	m.ObserveCall("inventory", OutcomeSuccess)
	m.ObserveCall("geocode-a", OutcomeFailure)
	m.IncRetry("inventory")
	m.BreakerTransition("inventory", "Open")
	m.Settlement("confirmed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpstreamCalls.WithLabelValues("inventory", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamCalls.WithLabelValues("geocode-a", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRetries.WithLabelValues("inventory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerTransitions.WithLabelValues("inventory", "Open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Settlements.WithLabelValues("confirmed")))

	count, err := testutil.GatherAndCount(reg, "hotelbroker_upstream_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetrics_ObserveSearch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSearch(300*time.Millisecond, 12)

	assert.Equal(t, 12.0, testutil.ToFloat64(m.SearchHotels))

	var metric dto.Metric
	require.NoError(t, m.SearchDuration.Write(&metric))
	assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.3, metric.GetHistogram().GetSampleSum(), 1e-9)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCall("x", OutcomeSuccess)
		m.IncRetry("x")
		m.BreakerTransition("x", "Open")
		m.Settlement("rejected")
		m.ObserveSearch(time.Second, 1)
	})
}

func TestNew_WithoutRegistry(t *testing.T) {
	m := New(nil)
	m.IncRetry("payment")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRetries.WithLabelValues("payment")))
}
