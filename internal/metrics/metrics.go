// Package metrics holds the Prometheus collectors of the broker. Every
// method is safe to call on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hotelbroker"

// Call outcomes recorded on hotelbroker_upstream_calls_total.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeRejected    = "rejected"
	OutcomeCancelled   = "cancelled"
	OutcomeCircuitOpen = "circuit_open"
)

// Metrics groups the collectors registered by New.
type Metrics struct {
	UpstreamCalls      *prometheus.CounterVec
	UpstreamRetries    *prometheus.CounterVec
	BreakerTransitions *prometheus.CounterVec
	Settlements        *prometheus.CounterVec
	SearchDuration     prometheus.Histogram
	SearchHotels       prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Outbound upstream calls by final outcome.",
		}, []string{"upstream", "outcome"}),
		UpstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Retries scheduled after a transient upstream failure.",
		}, []string{"upstream"}),
		BreakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state changes per upstream.",
		}, []string{"upstream", "state"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settlement verification decisions by status.",
		}, []string{"status"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End to end latency of hotel searches.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 4, 8},
		}),
		SearchHotels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "search_hotels",
			Help:      "Hotels returned by the most recent search.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.UpstreamCalls,
			m.UpstreamRetries,
			m.BreakerTransitions,
			m.Settlements,
			m.SearchDuration,
			m.SearchHotels,
		)
	}
	return m
}

func (m *Metrics) ObserveCall(upstream, outcome string) {
	if m == nil {
		return
	}
	m.UpstreamCalls.WithLabelValues(upstream, outcome).Inc()
}

func (m *Metrics) IncRetry(upstream string) {
	if m == nil {
		return
	}
	m.UpstreamRetries.WithLabelValues(upstream).Inc()
}

func (m *Metrics) BreakerTransition(upstream, state string) {
	if m == nil {
		return
	}
	m.BreakerTransitions.WithLabelValues(upstream, state).Inc()
}

func (m *Metrics) Settlement(status string) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(status).Inc()
}

// ObserveSearch records one completed search.
func (m *Metrics) ObserveSearch(d time.Duration, hotels int) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(d.Seconds())
	m.SearchHotels.Set(float64(hotels))
}
