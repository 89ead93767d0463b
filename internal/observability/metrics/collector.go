// Package metrics exposes prometheus collectors for ensemble rounds and
// per-provider calls.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the pipeline's prometheus metrics.
type Collector struct {
	// Round metrics
	RoundDuration *prometheus.HistogramVec
	RoundCount    *prometheus.CounterVec
	RoundVotes    *prometheus.HistogramVec

	// Provider call metrics
	ProviderLatency *prometheus.HistogramVec
	ProviderCalls   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewCollector creates and registers the pipeline collectors on a private
// registry, so tests can build collectors without duplicate-registration
// panics.
func NewCollector() *Collector {
	return newCollector(prometheus.NewRegistry())
}

func newCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		RoundDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ensemble_round_duration_seconds",
				Help:    "Wall-clock duration of one fan-out-and-merge round",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		RoundCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ensemble_rounds_total",
				Help: "Total ensemble rounds by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		RoundVotes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ensemble_round_votes",
				Help:    "Number of successful votes contributing to a round",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			},
			[]string{"operation"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "provider_call_latency_seconds",
				Help:    "Provider call latency in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider", "operation"},
		),
		ProviderCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_calls_total",
				Help: "Total provider calls by provider, operation and outcome",
			},
			[]string{"provider", "operation", "outcome"},
		),
	}

	reg.MustRegister(c.RoundDuration, c.RoundCount, c.RoundVotes, c.ProviderLatency, c.ProviderCalls)
	c.registry = reg
	return c
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
