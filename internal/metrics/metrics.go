// Package metrics defines the Prometheus collectors for the discovery
// services and exposes the scrape handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Indexer holds the consumer-side collectors.
type Indexer struct {
	EventsTotal      *prometheus.CounterVec
	EventsSkipped    prometheus.Counter
	IndexFailures    prometheus.Counter
	ConsumerRestarts prometheus.Counter
}

// NewIndexer registers and returns the consumer collectors.
func NewIndexer(reg prometheus.Registerer) *Indexer {
	m := &Indexer{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_events_total",
				Help: "Change events processed by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		EventsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_events_skipped_total",
				Help: "Messages dropped for unknown operation or decode failure.",
			},
		),
		IndexFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_index_failures_total",
				Help: "Index write or delete operations that failed.",
			},
		),
		ConsumerRestarts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_consumer_restarts_total",
				Help: "Read-loop restarts after broker-level errors.",
			},
		),
	}
	reg.MustRegister(m.EventsTotal, m.EventsSkipped, m.IndexFailures, m.ConsumerRestarts)
	return m
}

// API holds the search-service collectors.
type API struct {
	SearchRequestsTotal *prometheus.CounterVec
	SearchLatency       prometheus.Histogram
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
}

// NewAPI registers and returns the search-service collectors.
func NewAPI(reg prometheus.Registerer) *API {
	m := &API{
		SearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_search_requests_total",
				Help: "Search requests by HTTP status class.",
			},
			[]string{"status"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "discovery_search_latency_seconds",
				Help:    "Search request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_cache_hits_total",
				Help: "Search responses served from the cache.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_cache_misses_total",
				Help: "Search requests that missed the cache.",
			},
		),
	}
	reg.MustRegister(m.SearchRequestsTotal, m.SearchLatency, m.CacheHitsTotal, m.CacheMissesTotal)
	return m
}

// Handler returns the Prometheus scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
