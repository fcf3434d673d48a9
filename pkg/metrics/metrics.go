// Package metrics defines the Prometheus metric collectors used across the
// document pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	UploadsTotal        *prometheus.CounterVec
	NormalizationsTotal *prometheus.CounterVec
	NormalizeRetries    prometheus.Counter
	DeadLettersTotal    *prometheus.CounterVec

	IndexWritesTotal *prometheus.CounterVec
	IndexedDocuments prometheus.Gauge
	ReconcilesTotal  *prometheus.CounterVec

	SearchQueriesTotal  *prometheus.CounterVec
	SearchLatency       *prometheus.HistogramVec
	SuggestQueriesTotal *prometheus.CounterVec
	SearchDegradedTotal prometheus.Counter
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
}

// New creates all Prometheus metrics and registers them with the default
// registry.
func New() *Metrics {
	m := NewUnregistered()
	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.UploadsTotal,
		m.NormalizationsTotal,
		m.NormalizeRetries,
		m.DeadLettersTotal,
		m.IndexWritesTotal,
		m.IndexedDocuments,
		m.ReconcilesTotal,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SuggestQueriesTotal,
		m.SearchDegradedTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)
	return m
}

// NewUnregistered creates the collectors without registering them. Tests use
// this to avoid duplicate registration panics.
func NewUnregistered() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "document_uploads_total",
				Help: "Total document uploads by outcome (accepted, storage_error, publish_error).",
			},
			[]string{"outcome"},
		),
		NormalizationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "document_normalizations_total",
				Help: "Total normalization attempts by outcome (completed, invalid_event, store_error, index_error).",
			},
			[]string{"outcome"},
		),
		NormalizeRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "document_normalize_retries_total",
				Help: "Total redeliveries of extraction events after handler failures.",
			},
		),
		DeadLettersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_dead_letters_total",
				Help: "Total messages routed to a dead-letter topic, by source topic.",
			},
			[]string{"topic"},
		),
		IndexWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_writes_total",
				Help: "Total search index writes by status (ok, error).",
			},
			[]string{"status"},
		),
		IndexedDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "indexed_documents",
				Help: "Number of documents currently in the search index.",
			},
		),
		ReconcilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_reconciles_total",
				Help: "Total reconciliation passes by status (ok, error).",
			},
			[]string{"status"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, degraded).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SuggestQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "suggest_queries_total",
				Help: "Total suggestion queries by result type (hit, zero_result, degraded).",
			},
			[]string{"result_type"},
		),
		SearchDegradedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_degraded_total",
				Help: "Total queries answered with an empty result because the index failed.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
	}
	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
