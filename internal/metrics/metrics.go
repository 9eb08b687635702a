// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	placements       *prometheus.CounterVec
	placementLatency *prometheus.HistogramVec
	conflictRetries  prometheus.Counter
	cacheRequests    *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route template and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_placements_total",
			Help: "Order placements by outcome.",
		}, []string{"outcome"}),
		placementLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "order_placement_duration_seconds",
			Help:    "Order placement latency by outcome.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"outcome"}),
		conflictRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_conflict_retries_total",
			Help: "Placements re-run after losing a stock race.",
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_cache_requests_total",
			Help: "Catalog cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.placements,
		m.placementLatency,
		m.conflictRetries,
		m.cacheRequests,
	)
	return m
}

func (m *Metrics) ObserveHTTP(method, route string, status int, took time.Duration) {
	code := http.StatusText(status)
	if code == "" {
		code = "Unknown"
	}
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route, code).Observe(took.Seconds())
}

func (m *Metrics) ObservePlacement(outcome string, took time.Duration) {
	m.placements.WithLabelValues(outcome).Inc()
	m.placementLatency.WithLabelValues(outcome).Observe(took.Seconds())
}

func (m *Metrics) IncConflictRetry() {
	m.conflictRetries.Inc()
}

func (m *Metrics) CacheResult(result string) {
	m.cacheRequests.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
