package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for exports, preview streams and the HTTP API.
type Metrics struct {
	registry        *prometheus.Registry
	exportsTotal    *prometheus.CounterVec
	exportDuration  prometheus.Histogram
	streamsTotal    *prometheus.CounterVec
	streamsActive   prometheus.Gauge
	streamBytes     prometheus.Counter
	requestsTotal   prometheus.Counter
	httpErrorsTotal prometheus.Counter
}

// New creates and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cutlist_exports_total",
			Help: "Finished export operations by result",
		}, []string{"result"}),
		exportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cutlist_export_duration_seconds",
			Help:    "Wall time of export operations",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
		}),
		streamsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cutlist_streams_total",
			Help: "Finished preview streams by terminal state",
		}, []string{"state"}),
		streamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cutlist_streams_active",
			Help: "Preview streams currently running",
		}),
		streamBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cutlist_stream_bytes_total",
			Help: "Encoded bytes delivered to stream consumers",
		}),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cutlist_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		httpErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cutlist_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
	}

	registry.MustRegister(
		m.exportsTotal,
		m.exportDuration,
		m.streamsTotal,
		m.streamsActive,
		m.streamBytes,
		m.requestsTotal,
		m.httpErrorsTotal,
	)
	return m
}

// ExportFinished records one export with result "ok", "copied" or "error".
func (m *Metrics) ExportFinished(result string, elapsed time.Duration) {
	m.exportsTotal.WithLabelValues(result).Inc()
	m.exportDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) StreamStarted() {
	m.streamsActive.Inc()
}

func (m *Metrics) StreamFinished(state string) {
	m.streamsActive.Dec()
	m.streamsTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) StreamBytes(n int) {
	m.streamBytes.Add(float64(n))
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.httpErrorsTotal.Inc()
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
