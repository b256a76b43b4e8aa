// Package metrics exposes Prometheus collectors for the numbering backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"logibill/internal/core/numbering"
	domain "logibill/internal/domain/numbering"
	"logibill/internal/infrastructure/storage/postgres"
)

const namespace = "logibill"

// Recorder owns a registry and every collector reported by the server.
type Recorder struct {
	registry *prometheus.Registry

	advanced   *prometheus.CounterVec
	lostUpdate *prometheus.CounterVec
	dupChecks  *prometheus.CounterVec
	saves      *prometheus.CounterVec

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// Ensure compile-time interface compliance.
var _ domain.Metrics = (*Recorder)(nil)

// New creates a Recorder with its own registry, including Go and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		advanced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "numbering",
			Name:      "numbers_advanced_total",
			Help:      "Document numbers handed out, by document type.",
		}, []string{"type"}),
		lostUpdate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "numbering",
			Name:      "lost_updates_total",
			Help:      "Advance requests rejected because another client allocated first.",
		}, []string{"type"}),
		dupChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "numbering",
			Name:      "duplicate_checks_total",
			Help:      "Duplicate checks, by document type and outcome.",
		}, []string{"type", "duplicate"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "numbering",
			Name:      "config_saves_total",
			Help:      "Numbering configs saved, by document type.",
		}, []string{"type"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.002, 2, 12), // 2ms to ~4s
		}, []string{"method", "route"}),
	}

	r.registry.MustRegister(
		r.advanced, r.lostUpdate, r.dupChecks, r.saves,
		r.httpInFlight, r.httpRequests, r.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// NumberAdvanced implements domain.Metrics.
func (r *Recorder) NumberAdvanced(docType numbering.DocumentType) {
	r.advanced.WithLabelValues(docType.String()).Inc()
}

// LostUpdate implements domain.Metrics.
func (r *Recorder) LostUpdate(docType numbering.DocumentType) {
	r.lostUpdate.WithLabelValues(docType.String()).Inc()
}

// DuplicateChecked implements domain.Metrics.
func (r *Recorder) DuplicateChecked(docType numbering.DocumentType, duplicate bool) {
	r.dupChecks.WithLabelValues(docType.String(), strconv.FormatBool(duplicate)).Inc()
}

// ConfigSaved implements domain.Metrics.
func (r *Recorder) ConfigSaved(docType numbering.DocumentType) {
	r.saves.WithLabelValues(docType.String()).Inc()
}

// RequestStarted increments the in-flight gauge and returns the func that records completion.
func (r *Recorder) RequestStarted(method string) func(route string, status int) {
	start := time.Now()
	r.httpInFlight.Inc()
	return func(route string, status int) {
		r.httpInFlight.Dec()
		if route == "" {
			route = "unmatched"
		}
		r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		r.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// PoolStatser is satisfied by *postgres.Pool.
type PoolStatser interface {
	Stats() postgres.PoolStats
}

// RegisterPool exports connection pool usage as gauges read at scrape time.
func (r *Recorder) RegisterPool(pool PoolStatser) {
	gauge := func(name, help string, read func(postgres.PoolStats) int32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(pool.Stats())) })
	}

	r.registry.MustRegister(
		gauge("total_connections", "Open connections.", func(s postgres.PoolStats) int32 { return s.TotalConns }),
		gauge("acquired_connections", "Connections in use.", func(s postgres.PoolStats) int32 { return s.AcquiredConns }),
		gauge("idle_connections", "Idle connections.", func(s postgres.PoolStats) int32 { return s.IdleConns }),
		gauge("max_connections", "Pool size limit.", func(s postgres.PoolStats) int32 { return s.MaxConns }),
	)
}
