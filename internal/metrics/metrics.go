// Package metrics exposes Prometheus instrumentation for index builds, queries
// and the HTTP API. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kotae"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics owns a private registry so tests and multiple servers do not collide
// on the global one.
type Metrics struct {
	registry      *prometheus.Registry
	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	indexedChunks prometheus.Histogram
	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	sessions      prometheus.Gauge
	httpRequests  *prometheus.CounterVec
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Index builds by result.",
		}, []string{"result"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_build_duration_seconds",
			Help:      "Time spent embedding and indexing a corpus.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		indexedChunks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_build_chunks",
			Help:      "Chunks stored by successful builds.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries by kind (vector, keyword) and result.",
		}, []string{"kind", "result"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query latency by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Live retrieval sessions.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.builds, m.buildDuration, m.indexedChunks,
		m.queries, m.queryDuration,
		m.sessions, m.httpRequests,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveBuild records one BuildIndex call.
func (m *Metrics) ObserveBuild(started time.Time, chunks int, err error) {
	if m == nil {
		return
	}
	m.buildDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		m.builds.WithLabelValues(ResultError).Inc()
		return
	}
	m.builds.WithLabelValues(ResultOK).Inc()
	m.indexedChunks.Observe(float64(chunks))
}

// ObserveQuery records one query of the given kind.
func (m *Metrics) ObserveQuery(kind string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.queries.WithLabelValues(kind, result).Inc()
}

// SetSessions records the number of live sessions.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// ObserveHTTP records one HTTP response.
func (m *Metrics) ObserveHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
