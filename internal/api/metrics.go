package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the curation counters exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	corrections prometheus.Counter
	conflicts   *prometheus.CounterVec
	merges      prometheus.Counter
	imports     *prometheus.CounterVec
}

// NewMetrics registers the curation metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phetools",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "phetools",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		corrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phetools",
			Name:      "sanitizer_corrections_total",
			Help:      "Cells reset to not ascertained by the sanitizer.",
		}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phetools",
			Name:      "qc_conflicts_total",
			Help:      "Annotation conflicts reported by QC, by rule.",
		}, []string{"rule"}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phetools",
			Name:      "merges_total",
			Help:      "Cohort merges performed.",
		}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phetools",
			Name:      "template_imports_total",
			Help:      "Template imports by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.corrections, m.conflicts, m.merges, m.imports,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
