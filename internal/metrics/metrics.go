// Package metrics exposes Prometheus collectors for HTTP traffic and the
// request workflow.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so that several instances can coexist in tests.
type Metrics struct {
	reg           *prometheus.Registry
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	statusChanges *prometheus.CounterVec
	verifyLookups *prometheus.CounterVec
	priceChanges  prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labdesk",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "labdesk",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labdesk",
			Name:      "status_changes_total",
			Help:      "Status change attempts by request family, target status and result.",
		}, []string{"family", "status", "result"}),
		verifyLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labdesk",
			Name:      "verify_lookups_total",
			Help:      "Public verification lookups by result.",
		}, []string{"result"}),
		priceChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "labdesk",
			Name:      "item_price_changes_total",
			Help:      "Lab item prices set by staff.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.statusChanges, m.verifyLookups, m.priceChanges,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// StatusChanged records a workflow mutation attempt. result is "ok" or an error code.
func (m *Metrics) StatusChanged(family, status, result string) {
	m.statusChanges.WithLabelValues(family, status, result).Inc()
}

// VerifyLookup records a public lookup. result is delivered|pending|unknown|invalid.
func (m *Metrics) VerifyLookup(result string) {
	m.verifyLookups.WithLabelValues(result).Inc()
}

// PriceChanged records an item price update.
func (m *Metrics) PriceChanged() {
	m.priceChanges.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and latency labelled by the matched
// ServeMux pattern, which keeps label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
