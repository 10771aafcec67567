// Package observability collects Prometheus metrics for the document service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the Prometheus registry and application metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	rendersTotal        *prometheus.CounterVec
	rasterizerFallbacks prometheus.Counter
	repairedColumns     prometheus.Counter
	degradedRenders     prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "liftline_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liftline_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	renders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "liftline_document_renders_total",
		Help: "Rendered documents by output format.",
	}, []string{"format"})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "liftline_rasterizer_fallbacks_total",
		Help: "Downloads served as print HTML because the rasterizer was unavailable.",
	})
	repaired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "liftline_template_repaired_columns_total",
		Help: "Structured template columns rewritten by the repair service.",
	})
	degraded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "liftline_degraded_renders_total",
		Help: "Renders that worked around malformed stored template structure.",
	})
	registry.MustRegister(requests, duration, renders, fallbacks, repaired, degraded)
	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:       requests,
		requestDuration:     duration,
		rendersTotal:        renders,
		rasterizerFallbacks: fallbacks,
		repairedColumns:     repaired,
		degradedRenders:     degraded,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveRender counts one rendered document for the given output format.
func (m *Metrics) ObserveRender(format string, degraded bool) {
	if m == nil {
		return
	}
	m.rendersTotal.WithLabelValues(format).Inc()
	if degraded {
		m.degradedRenders.Inc()
	}
}

// ObserveRasterizerFallback counts one degraded download.
func (m *Metrics) ObserveRasterizerFallback() {
	if m == nil {
		return
	}
	m.rasterizerFallbacks.Inc()
}

// ObserveRepairedColumns counts columns rewritten by a repair pass.
func (m *Metrics) ObserveRepairedColumns(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.repairedColumns.Add(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
