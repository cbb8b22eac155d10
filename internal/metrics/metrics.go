// Package metrics exports Prometheus counters for the election core and the
// HTTP surface.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name
const Namespace = "electvote"

// Metrics holds all collectors. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	// domain
	ElectionsScheduled   prometheus.Counter
	ElectionsCancelled   prometheus.Counter
	BallotsAdmitted      prometheus.Counter
	BallotsRejected      *prometheus.CounterVec
	ApplicationsResolved *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// WebSocket
	WSConnectionsActive prometheus.Gauge
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ElectionsScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "elections_scheduled_total",
			Help:      "Elections scheduled",
		}),
		ElectionsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "elections_cancelled_total",
			Help:      "Elections cancelled",
		}),
		BallotsAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ballots_admitted_total",
			Help:      "Ballots written to the store",
		}),
		BallotsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ballots_rejected_total",
			Help:      "Ballots refused, by reason",
		}, []string{"reason"}),
		ApplicationsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "applications_resolved_total",
			Help:      "Candidate applications resolved, by decision",
		}, []string{"decision"}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		HTTPRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		}),
		WSConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "ws_connections_active",
			Help:      "Open WebSocket connections",
		}),
	}
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ElectionScheduled() { m.ElectionsScheduled.Inc() }
func (m *Metrics) ElectionCancelled() { m.ElectionsCancelled.Inc() }
func (m *Metrics) BallotAdmitted()    { m.BallotsAdmitted.Inc() }

func (m *Metrics) BallotRejected(reason string) {
	m.BallotsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ApplicationResolved(decision string) {
	m.ApplicationsResolved.WithLabelValues(decision).Inc()
}

// WSConnectionOpened WebSocket connection opened
func (m *Metrics) WSConnectionOpened() { m.WSConnectionsActive.Inc() }

// WSConnectionClosed WebSocket connection closed
func (m *Metrics) WSConnectionClosed() { m.WSConnectionsActive.Dec() }

// Middleware records request counts and latency labelled by chi route
// pattern, which keeps ids out of the label values.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
