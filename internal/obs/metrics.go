// Package obs holds logger setup and Prometheus instrumentation shared across the service.
package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// StatusTransitions counts card moves between status groups, propagation included.
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "card_status_transitions_total",
			Help: "Card moves between availability status groups.",
		},
		[]string{"from", "to"},
	)

	// FanoutFailures counts per-user attachment failures during new-card fan-out.
	FanoutFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "card_fanout_failures_total",
		Help: "Per-user failures while attaching a new card to enrolled users.",
	})
)

var registerOnce sync.Once

// Init registers metrics in the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, StatusTransitions, FanoutFailures)
	})
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RouteFunc names the route of a request for metric labels. Raw paths carry ids
// and would explode label cardinality.
type RouteFunc func(r *http.Request) string

// Instrument measures requests, latency and in-flight count.
func Instrument(next http.Handler, route RouteFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		sw := &StatusWriter{ResponseWriter: w, Code: http.StatusOK}
		next.ServeHTTP(sw, r)

		name := r.URL.Path
		if route != nil {
			name = route(r)
		}
		status := strconv.Itoa(sw.Code)
		httpRequestDuration.WithLabelValues(r.Method, name, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, name, status).Inc()
	})
}

// StatusWriter records the response code.
type StatusWriter struct {
	http.ResponseWriter
	Code int
}

func (w *StatusWriter) WriteHeader(code int) {
	w.Code = code
	w.ResponseWriter.WriteHeader(code)
}
