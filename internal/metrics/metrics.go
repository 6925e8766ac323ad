// Package metrics registers the Prometheus instruments for the security
// core: HTTP request metrics plus counters for guard decisions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	authDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_auth_denials_total",
			Help: "Requests denied by the route guard, by reason.",
		},
		[]string{"reason"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_rate_limited_total",
			Help: "Requests rejected by the fixed-window rate limiter.",
		},
		[]string{"endpoint"},
	)

	lockouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_account_lockouts_total",
		Help: "Accounts locked after repeated authentication failures.",
	})

	privilegeChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_privilege_changes_total",
			Help: "Elevation and assume-role transitions, by action.",
		},
		[]string{"action"},
	)

	auditDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_audit_writes_dropped_total",
		Help: "Audit entries that could not be persisted.",
	})
)

// Init registers all collectors with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		authDenials,
		rateLimited,
		lockouts,
		privilegeChanges,
		auditDropped,
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveDenial(reason string)        { authDenials.WithLabelValues(reason).Inc() }
func ObserveRateLimited(endpoint string) { rateLimited.WithLabelValues(endpoint).Inc() }
func ObserveLockout()                    { lockouts.Inc() }
func ObservePrivilegeChange(action string) {
	privilegeChanges.WithLabelValues(action).Inc()
}
func ObserveAuditDropped() { auditDropped.Inc() }

// Instrument records request counts, latency, and in-flight gauge. Route
// labels use the chi pattern to keep cardinality bounded.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
