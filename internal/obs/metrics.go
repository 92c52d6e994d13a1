package obs

import (
	"net/http"
	"strconv"
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
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	authzDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization decisions by result and denial reason.",
		},
		[]string{"result", "reason"},
	)

	permCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_permission_cache_total",
			Help: "Effective-permission cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	auditDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_entries_dropped_total",
		Help: "Audit entries dropped because the recorder queue was full.",
	})
)

// Init registers all service metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		authzDecisionsTotal,
		permCacheTotal,
		auditDroppedTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDecision counts an authorization decision outcome.
func ObserveDecision(allowed bool, reason string) {
	result := "deny"
	if allowed {
		result = "allow"
		reason = ""
	}
	authzDecisionsTotal.WithLabelValues(result, reason).Inc()
}

// CacheHit counts a permission cache hit.
func CacheHit() { permCacheTotal.WithLabelValues("hit").Inc() }

// CacheMiss counts a permission cache miss.
func CacheMiss() { permCacheTotal.WithLabelValues("miss").Inc() }

// CacheError counts a failed permission cache lookup.
func CacheError() { permCacheTotal.WithLabelValues("error").Inc() }

// AuditDropped counts an audit entry lost to backpressure.
func AuditDropped() { auditDroppedTotal.Inc() }

// Instrument wraps an HTTP handler with RPS, latency and in-flight metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
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
