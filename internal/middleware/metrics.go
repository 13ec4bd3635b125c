package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics for application monitoring. All metrics are registered
// in the default Prometheus registry and exposed via the /metrics endpoint.

var (
	// httpRequestsTotal counts all HTTP requests by method, path, and status.
	//
	// Labels: method, path, status
	// Type: Counter
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration measures request processing time for latency
	// analysis and SLO tracking (P50, P95, P99).
	//
	// Labels: method, path
	// Type: Histogram
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpRequestSize tracks request body sizes. Product submissions carry
	// base64 images, so the upper buckets matter here.
	//
	// Labels: method, path
	// Type: Histogram
	httpRequestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// httpResponseSize tracks response body sizes.
	//
	// Labels: method, path
	// Type: Histogram
	httpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// activeSessions tracks the current number of active user sessions.
	//
	// Type: Gauge
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "petshop_active_sessions",
			Help: "Number of active user sessions",
		},
	)

	// authAttemptsTotal counts authentication attempts by result.
	//
	// Labels: result (success, invalid_credentials, network_failed, ...)
	// Type: Counter
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petshop_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// tokenRefreshTotal counts gateway token refresh attempts by result.
	//
	// Labels: result (success, invalid_token, ...)
	// Type: Counter
	tokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petshop_token_refresh_total",
			Help: "Total number of token refresh attempts",
		},
		[]string{"result"},
	)

	// catalogWatchers tracks the number of live catalog watch streams.
	//
	// Type: Gauge
	catalogWatchers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "petshop_catalog_watchers",
			Help: "Number of active catalog watch streams",
		},
	)

	// upstreamRequestsTotal counts calls to the external collaborators.
	//
	// Labels: service (identity, store, imghost), operation, status
	// Type: Counter
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petshop_upstream_requests_total",
			Help: "Total number of upstream service requests",
		},
		[]string{"service", "operation", "status"},
	)

	// upstreamRequestDuration measures upstream call latency.
	//
	// Labels: service, operation
	// Type: Histogram
	upstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petshop_upstream_request_duration_seconds",
			Help:    "Upstream service request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)
)

// init registers all metrics with the Prometheus default registry.
// Panics if any metric name conflicts with existing registrations.
func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestSize)
	prometheus.MustRegister(httpResponseSize)
	prometheus.MustRegister(activeSessions)
	prometheus.MustRegister(authAttemptsTotal)
	prometheus.MustRegister(tokenRefreshTotal)
	prometheus.MustRegister(catalogWatchers)
	prometheus.MustRegister(upstreamRequestsTotal)
	prometheus.MustRegister(upstreamRequestDuration)
}

// Metrics creates middleware for collecting HTTP metrics.
// Records request count, duration, request size, and response size for
// every HTTP request that passes through.
//
// Example Prometheus queries:
//
//	# Request rate by endpoint
//	rate(http_requests_total[5m])
//
//	# P95 latency
//	histogram_quantile(0.95, rate(http_request_duration_seconds_bucket[5m]))
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// Record request size
			requestSize := float64(r.ContentLength)
			if requestSize > 0 {
				httpRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(requestSize)
			}

			// Process request
			next.ServeHTTP(ww, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(ww.Status())

			httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			httpResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(ww.BytesWritten()))
		})
	}
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
// Exposes all registered metrics in Prometheus text format for scraping.
// Should be exposed on a protected path, never publicly.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// IncrementAuthAttempts increments the authentication attempts counter.
// Call in authentication handlers to track login success and failure rates.
func IncrementAuthAttempts(result string) {
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// IncrementTokenRefresh increments the token refresh counter.
func IncrementTokenRefresh(result string) {
	tokenRefreshTotal.WithLabelValues(result).Inc()
}

// SetActiveSessions sets the active sessions gauge.
// Updated periodically by a background job that scans Redis.
func SetActiveSessions(count float64) {
	activeSessions.Set(count)
}

// WatcherStarted and WatcherStopped track live catalog watch streams.
func WatcherStarted() { catalogWatchers.Inc() }

// WatcherStopped decrements the catalog watcher gauge.
func WatcherStopped() { catalogWatchers.Dec() }

// RecordUpstreamRequest records one call to an external collaborator.
//
// Parameters:
//   - service: Collaborator name ("identity", "store", "imghost")
//   - operation: Operation name (e.g., "sign_in", "list_documents", "upload")
//   - status: Result status ("success" or "error")
//   - duration: How long the call took
func RecordUpstreamRequest(service, operation, status string, duration time.Duration) {
	upstreamRequestsTotal.WithLabelValues(service, operation, status).Inc()
	upstreamRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}
