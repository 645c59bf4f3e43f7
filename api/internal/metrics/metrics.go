// Package metrics holds the Prometheus collectors for the gateway and the
// HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// llmAttemptsTotal counts single backend attempts by outcome.
	llmAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stemly_llm_attempts_total",
			Help: "Total number of inference attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	llmAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stemly_llm_attempt_duration_seconds",
			Help:    "Duration of single inference attempts in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
		[]string{"provider"},
	)

	// credentialRotations counts switches to an alternate credential.
	credentialRotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stemly_llm_credential_rotations_total",
			Help: "Total number of credential rotations by provider and reason",
		},
		[]string{"provider", "reason"},
	)

	fallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stemly_fallback_total",
			Help: "Total number of degraded or fallback payloads served by feature",
		},
		[]string{"feature"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stemly_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stemly_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		llmAttemptsTotal,
		llmAttemptDuration,
		credentialRotations,
		fallbackTotal,
		httpRequestsTotal,
		httpRequestDurationSeconds,
	)
}

func ObserveAttempt(provider, outcome string, d time.Duration) {
	llmAttemptsTotal.WithLabelValues(provider, outcome).Inc()
	llmAttemptDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func IncRotation(provider, reason string) {
	credentialRotations.WithLabelValues(provider, reason).Inc()
}

func IncFallback(feature string) {
	fallbackTotal.WithLabelValues(feature).Inc()
}

func ObserveHTTP(method, path string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, path).Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
