package ulango

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for ulango's request lifecycle
// and reliability layers. It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	rateLimiterRemaining *prometheus.GaugeVec
	rateLimitWaitsTotal  *prometheus.CounterVec
	rateLimitWaitSeconds *prometheus.HistogramVec

	validationFailures *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ulango_requests_total",
				Help: "Total number of HTTP requests made",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ulango_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ulango_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ulango_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		rateLimiterRemaining: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ulango_rate_limiter_remaining",
				Help: "Remaining calls in the current rate limiter window",
			},
			[]string{"limiter"},
		),
		rateLimitWaitsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ulango_rate_limit_waits_total",
				Help: "Total number of times a request waited for rate limit admission",
			},
			[]string{"limiter"},
		),
		rateLimitWaitSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ulango_rate_limit_wait_seconds",
				Help:    "Time spent waiting for rate limit admission in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"limiter"},
		),
		validationFailures: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ulango_validation_failures_total",
				Help: "Total number of response schema validation failures",
			},
			[]string{"method", "endpoint"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ulango_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type", "method", "endpoint"},
		),
	}

	if reg, ok := registry.(*prometheus.Registry); ok {
		mc.registry = reg
	}

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}

	attemptStr := strconv.Itoa(attempt)
	mc.retriesTotal.WithLabelValues(method, endpoint, attemptStr).Inc()
}

// RecordRateLimiterRemaining sets the remaining-calls gauge for a limiter.
func (mc *MetricsCollector) RecordRateLimiterRemaining(limiter string, remaining int) {
	if mc == nil {
		return
	}

	mc.rateLimiterRemaining.WithLabelValues(limiter).Set(float64(remaining))
}

// RecordRateLimitWait records one admission wait and its duration.
func (mc *MetricsCollector) RecordRateLimitWait(limiter string, waited time.Duration) {
	if mc == nil {
		return
	}

	mc.rateLimitWaitsTotal.WithLabelValues(limiter).Inc()
	mc.rateLimitWaitSeconds.WithLabelValues(limiter).Observe(waited.Seconds())
}

// RecordValidationFailure increments the schema validation failure counter.
func (mc *MetricsCollector) RecordValidationFailure(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.validationFailures.WithLabelValues(method, endpoint).Inc()
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// GetRegistry exposes the underlying prometheus registry. It is nil when the
// collector was created with a registerer that is not a *prometheus.Registry.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	return mc.registry
}
