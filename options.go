package ulango

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Client during construction.
type Option func(c *Client)

// WithBaseURL sets a base URL that relative request URLs are resolved against.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithMaxRetries sets the maximum number of retry attempts
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithInitialBackoff sets the initial backoff duration
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.initialBackoff = d
	}
}

// WithMaxBackoff sets the maximum backoff duration
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.maxBackoff = d
	}
}

// WithJitterBounds sets the multiplier range applied to the exponential
// backoff. The computed delay is scaled by a uniform draw from [min, max].
func WithJitterBounds(min, max float64) Option {
	return func(c *Client) {
		c.jitterMin = min
		c.jitterMax = max
	}
}

// WithBackoffStrategy selects the jitter strategy used for retry delays.
func WithBackoffStrategy(strategy BackoffStrategy) Option {
	return func(c *Client) {
		c.backoffStrategy = strategy
	}
}

// WithRetryableStatusCodes replaces the set of HTTP status codes that are
// considered retryable.
func WithRetryableStatusCodes(codes ...int) Option {
	return func(c *Client) {
		set := make(map[int]bool, len(codes))
		for _, code := range codes {
			set[code] = true
		}
		c.retryableStatus = set
	}
}

// WithRateLimit enables the sliding window rate limiter allowing maxCalls
// admissions per window.
func WithRateLimit(maxCalls int, window time.Duration) Option {
	return func(c *Client) {
		c.rateLimitCalls = maxCalls
		c.rateLimitWindow = window
	}
}

// WithLimiter sets a custom admission limiter.
func WithLimiter(limiter Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithTokenBucketLimiter enables a token bucket limiter refilling at rps
// tokens per second with the given burst capacity.
func WithTokenBucketLimiter(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = NewTokenBucketLimiter(rps, burst)
	}
}

// WithRateLimiterRegistry routes requests to per-key limiters instead of a
// single client-wide limiter.
func WithRateLimiterRegistry(registry *RateLimiterRegistry) Option {
	return func(c *Client) {
		c.registry = registry
	}
}

// WithTimeout sets the per-attempt request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithOverallTimeout bounds the whole call including admission waits,
// attempts, and backoff sleeps. It applies when the caller's context carries
// no deadline of its own.
func WithOverallTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.overallTimeout = d
	}
}

// WithMiddleware adds middleware to the client
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithTransport sets a custom base transport, replacing the default
// net/http-backed one.
func WithTransport(transport Transport) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithMaxResponseSize caps how many body bytes are read from a response.
func WithMaxResponseSize(n int64) Option {
	return func(c *Client) {
		c.maxResponseSize = n
	}
}

// WithValidator sets the schema validator applied to decoded responses.
func WithValidator(v Validator) Option {
	return func(c *Client) {
		c.validator = v
	}
}

// WithUnmarshaler sets the decoder used for typed responses.
func WithUnmarshaler(u Unmarshaler) Option {
	return func(c *Client) {
		c.unmarshaler = u
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets a custom logger for debug output
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a simple console logger
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithZerolog enables debug logging through the given zerolog logger.
func WithZerolog(logger zerolog.Logger) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewZerologLogger(logger)
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	// Validate each configuration section
	errors = append(errors, c.validateBaseURL()...)
	errors = append(errors, c.validateRetryConfig()...)
	errors = append(errors, c.validateRateLimiterConfig()...)
	errors = append(errors, c.validateTransportConfig()...)
	errors = append(errors, c.validateDebugConfig()...)
	errors = append(errors, c.validateMiddlewareConfig()...)
	errors = append(errors, c.validateOptionCombinations()...)
	errors = append(errors, c.validateExtremeValues()...)

	if len(errors) > 0 {
		return &ClientError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

// validateBaseURL validates the base URL if one is configured
func (c *Client) validateBaseURL() []string {
	var errors []string

	if c.baseURL != "" {
		u, err := url.Parse(c.baseURL)
		if err != nil {
			errors = append(errors, fmt.Sprintf("baseURL is not a valid URL: %v", err))
		} else if u.Scheme == "" || u.Host == "" {
			errors = append(errors, "baseURL must be absolute (scheme and host)")
		}
	}

	return errors
}

// validateRetryConfig validates retry-related configuration
func (c *Client) validateRetryConfig() []string {
	var errors []string

	if c.maxRetries < 0 {
		errors = append(errors, "maxRetries must be non-negative")
	}

	if c.initialBackoff <= 0 {
		errors = append(errors, "initialBackoff must be positive")
	}

	if c.maxBackoff < c.initialBackoff {
		errors = append(errors, "maxBackoff must be greater than or equal to initialBackoff")
	}

	if c.jitterMin < 0 || c.jitterMax > 1 || c.jitterMin > c.jitterMax {
		errors = append(errors, "jitter bounds must satisfy 0 <= min <= max <= 1")
	}

	if c.timeout <= 0 {
		errors = append(errors, "timeout must be positive")
	}

	return errors
}

// validateRateLimiterConfig validates rate limiter configuration
func (c *Client) validateRateLimiterConfig() []string {
	var errors []string

	if c.rateLimitCalls != 0 || c.rateLimitWindow != 0 {
		if c.rateLimitCalls <= 0 {
			errors = append(errors, "rateLimit maxCalls must be positive")
		}
		if c.rateLimitWindow <= 0 {
			errors = append(errors, "rateLimit window must be positive")
		}
	}

	return errors
}

// validateTransportConfig validates transport configuration
func (c *Client) validateTransportConfig() []string {
	var errors []string

	if c.transport == nil && c.httpClient == nil {
		errors = append(errors, "HTTP client cannot be nil")
	}

	if c.maxResponseSize < 0 {
		errors = append(errors, "maxResponseSize must be non-negative")
	}

	return errors
}

// validateDebugConfig validates debug configuration
func (c *Client) validateDebugConfig() []string {
	var errors []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			errors = append(errors, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			errors = append(errors, "logger must be set when debug is enabled")
		}
	}

	return errors
}

// validateMiddlewareConfig validates middleware configuration
func (c *Client) validateMiddlewareConfig() []string {
	var errors []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			errors = append(errors, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return errors
}

// validateOptionCombinations validates that option combinations make sense together
func (c *Client) validateOptionCombinations() []string {
	var errors []string

	if c.overallTimeout > 0 && c.timeout > 0 && c.overallTimeout < c.timeout {
		errors = append(errors, "overallTimeout must be greater than or equal to timeout")
	}

	return errors
}

// validateExtremeValues validates that configuration values are within reasonable bounds
func (c *Client) validateExtremeValues() []string {
	var errors []string

	// Check for extreme retry values that could cause issues
	if c.maxRetries > 100 {
		errors = append(errors, "maxRetries > 100 may cause excessive resource usage")
	}

	// Check for extreme backoff values
	if c.initialBackoff > 10*time.Minute {
		errors = append(errors, "initialBackoff > 10m may cause very long delays")
	}
	if c.maxBackoff > 1*time.Hour {
		errors = append(errors, "maxBackoff > 1h may cause extremely long delays")
	}

	// Check for extreme timeout values
	if c.timeout > 10*time.Minute {
		errors = append(errors, "timeout > 10m may cause requests to hang for too long")
	}

	// Check for extreme rate limiter values
	if c.rateLimitCalls > 1000000 {
		errors = append(errors, "rateLimit maxCalls > 1M may cause memory issues")
	}
	if c.rateLimitWindow != 0 && c.rateLimitWindow < time.Millisecond {
		errors = append(errors, "rateLimit window < 1ms may cause excessive CPU usage")
	}

	return errors
}
