package ulango

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a resilient HTTP client that layers rate limit admission,
// retries with jittered backoff, response decoding and schema validation,
// middleware and metrics around a pluggable transport. It is safe for
// concurrent use: the rate limiter log is the only shared mutable state.
type Client struct {
	baseURL    string
	httpClient *http.Client

	transport       Transport
	middleware      []Middleware
	chain           Transport
	maxResponseSize int64

	timeout        time.Duration
	overallTimeout time.Duration

	maxRetries      int
	initialBackoff  time.Duration
	maxBackoff      time.Duration
	jitterMin       float64
	jitterMax       float64
	backoffStrategy BackoffStrategy
	retryableStatus map[int]bool
	policy          *RetryPolicy

	rateLimitCalls  int
	rateLimitWindow time.Duration
	limiter         Limiter
	registry        *RateLimiterRegistry

	validator   Validator
	unmarshaler Unmarshaler

	metrics *MetricsCollector
	debug   *DebugConfig
	logger  Logger

	validationError error
}

// New constructs a Client using the provided functional options. A best effort
// validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		httpClient:      &http.Client{},
		maxResponseSize: DefaultMaxResponseSize,
		timeout:         30 * time.Second,
		maxRetries:      3,
		initialBackoff:  100 * time.Millisecond,
		maxBackoff:      10 * time.Second,
		jitterMin:       0.5,
		jitterMax:       1.0,
		backoffStrategy: FullJitter,
		middleware:      []Middleware{},
		validator:       NewStructValidator(),
		unmarshaler:     JSONUnmarshaler{},
		debug:           DefaultDebugConfig(),
	}

	for _, option := range options {
		option(client)
	}

	if client.transport == nil {
		httpClient := client.httpClient
		if httpClient == nil {
			httpClient = &http.Client{}
		}
		client.transport = NewHTTPTransport(httpClient, client.maxResponseSize)
	}
	client.chain = chainMiddleware(client.transport, client.middleware)

	if client.limiter == nil && client.rateLimitCalls > 0 && client.rateLimitWindow > 0 {
		client.limiter = NewRateLimiter(client.rateLimitCalls, client.rateLimitWindow)
	}

	policy := NewRetryPolicyWithStrategy(
		client.maxRetries,
		client.initialBackoff,
		client.maxBackoff,
		client.jitterMin,
		client.jitterMax,
		client.backoffStrategy,
	)
	if client.retryableStatus != nil {
		policy.retryableStatus = client.retryableStatus
	}
	client.policy = policy

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Get performs an HTTP GET.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) Result[*Response] {
	return c.Do(ctx, NewRequest(http.MethodGet, url, opts...))
}

// Post performs an HTTP POST with the given body.
func (c *Client) Post(ctx context.Context, url string, body []byte, opts ...RequestOption) Result[*Response] {
	opts = append([]RequestOption{WithBody(body)}, opts...)
	return c.Do(ctx, NewRequest(http.MethodPost, url, opts...))
}

// Put performs an HTTP PUT with the given body.
func (c *Client) Put(ctx context.Context, url string, body []byte, opts ...RequestOption) Result[*Response] {
	opts = append([]RequestOption{WithBody(body)}, opts...)
	return c.Do(ctx, NewRequest(http.MethodPut, url, opts...))
}

// Patch performs an HTTP PATCH with the given body.
func (c *Client) Patch(ctx context.Context, url string, body []byte, opts ...RequestOption) Result[*Response] {
	opts = append([]RequestOption{WithBody(body)}, opts...)
	return c.Do(ctx, NewRequest(http.MethodPatch, url, opts...))
}

// Delete performs an HTTP DELETE.
func (c *Client) Delete(ctx context.Context, url string, opts ...RequestOption) Result[*Response] {
	return c.Do(ctx, NewRequest(http.MethodDelete, url, opts...))
}

// Do executes a request applying all reliability features: rate limit
// admission before every attempt, per-attempt timeouts, retry with jittered
// backoff, and structured error classification. The outcome is always
// carried in the Result; Do never panics on failures.
func (c *Client) Do(ctx context.Context, req *Request) Result[*Response] {
	start := time.Now()

	if c.validationError != nil {
		return Err[*Response](c.validationError)
	}

	resolvedURL, err := c.resolveURL(req)
	if err != nil {
		return Err[*Response](c.newError(ErrorTypeValidation, err.Error(), err, "", req, resolvedURL, 0, start))
	}
	endpoint := endpointFromURL(resolvedURL)

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}

	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("Starting request", "requestID", requestID, "method", req.Method(), "url", resolvedURL, "endpoint", endpoint)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.overallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.overallTimeout)
		defer cancel()
	}

	if c.metrics != nil {
		c.metrics.RecordRequestStart(req.Method(), endpoint)
		defer c.metrics.RecordRequestEnd(req.Method(), endpoint)
	}

	resp, doErr := c.doWithRetry(ctx, req, resolvedURL, endpoint, requestID, start)

	if c.metrics != nil {
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		} else if code, ok := HTTPStatus(doErr); ok {
			statusCode = code
		}
		c.metrics.RecordRequest(req.Method(), endpoint, statusCode, time.Since(start))
	}

	if doErr != nil {
		if c.debug != nil && c.debug.Enabled && c.debug.LogErrors && c.logger != nil {
			c.logger.Error("Request failed", "requestID", requestID, "method", req.Method(), "endpoint", endpoint, "error", doErr.Error())
		}
		return Err[*Response](doErr)
	}

	return Ok(resp)
}

// doWithRetry runs the attempt loop. Every attempt, including retries,
// passes rate limit admission again, so retry traffic spends budget like
// first-time traffic.
func (c *Client) doWithRetry(ctx context.Context, req *Request, resolvedURL, endpoint, requestID string, start time.Time) (*Response, error) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
				c.logger.Info("Retry attempt", "requestID", requestID, "attempt", attempt, "maxRetries", c.maxRetries, "endpoint", endpoint)
			}
			if c.metrics != nil {
				c.metrics.RecordRetry(req.Method(), endpoint, attempt)
			}
		}

		if err := c.awaitAdmission(ctx, req, endpoint, requestID); err != nil {
			if errors.Is(err, ErrRateLimited) {
				if c.metrics != nil {
					c.metrics.RecordError(ErrorTypeRateLimit, req.Method(), endpoint)
				}
				return nil, c.newError(ErrorTypeRateLimit, "rate limit exceeded", err, requestID, req, resolvedURL, attempt, start)
			}
			return nil, c.contextError(ctx, requestID, req, resolvedURL, attempt, start)
		}

		resp, attemptErr := c.attempt(ctx, req, resolvedURL, requestID, attempt, start)
		if attemptErr == nil {
			return resp, nil
		}

		if ctx.Err() != nil {
			if c.metrics != nil {
				c.metrics.RecordError(ErrorTypeTimeout, req.Method(), endpoint)
			}
			return nil, c.contextError(ctx, requestID, req, resolvedURL, attempt, start)
		}

		if c.metrics != nil {
			c.metrics.RecordError(attemptErr.Type, req.Method(), endpoint)
		}

		delay, outcome := c.policy.Decide(attempt, attemptErr)
		switch outcome {
		case RetryAfterDelay:
			if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
				c.logger.Info("Scheduling retry", "requestID", requestID, "attempt", attempt+1, "backoff", delay, "endpoint", endpoint)
			}
			if err := sleepContext(ctx, delay); err != nil {
				return nil, c.contextError(ctx, requestID, req, resolvedURL, attempt, start)
			}
		case RetryExhausted:
			if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
				c.logger.Warn("Retry budget exhausted", "requestID", requestID, "attempt", attempt, "maxRetries", c.maxRetries, "endpoint", endpoint)
			}
			wrapped := c.newError(ErrorTypeMaxRetries, "max retries exceeded", attemptErr, requestID, req, resolvedURL, attempt, start)
			wrapped.StatusCode = attemptErr.StatusCode
			return nil, wrapped
		default:
			return nil, attemptErr
		}
	}
}

// attempt executes one transport round trip under the per-attempt timeout
// and classifies the outcome. A nil error means a 2xx response.
func (c *Client) attempt(ctx context.Context, req *Request, resolvedURL, requestID string, attempt int, start time.Time) (*Response, *ClientError) {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	attemptTimeout := c.timeout
	if req.Timeout() > 0 {
		attemptTimeout = req.Timeout()
	}
	if attemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, attemptTimeout)
	}
	defer cancel()

	attemptReq := req.Clone()
	attemptReq.url = resolvedURL

	resp, err := c.chain.RoundTrip(attemptCtx, attemptReq)
	if err != nil {
		if ctx.Err() == nil && (attemptCtx.Err() == context.DeadlineExceeded || isTimeoutError(err)) {
			return nil, c.newError(ErrorTypeTimeout, "attempt timed out", err, requestID, req, resolvedURL, attempt, start)
		}
		return nil, c.newError(ErrorTypeNetwork, "network request failed", err, requestID, req, resolvedURL, attempt, start)
	}
	if resp == nil {
		return nil, c.newError(ErrorTypeNetwork, "transport returned no response", nil, requestID, req, resolvedURL, attempt, start)
	}

	if !resp.IsSuccess() {
		httpErr := c.newError(ErrorTypeHTTP, fmt.Sprintf("HTTP error %d", resp.StatusCode), nil, requestID, req, resolvedURL, attempt, start)
		httpErr.StatusCode = resp.StatusCode
		httpErr.Body = resp.Body
		httpErr.RetryAfter = parseRetryAfter(resp.Header("Retry-After"))
		return nil, httpErr
	}

	return resp, nil
}

// awaitAdmission blocks until the rate limiter admits the attempt. It
// returns ErrRateLimited without sleeping when the required wait cannot
// complete before the context deadline, and the context error when the
// context ends mid-wait. Clients without a limiter admit immediately.
func (c *Client) awaitAdmission(ctx context.Context, req *Request, endpoint, requestID string) error {
	if c.registry == nil && c.limiter == nil {
		return nil
	}

	var waited time.Duration
	var limiterKey string
	for {
		var adm Admission
		if c.registry != nil {
			adm, limiterKey = c.registry.AdmitAt(req, time.Now())
		} else {
			adm = c.limiter.AdmitAt(time.Now())
			limiterKey = "default"
		}

		if adm.OK {
			if c.metrics != nil {
				c.metrics.RecordRateLimiterRemaining(limiterKey, adm.Remaining)
				if waited > 0 {
					c.metrics.RecordRateLimitWait(limiterKey, waited)
				}
			}
			return nil
		}

		if deadline, ok := ctx.Deadline(); ok && time.Now().Add(adm.RetryAfter).After(deadline) {
			if c.debug != nil && c.debug.Enabled && c.debug.LogRateLimit && c.logger != nil {
				c.logger.Warn("Rate limit exceeded", "requestID", requestID, "endpoint", endpoint, "requiredWait", adm.RetryAfter)
			}
			return ErrRateLimited
		}

		if c.debug != nil && c.debug.Enabled && c.debug.LogRateLimit && c.logger != nil {
			c.logger.Debug("Rate limit wait", "requestID", requestID, "endpoint", endpoint, "wait", adm.RetryAfter)
		}

		if err := sleepContext(ctx, adm.RetryAfter); err != nil {
			return err
		}
		waited += adm.RetryAfter
	}
}

// contextError classifies a finished context into the terminal error for
// this call. Deadline expiry and caller cancellation both end the call; no
// retry or admission wait survives either.
func (c *Client) contextError(ctx context.Context, requestID string, req *Request, resolvedURL string, attempt int, start time.Time) *ClientError {
	cause := ctx.Err()
	message := "overall deadline exceeded"
	if errors.Is(cause, context.Canceled) {
		message = "request canceled"
	}
	return c.newError(ErrorTypeTimeout, message, cause, requestID, req, resolvedURL, attempt, start)
}

// sleepContext waits for d or until the context ends, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resolveURL resolves the request URL against the configured base URL and
// validates the request shape.
func (c *Client) resolveURL(req *Request) (string, error) {
	if req == nil {
		return "", errors.New("request cannot be nil")
	}
	if err := req.buildErr; err != nil {
		return "", err
	}
	if req.Method() == "" {
		return "", errors.New("request method cannot be empty")
	}
	if req.URL() == "" {
		return "", errors.New("request URL cannot be empty")
	}

	u, err := url.Parse(req.URL())
	if err != nil {
		return "", fmt.Errorf("invalid request URL: %w", err)
	}
	if u.IsAbs() {
		return req.URL(), nil
	}

	if c.baseURL == "" {
		return "", errors.New("request URL must be absolute when no baseURL is configured")
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid baseURL: %w", err)
	}
	return base.ResolveReference(u).String(), nil
}

// newError builds a structured ClientError with request diagnostics.
func (c *Client) newError(errorType, message string, cause error, requestID string, req *Request, resolvedURL string, attempt int, start time.Time) *ClientError {
	method := ""
	if req != nil {
		method = req.Method()
	}

	return &ClientError{
		Type:       errorType,
		Message:    message,
		Cause:      cause,
		RequestID:  requestID,
		Method:     method,
		URL:        resolvedURL,
		Endpoint:   endpointFromURL(resolvedURL),
		Attempt:    attempt,
		MaxRetries: c.maxRetries,
		Timestamp:  time.Now(),
		Duration:   time.Since(start),
	}
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// ValidateConfigurationStrict panics if configuration is invalid.
func (c *Client) ValidateConfigurationStrict() {
	if err := c.ValidateConfiguration(); err != nil {
		panic(fmt.Sprintf("invalid client configuration: %v", err))
	}
}

// MustValidateConfiguration re-runs validation returning an error (no panic).
func (c *Client) MustValidateConfiguration() error {
	return c.ValidateConfiguration()
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func endpointFromURL(rawURL string) string {
	if rawURL == "" {
		return "unknown"
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)

	if u.Path != "" && u.Path != "/" {
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
