package ulango

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	internalbackoff "github.com/ambiyansyah-risyal/ulango/internal/backoff"
)

// RetryOutcome is the verdict of a retry decision.
type RetryOutcome int

const (
	// RetryAfterDelay grants another attempt after the returned delay.
	RetryAfterDelay RetryOutcome = iota
	// RetryExhausted means the failure was retryable but the attempt budget
	// is spent.
	RetryExhausted
	// RetryNonRetryable means the failure kind is terminal regardless of
	// remaining attempts.
	RetryNonRetryable
)

// String returns the outcome name for logging.
func (o RetryOutcome) String() string {
	switch o {
	case RetryAfterDelay:
		return "retry"
	case RetryExhausted:
		return "exhausted"
	case RetryNonRetryable:
		return "non-retryable"
	default:
		return "unknown"
	}
}

// BackoffStrategy selects the delay algorithm used between retries.
type BackoffStrategy int

const (
	// FullJitter scales min(maxBackoff, base*2^attempt) by a uniform factor
	// in [jitterMin, jitterMax]. This is the default.
	FullJitter BackoffStrategy = iota
	// DecorrelatedJitter draws from a widening window per the AWS
	// exponential-backoff-and-jitter article.
	DecorrelatedJitter
)

// RetryPolicy reports retry eligibility and delays. It holds no per-request
// state: the same policy value serves all concurrent calls.
type RetryPolicy struct {
	maxRetries      int
	initialBackoff  time.Duration
	maxBackoff      time.Duration
	jitterMin       float64
	jitterMax       float64
	retryableStatus map[int]bool
	calculator      *internalbackoff.Calculator
}

// NewRetryPolicy creates a policy with full-jitter backoff, the default
// retryable status set (429 and 500-599), and jitter bounds [0.5, 1.0].
func NewRetryPolicy(maxRetries int, initialBackoff, maxBackoff time.Duration) *RetryPolicy {
	return &RetryPolicy{
		maxRetries:      maxRetries,
		initialBackoff:  initialBackoff,
		maxBackoff:      maxBackoff,
		jitterMin:       0.5,
		jitterMax:       1.0,
		retryableStatus: DefaultRetryableStatusCodes(),
		calculator:      internalbackoff.GetFullJitterCalculator(),
	}
}

// NewRetryPolicyWithStrategy creates a policy using the given backoff
// strategy and jitter bounds.
func NewRetryPolicyWithStrategy(maxRetries int, initialBackoff, maxBackoff time.Duration, jitterMin, jitterMax float64, strategy BackoffStrategy) *RetryPolicy {
	policy := NewRetryPolicy(maxRetries, initialBackoff, maxBackoff)
	policy.jitterMin = jitterMin
	policy.jitterMax = jitterMax
	policy.calculator = calculatorFor(strategy)
	return policy
}

func calculatorFor(strategy BackoffStrategy) *internalbackoff.Calculator {
	switch strategy {
	case DecorrelatedJitter:
		return internalbackoff.GetDecorrelatedJitterCalculator()
	default:
		return internalbackoff.GetFullJitterCalculator()
	}
}

// DefaultRetryableStatusCodes returns the status codes retried when no
// explicit set is configured: 429 plus the whole 5xx range.
func DefaultRetryableStatusCodes() map[int]bool {
	codes := map[int]bool{http.StatusTooManyRequests: true}
	for code := 500; code <= 599; code++ {
		codes[code] = true
	}
	return codes
}

// MaxRetries returns the retry budget. Total attempts are MaxRetries()+1.
func (p *RetryPolicy) MaxRetries() int { return p.maxRetries }

// RetryableStatus reports whether a response status code is in the
// retryable set.
func (p *RetryPolicy) RetryableStatus(code int) bool {
	return p.retryableStatus[code]
}

// Decide returns the verdict for a failed attempt. attempt numbering starts
// at 0 for the first retry decision. Kind precedence: a non-retryable cause
// is terminal even when attempts remain. When the cause carries a
// server-directed Retry-After hint, that delay replaces the computed backoff.
func (p *RetryPolicy) Decide(attempt int, cause error) (time.Duration, RetryOutcome) {
	if !p.retryableCause(cause) {
		return 0, RetryNonRetryable
	}
	if attempt >= p.maxRetries {
		return 0, RetryExhausted
	}
	if hint := retryAfterHint(cause); hint > 0 {
		return hint, RetryAfterDelay
	}
	return p.Delay(attempt), RetryAfterDelay
}

// Delay returns the backoff delay for the given retry attempt.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	return p.calculator.Calculate(attempt, p.initialBackoff, p.maxBackoff, p.jitterMin, p.jitterMax)
}

// retryableCause classifies the failure kind. Network failures and attempt
// timeouts are retryable; HTTP failures consult the status set; validation,
// rate limit, and overall-deadline failures are terminal. An unwrapped
// plain error is treated as a network-level failure.
func (p *RetryPolicy) retryableCause(cause error) bool {
	if cause == nil {
		return false
	}

	var clientErr *ClientError
	if !errors.As(cause, &clientErr) {
		return true
	}

	switch clientErr.Type {
	case ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	case ErrorTypeHTTP:
		return p.retryableStatus[clientErr.StatusCode]
	default:
		return false
	}
}

// retryAfterHint extracts a server-directed delay attached to the failure.
func retryAfterHint(cause error) time.Duration {
	var clientErr *ClientError
	if errors.As(cause, &clientErr) {
		return clientErr.RetryAfter
	}
	return 0
}

// parseRetryAfter parses a Retry-After header value. It supports both
// delay-seconds format and HTTP-date format, capped at 1 hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	// Try parsing as seconds first
	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Hour {
				delay = time.Hour
			}
			return delay
		}
		return 0
	}

	// Try parsing as HTTP-date
	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}

	return 0
}
