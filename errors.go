package ulango

import (
	"errors"
	"fmt"
	"time"
)

// Error type constants used in ClientError.Type.
const (
	// ErrorTypeValidation marks malformed requests, invalid configuration,
	// and response payloads that fail decoding or schema validation.
	// Validation failures are never retried.
	ErrorTypeValidation = "Validation"
	// ErrorTypeNetwork marks connection-level transport failures.
	ErrorTypeNetwork = "Network"
	// ErrorTypeTimeout marks deadline expirations: the overall request
	// deadline (terminal) or a single attempt's timeout (retryable).
	ErrorTypeTimeout = "Timeout"
	// ErrorTypeRateLimit marks admissions whose required wait exceeds the
	// remaining request deadline.
	ErrorTypeRateLimit = "RateLimit"
	// ErrorTypeHTTP marks non-2xx responses, retryable or not.
	ErrorTypeHTTP = "HTTP"
	// ErrorTypeMaxRetries marks exhausted retry budgets; Cause holds the
	// last attempt's failure.
	ErrorTypeMaxRetries = "MaxRetries"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrRateLimited is returned when an admission wait cannot complete
	// within the request deadline.
	ErrRateLimited = errors.New("ulango: rate limited")

	// ErrMaxRetriesExceeded is returned when all retry attempts are consumed.
	ErrMaxRetriesExceeded = errors.New("ulango: max retries exceeded")

	// ErrInvalidConfiguration is returned when construction-time validation
	// failed and the client is used anyway.
	ErrInvalidConfiguration = errors.New("ulango: invalid configuration")
)

// ClientError is the structured error produced by the client. Type selects
// the failure kind; the remaining fields carry request diagnostics.
type ClientError struct {
	Type       string
	Message    string
	Cause      error
	StatusCode int
	Body       []byte
	RetryAfter time.Duration
	RequestID  string
	Method     string
	URL        string
	Endpoint   string
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}

	var msg string
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Cause)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches other ClientErrors by Type, and the package sentinels for the
// kinds that have one, so errors.Is(err, ErrRateLimited) works on wrapped
// failures.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	switch target {
	case ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	case ErrMaxRetriesExceeded:
		return e.Type == ErrorTypeMaxRetries
	case ErrInvalidConfiguration:
		return e.Type == ErrorTypeValidation
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.RetryAfter > 0 {
		info += fmt.Sprintf("Retry After: %v\n", e.RetryAfter)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxRetries)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return hasErrorType(err, ErrorTypeValidation) }

// IsNetwork reports whether err is a connection-level failure.
func IsNetwork(err error) bool { return hasErrorType(err, ErrorTypeNetwork) }

// IsTimeout reports whether err is a deadline expiration.
func IsTimeout(err error) bool { return hasErrorType(err, ErrorTypeTimeout) }

// IsRateLimited reports whether err is a rate limit admission failure.
func IsRateLimited(err error) bool { return hasErrorType(err, ErrorTypeRateLimit) }

// IsHTTPError reports whether err carries a non-2xx HTTP status.
func IsHTTPError(err error) bool { return hasErrorType(err, ErrorTypeHTTP) }

// IsMaxRetries reports whether err marks an exhausted retry budget.
func IsMaxRetries(err error) bool { return hasErrorType(err, ErrorTypeMaxRetries) }

func hasErrorType(err error, errorType string) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr) && clientErr.Type == errorType
}

// HTTPStatus extracts the status code carried by err, if any. MaxRetries
// errors report the status of their last attempt through Cause.
func HTTPStatus(err error) (int, bool) {
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		return 0, false
	}
	if clientErr.StatusCode > 0 {
		return clientErr.StatusCode, true
	}
	if clientErr.Cause != nil {
		return HTTPStatus(clientErr.Cause)
	}
	return 0, false
}

// IsTransient determines if an error represents a transient failure that might
// succeed on retry. Returns true for network errors, timeouts, rate limiting,
// and 429/5xx responses. Returns false for validation failures and other 4xx
// responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeRateLimit:
			return true
		case ErrorTypeHTTP:
			return clientErr.StatusCode == 429 || clientErr.StatusCode >= 500
		case ErrorTypeMaxRetries:
			return IsTransient(clientErr.Cause)
		default:
			return false
		}
	}

	return false
}
