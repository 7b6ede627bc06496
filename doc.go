// Package ulango provides a type-safe resilient HTTP client with composable
// reliability primitives:
//
//   - Result values that carry success or a structured error, never both
//   - Rate limiting (sliding window log, token bucket, per-key registries)
//   - Retries with exponential backoff + jitter and Retry-After awareness
//   - Typed responses: generic JSON decoding plus schema validation
//   - Middleware chain for cross-cutting concerns (auth, logging, tracing, etc.)
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - Every failure is classified; callers branch on kind, not string matching
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via user supplied middleware & pluggable transport / metrics
//
// Typical usage:
//
//	client := ulango.New(
//	    ulango.WithMaxRetries(3),
//	    ulango.WithRateLimit(10, time.Second),
//	    ulango.WithRetryableStatusCodes(429, 503),
//	)
//	result := client.Get(ctx, "https://api.example.com/data")
//	if result.IsErr() {
//	    // inspect with ulango.IsTimeout / IsRateLimited / HTTPStatus
//	}
//
// Every attempt, retries included, passes rate limit admission before it
// reaches the wire, so retry traffic spends budget like first-time traffic.
// The library avoids opinionated logging: provide a Logger (e.g. via
// WithSimpleLogger) + enable debug flags selectively (WithDebug /
// WithDebugConfig) for insight without noise.
package ulango
