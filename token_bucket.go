package ulango

import (
	"time"

	"golang.org/x/time/rate"
)

// TokenBucketLimiter adapts golang.org/x/time/rate to the Limiter interface.
// It trades the sliding window's exact per-slot waits for smoother refill:
// tokens accrue continuously at rps up to burst.
type TokenBucketLimiter struct {
	lim *rate.Limiter
}

// NewTokenBucketLimiter creates a token bucket limiter refilling at rps
// tokens per second with the given burst capacity. Non-positive arguments
// fall back to 1.
func NewTokenBucketLimiter(rps float64, burst int) *TokenBucketLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{
		lim: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Admit checks admission at the current time.
func (tb *TokenBucketLimiter) Admit() Admission {
	return tb.AdmitAt(time.Now())
}

// AdmitAt reserves a token at the given instant. When the token is not
// immediately available the reservation is cancelled and the refill delay
// reported, leaving the bucket unchanged.
func (tb *TokenBucketLimiter) AdmitAt(now time.Time) Admission {
	r := tb.lim.ReserveN(now, 1)
	if !r.OK() {
		return Admission{RetryAfter: rate.InfDuration}
	}

	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
		return Admission{RetryAfter: delay}
	}

	return Admission{OK: true, Remaining: int(tb.lim.TokensAt(now))}
}
