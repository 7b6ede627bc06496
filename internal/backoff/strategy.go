package backoff

import (
	"math/rand"
	"time"
)

// Strategy defines the interface for backoff calculation algorithms.
// This allows for extensible backoff strategies while maintaining consistent behavior.
type Strategy interface {
	// Calculate returns the backoff duration for the given retry attempt.
	// Attempt numbering starts at 0 for the first retry. jitterMin and
	// jitterMax bound the random scaling factor applied to the nominal delay.
	Calculate(attempt int, base, maxDelay time.Duration, jitterMin, jitterMax float64) time.Duration
}

// FullJitterStrategy implements capped exponential backoff with full jitter:
// the nominal delay min(maxDelay, base*2^attempt) is scaled by a uniform
// random factor drawn from [jitterMin, jitterMax].
type FullJitterStrategy struct{}

// Calculate implements the Strategy interface for full-jitter backoff.
func (s FullJitterStrategy) Calculate(attempt int, base, maxDelay time.Duration, jitterMin, jitterMax float64) time.Duration {
	nominal := Nominal(attempt, base, maxDelay)

	jitterMin, jitterMax = clampJitterBounds(jitterMin, jitterMax)
	factor := jitterMin
	if span := jitterMax - jitterMin; span > 0 {
		factor += rand.Float64() * span
	}
	return time.Duration(float64(nominal) * factor)
}

// DecorrelatedJitterStrategy implements decorrelated jitter as per the AWS
// architecture blog. It draws from a widening window instead of scaling a
// fixed nominal delay, so the jitter bounds are not used.
type DecorrelatedJitterStrategy struct{}

// Calculate implements the Strategy interface for decorrelated jitter.
func (s DecorrelatedJitterStrategy) Calculate(attempt int, base, maxDelay time.Duration, _, _ float64) time.Duration {
	if attempt <= 0 {
		return base
	}

	// Prevent overflow by limiting attempt
	if attempt > 10 {
		attempt = 10
	}

	// Stateless variant of the AWS formula: draw from
	// [base, min(maxDelay, base*3^attempt)].
	lower := float64(base)
	upper := lower * Pow(3.0, attempt)

	maxDelayFloat := float64(maxDelay)
	if upper > maxDelayFloat || upper < 0 {
		upper = maxDelayFloat
	}
	if upper < lower {
		upper = lower
	}

	delay := lower + rand.Float64()*(upper-lower)

	result := time.Duration(delay)
	if result < 0 || result > maxDelay {
		result = maxDelay
	}
	return result
}

// Nominal returns the un-jittered delay min(maxDelay, base*2^attempt).
// It is exported so callers can verify jittered delays against the bound.
func Nominal(attempt int, base, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	nominal := time.Duration(float64(base) * Pow(2.0, attempt))
	if nominal < 0 || nominal > maxDelay {
		nominal = maxDelay
	}
	return nominal
}

// clampJitterBounds forces the jitter bounds into [0, 1] with min <= max.
func clampJitterBounds(jitterMin, jitterMax float64) (float64, float64) {
	if jitterMin < 0 {
		jitterMin = 0
	}
	if jitterMax > 1 {
		jitterMax = 1
	}
	if jitterMax < jitterMin {
		jitterMax = jitterMin
	}
	return jitterMin, jitterMax
}

// Pow calculates base^exponent using integer exponentiation.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
