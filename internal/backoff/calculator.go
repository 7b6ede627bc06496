package backoff

import (
	"time"
)

// Calculator provides backoff calculation using configurable strategies.
// It centralizes delay math so the retry policy stays a pure decision layer.
type Calculator struct {
	strategy Strategy
}

// NewCalculator creates a new backoff calculator with the specified strategy.
func NewCalculator(strategy Strategy) *Calculator {
	return &Calculator{
		strategy: strategy,
	}
}

// Calculate computes the backoff duration for the given attempt and parameters.
// It delegates to the configured strategy for the actual calculation.
func (c *Calculator) Calculate(attempt int, base, maxDelay time.Duration, jitterMin, jitterMax float64) time.Duration {
	return c.strategy.Calculate(attempt, base, maxDelay, jitterMin, jitterMax)
}

// SetStrategy updates the backoff strategy used by this calculator.
func (c *Calculator) SetStrategy(strategy Strategy) {
	c.strategy = strategy
}

// GetStrategy returns the current strategy being used by this calculator.
func (c *Calculator) GetStrategy() Strategy {
	return c.strategy
}

// GetFullJitterCalculator returns a calculator configured with the full-jitter
// strategy. This is the default used by the retry policy.
func GetFullJitterCalculator() *Calculator {
	return NewCalculator(FullJitterStrategy{})
}

// GetDecorrelatedJitterCalculator returns a calculator configured with
// AWS-style decorrelated jitter.
func GetDecorrelatedJitterCalculator() *Calculator {
	return NewCalculator(DecorrelatedJitterStrategy{})
}
