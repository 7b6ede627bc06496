package ulango

import (
	"context"
	"sync"
	"time"
)

// Admission reports the outcome of a rate limit check. It states facts, not
// decisions: callers choose whether to wait, fail, or try another limiter.
type Admission struct {
	// OK is true when the attempt was admitted and its timestamp recorded.
	OK bool
	// RetryAfter is the wait until a slot opens, positive iff OK is false.
	RetryAfter time.Duration
	// Remaining is the number of free slots left in the window.
	Remaining int
}

// Limiter admits attempts against a rate budget at an explicit instant.
// Implementations must be safe for concurrent use.
type Limiter interface {
	AdmitAt(now time.Time) Admission
}

// RateLimiter is a sliding-window-log limiter: at most maxCalls admissions
// within any rolling window. The timestamp log is the only mutable state and
// every access is serialized by the mutex, so one limiter can back any
// number of concurrent requests.
type RateLimiter struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	stamps   []time.Time
}

// NewRateLimiter creates a sliding-window limiter admitting maxCalls per
// window. Non-positive arguments fall back to 1 call per second.
func NewRateLimiter(maxCalls int, window time.Duration) *RateLimiter {
	if maxCalls <= 0 {
		maxCalls = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{
		maxCalls: maxCalls,
		window:   window,
		stamps:   make([]time.Time, 0, maxCalls),
	}
}

// Admit checks admission at the current time.
func (rl *RateLimiter) Admit() Admission {
	return rl.AdmitAt(time.Now())
}

// AdmitAt checks admission at an explicit instant: timestamps that have left
// the window are evicted, then the attempt is admitted and recorded if a
// slot is free. A denied attempt is told exactly how long until the oldest
// recorded timestamp expires. The log never exceeds maxCalls entries.
func (rl *RateLimiter) AdmitAt(now time.Time) Admission {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.evict(now)

	if len(rl.stamps) < rl.maxCalls {
		rl.stamps = append(rl.stamps, now)
		return Admission{OK: true, Remaining: rl.maxCalls - len(rl.stamps)}
	}

	oldest := rl.stamps[0]
	return Admission{RetryAfter: oldest.Add(rl.window).Sub(now)}
}

// evict drops timestamps at or beyond window age. A stamp aged exactly one
// window is dropped, so a slot opens at oldest+window sharp. Callers must
// hold mu.
func (rl *RateLimiter) evict(now time.Time) {
	cutoff := now.Add(-rl.window)
	idx := 0
	for idx < len(rl.stamps) && !rl.stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		rl.stamps = append(rl.stamps[:0], rl.stamps[idx:]...)
	}
}

// Remaining returns the number of free slots at the current time without
// consuming one.
func (rl *RateLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.evict(time.Now())
	return rl.maxCalls - len(rl.stamps)
}

// Wait blocks until an admission is granted. It returns ErrRateLimited
// without sleeping when the required wait cannot complete before the context
// deadline, and ctx.Err() when the context ends during the wait. After each
// wait the admission is re-checked: a freed slot may have been taken by
// another goroutine.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		adm := rl.Admit()
		if adm.OK {
			return nil
		}

		if deadline, ok := ctx.Deadline(); ok && time.Now().Add(adm.RetryAfter).After(deadline) {
			return ErrRateLimited
		}

		timer := time.NewTimer(adm.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
