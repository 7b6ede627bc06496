package ulango

import (
	"net/url"
	"sync"
	"time"
)

// KeyFunc derives a rate limiter key from a request, letting one client hold
// independent budgets per host, route, or any custom dimension.
type KeyFunc func(req *Request) string

// RateLimiterRegistry routes requests to per-key limiters with an optional
// fallback. Each registered limiter keeps its own serialized window.
type RateLimiterRegistry struct {
	limiters map[string]Limiter
	keyFunc  KeyFunc
	fallback Limiter
	mutex    sync.RWMutex
}

// NewRateLimiterRegistry creates a registry with the given key function and
// fallback limiter. A nil fallback leaves unmatched requests unlimited.
func NewRateLimiterRegistry(keyFunc KeyFunc, fallback Limiter) *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[string]Limiter),
		keyFunc:  keyFunc,
		fallback: fallback,
	}
}

// RegisterLimiter adds a limiter for the given key.
func (r *RateLimiterRegistry) RegisterLimiter(key string, limiter Limiter) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.limiters[key] = limiter
}

// GetLimiter returns the limiter for the given request, using the key
// function to determine the key. If no specific limiter is registered the
// fallback is returned.
func (r *RateLimiterRegistry) GetLimiter(req *Request) (Limiter, string) {
	if r.keyFunc == nil {
		if r.fallback != nil {
			return r.fallback, "default"
		}
		return nil, "default"
	}

	key := r.keyFunc(req)

	r.mutex.RLock()
	limiter, exists := r.limiters[key]
	r.mutex.RUnlock()

	if exists {
		return limiter, key
	}

	if r.fallback != nil {
		return r.fallback, "default"
	}

	return nil, key
}

// AdmitAt checks admission for the request against its limiter at the given
// instant. Requests without a limiter are admitted unconditionally.
func (r *RateLimiterRegistry) AdmitAt(req *Request, now time.Time) (Admission, string) {
	limiter, key := r.GetLimiter(req)
	if limiter == nil {
		return Admission{OK: true}, key
	}
	return limiter.AdmitAt(now), key
}

// DefaultHostKeyFunc generates a key based on the request host.
func DefaultHostKeyFunc(req *Request) string {
	if u, err := url.Parse(req.URL()); err == nil && u.Host != "" {
		return "host:" + u.Host
	}
	return "host:unknown"
}

// DefaultRouteKeyFunc generates a key based on the request method and path.
func DefaultRouteKeyFunc(req *Request) string {
	path := "/"
	if u, err := url.Parse(req.URL()); err == nil && u.Path != "" {
		path = u.Path
	}
	return "route:" + req.Method() + ":" + path
}

// DefaultHostRouteKeyFunc generates a key combining host and route.
func DefaultHostRouteKeyFunc(req *Request) string {
	host := "unknown"
	path := "/"
	if u, err := url.Parse(req.URL()); err == nil {
		if u.Host != "" {
			host = u.Host
		}
		if u.Path != "" {
			path = u.Path
		}
	}
	return "host_route:" + host + ":" + req.Method() + ":" + path
}
