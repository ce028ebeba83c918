// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/olegiv/eventboard/internal/apperr"
)

// limiterCache is a generic rate limiter cache with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// newLimiterCache creates a new limiter cache.
func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// get returns the rate limiter for a specific key, creating one if needed.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()

	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// clearIfExceeds clears all entries if the cache exceeds maxSize.
// Returns true if the cache was cleared.
func (lc *limiterCache[K]) clearIfExceeds(maxSize int) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[K]*rate.Limiter)
		return true
	}
	return false
}

func (lc *limiterCache[K]) len() int {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return len(lc.limiters)
}

// DefaultThrottleMaxEntries bounds the number of tracked client IPs.
const DefaultThrottleMaxEntries = 10000

// IPThrottle is a per-IP token bucket used as flood control in front of the
// auth routes. Attempt counting per action is done by security.RateLimiter.
type IPThrottle struct {
	cache      *limiterCache[string]
	maxEntries int
}

// NewIPThrottle creates a throttle allowing rps requests per second per IP
// with the given burst.
func NewIPThrottle(rps float64, burst int) *IPThrottle {
	if rps <= 0 {
		rps = 0.5
	}
	if burst <= 0 {
		burst = 5
	}
	return &IPThrottle{
		cache:      newLimiterCache[string](rps, burst),
		maxEntries: DefaultThrottleMaxEntries,
	}
}

// Allow reports whether ip may make another request now.
func (t *IPThrottle) Allow(ip string) bool {
	return t.cache.get(ip).Allow()
}

// Sweep drops all buckets once the cache grows past its bound.
func (t *IPThrottle) Sweep() bool {
	if t.cache.clearIfExceeds(t.maxEntries) {
		slog.Info("cleared IP throttle buckets due to size")
		return true
	}
	return false
}

// Middleware throttles state-changing requests.
func (t *IPThrottle) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			if !t.Allow(ip) {
				slog.Warn("request throttled", "ip", ip, "path", r.URL.Path)
				WriteError(w, r, apperr.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the client address without its port. Proxy headers are
// honoured only when chi's RealIP middleware has already rewritten
// RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
