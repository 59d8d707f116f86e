package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimiter provides per-client rate limiting.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*clientLimiter
	rate   rate.Limit
	burst  int
	now    func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter allowing perSecond requests per key
// with the given burst. Non-positive values use 10 requests per second with a
// burst of 20.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &RateLimiter{
		limits: make(map[string]*clientLimiter),
		rate:   rate.Limit(perSecond),
		burst:  burst,
		now:    time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cl, ok := rl.limits[key]; ok {
		cl.lastSeen = rl.now()
		return cl.limiter
	}

	cl := &clientLimiter{
		limiter:  rate.NewLimiter(rl.rate, rl.burst),
		lastSeen: rl.now(),
	}
	rl.limits[key] = cl
	return cl.limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// Wait waits for a request to be allowed.
// Returns error if the context is cancelled or rate limit exceeded.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.getLimiter(key).Wait(ctx)
}

// Prune drops limiters not used for idle and returns how many were removed.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	removed := 0
	for key, cl := range rl.limits {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.limits, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limits)
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"code":  "RATE_LIMIT_EXCEEDED",
					"error": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}
