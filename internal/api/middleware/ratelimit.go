package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yaroslav/modekeeper/internal/metrics"
)

// RateLimiter implements token bucket rate limiting.
//
// This struct manages one limiter per identifier (client IP) and drops
// limiters that have refilled completely.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a new rate limiter.
//
// Parameters:
//   - rps: Requests per second allowed
//   - burst: Burst size (number of requests that can be made in quick succession)
//
// Returns:
//   - Configured RateLimiter
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// Allow checks if a request from the given identifier should be allowed.
func (rl *RateLimiter) Allow(identifier string) bool {
	rl.mu.Lock()
	limiter, exists := rl.limiters[identifier]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[identifier] = limiter
	}
	rl.mu.Unlock()

	return limiter.Allow()
}

// Cleanup removes limiters that have full tokens (haven't been used).
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for identifier, limiter := range rl.limiters {
		if limiter.Tokens() >= float64(rl.burst) {
			delete(rl.limiters, identifier)
		}
	}
}

// Len returns the number of tracked identifiers.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// cleanupLoop prevents one-time IPs from accumulating. It exits when done
// is closed.
func (rl *RateLimiter) cleanupLoop(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// RateLimitByIP creates middleware that rate limits requests by client IP address.
//
// Parameters:
//   - rps: Requests per second per IP
//   - burst: Burst size per IP
//   - done: Closing it stops the background cleanup
//
// Returns:
//   - Gin middleware handler function
//
// Example:
//
//	router.Use(RateLimitByIP(10.0, 20, ctx.Done())) // 10 req/s, burst of 20
func RateLimitByIP(rps float64, burst int, done <-chan struct{}) gin.HandlerFunc {
	limiter := NewRateLimiter(rps, burst)
	go limiter.cleanupLoop(time.Minute, done)

	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			metrics.RateLimitChecks.WithLabelValues("ip", "false").Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Rate limit exceeded",
			})
			c.Abort()
			return
		}

		metrics.RateLimitChecks.WithLabelValues("ip", "true").Inc()
		c.Next()
	}
}
