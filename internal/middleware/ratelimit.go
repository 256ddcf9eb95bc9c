// ratelimit.go provides Gin middleware enforcing a fixed-window per-IP request
// limit, returning 429 when the window budget is exhausted.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig holds configuration for the fixed-window limiter.
type RateLimitConfig struct {
	// MaxRequests is the number of requests allowed per window per client.
	MaxRequests int
	// Window is the fixed window length. The window is anchored at the
	// client's first request, not at wall-clock boundaries.
	Window time.Duration
	// CleanupInterval is how often stale client entries are removed.
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns the portal-wide default: 60 requests per
// 15 minutes per client IP.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests:     60,
		Window:          15 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// windowEntry tracks one client's current window.
type windowEntry struct {
	count       int
	windowStart time.Time
}

// RateLimiter implements a fixed-window request limiter keyed by client.
type RateLimiter struct {
	config  RateLimitConfig
	entries map[string]*windowEntry
	mu      sync.Mutex
	stopCh  chan struct{}
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*windowEntry),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup periodically removes entries whose window has long passed.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, entry := range rl.entries {
				if now.Sub(entry.windowStart) > 2*rl.config.Window {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// Allow records a request for key and reports whether it is within budget.
// The second return is how many seconds remain until the window resets, for
// the Retry-After header.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.entries[key]
	if !exists || now.Sub(entry.windowStart) >= rl.config.Window {
		rl.entries[key] = &windowEntry{count: 1, windowStart: now}
		return true, int(rl.config.Window.Seconds())
	}

	retryAfter := int((rl.config.Window - now.Sub(entry.windowStart)).Seconds()) + 1
	if entry.count >= rl.config.MaxRequests {
		return false, retryAfter
	}
	entry.count++
	return true, retryAfter
}

// Remaining reports how many requests are left in the client's current window.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.entries[key]
	if !exists || time.Since(entry.windowStart) >= rl.config.Window {
		return rl.config.MaxRequests
	}
	left := rl.config.MaxRequests - entry.count
	if left < 0 {
		return 0
	}
	return left
}

// RateLimitMiddleware creates a Gin middleware that limits requests per
// client IP.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := clientKey(c)

		allowed, retryAfter := limiter.Allow(key)
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-RateLimit-Remaining", "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.config.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))

		c.Next()
	}
}

// clientKey derives the rate-limit key from the client IP. ClientIP respects
// the trusted-proxy configuration on the engine, so deployments behind a load
// balancer see real client addresses rather than the balancer's.
func clientKey(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
