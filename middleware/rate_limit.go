package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// clientWindow tracks request counts for one client IP
type clientWindow struct {
	Count   int
	FirstAt time.Time
}

// RateLimiter limits mutating API requests per client IP over a fixed
// window. Constructed explicitly and attached per route group.
type RateLimiter struct {
	mu           sync.Mutex
	windows      map[string]*clientWindow
	maxRequests  int
	windowPeriod time.Duration
	stopCh       chan struct{}
}

// NewRateLimiter creates a rate limiter allowing maxRequests per
// windowPeriod for each client IP
func NewRateLimiter(maxRequests int, windowPeriod time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows:      make(map[string]*clientWindow),
		maxRequests:  maxRequests,
		windowPeriod: windowPeriod,
		stopCh:       make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup periodically drops expired windows
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	for ip, window := range rl.windows {
		if now.Sub(window.FirstAt) > rl.windowPeriod {
			delete(rl.windows, ip)
		}
	}
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	close(rl.stopCh)
}

// allow records a request for ip and reports whether it fits the window
func (rl *RateLimiter) allow(ip string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	window, exists := rl.windows[ip]
	if !exists || now.Sub(window.FirstAt) > rl.windowPeriod {
		rl.windows[ip] = &clientWindow{Count: 1, FirstAt: now}
		return true, rl.maxRequests - 1, 0
	}

	if window.Count >= rl.maxRequests {
		return false, 0, rl.windowPeriod - now.Sub(window.FirstAt)
	}
	window.Count++
	return true, rl.maxRequests - window.Count, 0
}

// Middleware enforces the limit and sets rate-limit headers
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		allowed, remaining, retryAfter := rl.allow(ip)

		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))

		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": fmt.Sprintf("Too many requests. Try again in %d second(s).", int(retryAfter.Seconds())),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
