package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/strateval/internal/metrics"
)

// rateLimiterEntry pairs a token bucket with the time it last served a request
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// RateLimiter applies a per-IP token bucket to incoming requests
type RateLimiter struct {
	entries sync.Map // map[string]*rateLimiterEntry
	rps     rate.Limit
	burst   int
}

// NewRateLimiter creates a rate limiter allowing rps requests per second with
// the given burst per client IP
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
	}
}

// allow checks if a request from the given IP is allowed
func (rl *RateLimiter) allow(ip string) bool {
	val, _ := rl.entries.LoadOrStore(ip, &rateLimiterEntry{
		limiter: rate.NewLimiter(rl.rps, rl.burst),
	})
	entry := val.(*rateLimiterEntry)

	entry.mu.Lock()
	entry.lastSeen = time.Now()
	entry.mu.Unlock()

	return entry.limiter.Allow()
}

// Middleware returns a Gin middleware that applies rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.allow(ip) {
			retryAfter := 1.0
			if rl.rps > 0 {
				retryAfter = 1.0 / float64(rl.rps)
			}
			log.Warn().
				Str("ip", ip).
				Float64("rate_per_second", float64(rl.rps)).
				Int("burst", rl.burst).
				Msg("Rate limit exceeded")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"message":     fmt.Sprintf("Maximum %g requests per second allowed", float64(rl.rps)),
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CleanupOldEntries removes IP entries that have been idle longer than maxAge
func (rl *RateLimiter) CleanupOldEntries(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)

	rl.entries.Range(func(key, value interface{}) bool {
		entry := value.(*rateLimiterEntry)
		entry.mu.Lock()
		stale := entry.lastSeen.Before(cutoff)
		entry.mu.Unlock()

		if stale {
			rl.entries.Delete(key)
		}
		return true
	})
}

// StartCleanupWorker periodically drops idle IP entries until the context is
// cancelled. Run it in its own goroutine.
func (rl *RateLimiter) StartCleanupWorker(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.CleanupOldEntries(30 * time.Minute)
			log.Debug().Msg("Rate limiter cleanup completed")
		}
	}
}

// MetricsMiddleware records request count and latency for every route. Paths
// are normalized so each evaluation ID does not become its own label.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		durationMs := float64(time.Since(start).Milliseconds())
		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordAPIRequest(c.Request.Method, metrics.NormalizePath(path), status, durationMs)
	}
}
