package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robcowart/onboard/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how often idle client limiters are swept
const idleLimiterTTL = 5 * time.Minute

// clientLimiters holds one token bucket per client IP
type clientLimiters struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func (cl *clientLimiters) get(key string) *rate.Limiter {
	if limiter, ok := cl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	actual, _ := cl.limiters.LoadOrStore(key, rate.NewLimiter(cl.rate, cl.burst))
	cl.sweep()
	return actual.(*rate.Limiter)
}

// sweep drops limiters whose buckets have refilled, which only happens once
// a client has gone quiet
func (cl *clientLimiters) sweep() {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if time.Since(cl.lastCleanup) < idleLimiterTTL {
		return
	}
	cl.lastCleanup = time.Now()

	cl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(cl.burst) {
			cl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware limits each client IP to the configured number of
// requests per window. It is a no-op when rate limiting is disabled.
func RateLimitMiddleware(cfg *config.Config, logger *zap.Logger) gin.HandlerFunc {
	if !cfg.Security.RateLimitEnabled || cfg.Security.RateLimitRequests <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	window := cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	requests := cfg.Security.RateLimitRequests

	cl := &clientLimiters{
		rate:        rate.Limit(float64(requests) / window.Seconds()),
		burst:       requests,
		lastCleanup: time.Now(),
	}

	return func(c *gin.Context) {
		limiter := cl.get(c.ClientIP())
		if limiter.Allow() {
			c.Next()
			return
		}

		reservation := limiter.Reserve()
		retryAfter := max(int(reservation.Delay().Seconds()), 1)
		reservation.Cancel()

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.Header("X-RateLimit-Limit", strconv.Itoa(requests))
		c.Header("X-RateLimit-Window", window.String())

		logger.Warn("Rate limit exceeded",
			zap.String("ip", c.ClientIP()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("retry_after", retryAfter),
		)

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	}
}
