package middleware

import (
	"net/http"
	"sync"
	"time"

	apperrors "gemini-adapter-go/internal/errors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// ttlLimiterCache keeps one limiter per caller with opportunistic
// sweeping so abandoned keys do not accumulate.
type ttlLimiterCache struct {
	mu        sync.Mutex
	items     map[string]*limiterEntry
	ttl       time.Duration
	lastSweep time.Time
}

func newTTLLimiterCache(ttl time.Duration) *ttlLimiterCache {
	return &ttlLimiterCache{items: make(map[string]*limiterEntry), ttl: ttl}
}

func (c *ttlLimiterCache) get(key string, makeFn func() *rate.Limiter) *rate.Limiter {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		e.lastSeen = now
		return e.lim
	}
	lim := makeFn()
	c.items[key] = &limiterEntry{lim: lim, lastSeen: now}
	if c.lastSweep.IsZero() || now.Sub(c.lastSweep) > 2*time.Minute {
		c.sweepLocked(now)
		c.lastSweep = now
	}
	return lim
}

func (c *ttlLimiterCache) sweepLocked(now time.Time) {
	for k, e := range c.items {
		if now.Sub(e.lastSeen) > c.ttl {
			delete(c.items, k)
		}
	}
}

// RateLimiter enforces a per-caller token bucket, keyed by API key when
// present and client IP otherwise. rps<=0 disables limiting.
func RateLimiter(rps, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = rps
	}
	cache := newTTLLimiterCache(15 * time.Minute)

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			key = c.ClientIP()
		}
		lim := cache.get(key, func() *rate.Limiter {
			return rate.NewLimiter(rate.Limit(rps), burst)
		})
		if !lim.Allow() {
			apiErr := apperrors.New(http.StatusTooManyRequests,
				"rate_limit_exceeded", "rate_limit_error", "Rate limit exceeded")
			payload, err := apiErr.ToJSON(ErrorFormatFor(c))
			if err != nil {
				c.AbortWithStatus(http.StatusTooManyRequests)
				return
			}
			c.Data(http.StatusTooManyRequests, "application/json", payload)
			c.Abort()
			return
		}
		c.Next()
	}
}
