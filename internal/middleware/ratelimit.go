package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/folio/internal/pkg/metrics"
	"github.com/mx-space/folio/internal/pkg/response"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	rateLimitKeyPrefix = "folio:rate_limit:"
	rateLimitWindow    = time.Second
	rateLimitMessage   = "too many requests, slow down"
	maxTrackedLimiters = 10000
	defaultRatePerSec  = 10
	defaultRateBurst   = 20
)

// WindowCounter counts hits in a fixed window shared across instances.
type WindowCounter interface {
	CountInWindow(ctx context.Context, key string, window time.Duration, now time.Time) (int64, error)
}

// RateLimitOptions configures RateLimit. A nil Counter selects the
// in-process limiter.
type RateLimitOptions struct {
	// Name scopes the shared counters so separate limiters do not add up.
	Name      string
	Counter   WindowCounter
	PerSecond int
	Burst     int
	Logger    *zap.Logger
}

// RateLimit throttles requests per client IP. With Redis it uses a fixed
// one-second window allowing PerSecond+Burst hits; otherwise a token bucket
// per IP. Admin requests and Redis failures pass through.
func RateLimit(opts RateLimitOptions) gin.HandlerFunc {
	if opts.PerSecond <= 0 {
		opts.PerSecond = defaultRatePerSec
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultRateBurst
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	local := newLimiterCache(float64(opts.PerSecond), opts.Burst)
	limit := int64(opts.PerSecond + opts.Burst)
	prefix := rateLimitKeyPrefix
	if opts.Name != "" {
		prefix += opts.Name + ":"
	}

	return func(c *gin.Context) {
		if IsAdmin(c) {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		if opts.Counter != nil {
			count, err := opts.Counter.CountInWindow(c.Request.Context(), prefix+ip, rateLimitWindow, time.Now())
			if err != nil {
				opts.Logger.Warn("rate limit counter unavailable", zap.Error(err))
				c.Next()
				return
			}
			if count > limit {
				reject(c, "redis")
				return
			}
			c.Next()
			return
		}

		local.clearIfExceeds(maxTrackedLimiters)
		if !local.get(ip).Allow() {
			reject(c, "memory")
			return
		}
		c.Next()
	}
}

func reject(c *gin.Context, backend string) {
	metrics.RateLimited.WithLabelValues(backend).Inc()
	c.Header("Retry-After", "1")
	response.TooManyRequests(c, rateLimitMessage)
}

// limiterCache holds one token bucket per key.
type limiterCache struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newLimiterCache(rps float64, burst int) *limiterCache {
	return &limiterCache{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (lc *limiterCache) get(key string) *rate.Limiter {
	lc.mu.RLock()
	limiter, ok := lc.limiters[key]
	lc.mu.RUnlock()
	if ok {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if limiter, ok = lc.limiters[key]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// clearIfExceeds drops every bucket once more than maxSize keys are tracked.
func (lc *limiterCache) clearIfExceeds(maxSize int) {
	lc.mu.RLock()
	n := len(lc.limiters)
	lc.mu.RUnlock()
	if n <= maxSize {
		return
	}
	lc.mu.Lock()
	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[string]*rate.Limiter)
	}
	lc.mu.Unlock()
}
