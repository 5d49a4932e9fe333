package middleware

import (
	"context"
	"strconv"
	"time"

	apperrors "github.com/brroMonta/gifting/internal/errors"
	"github.com/brroMonta/gifting/internal/metrics"
	"github.com/gin-gonic/gin"
)

// RateLimiter counts hits per key in a fixed window. pkg/redis.Client satisfies it.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error)
}

// RateLimit limits requests per client IP. A nil limiter or a non-positive
// limit disables it, and limiter errors let the request through.
func RateLimit(limiter RateLimiter, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		key := "rate_limit:" + scope + ":" + c.ClientIP()
		allowed, remaining, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			GetLoggerFromContext(c).Warn("Rate limiter unavailable", map[string]interface{}{
				"error": err.Error(),
			})
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			apperrors.TooManyRequests(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
