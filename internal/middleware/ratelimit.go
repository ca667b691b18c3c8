package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/groupdesk/internal/cache"
	"github.com/charlesng35/groupdesk/pkg/errors"
	"github.com/charlesng35/groupdesk/pkg/logger"
	"github.com/charlesng35/groupdesk/pkg/metrics"
	"github.com/charlesng35/groupdesk/pkg/response"
)

// ErrTooManyRequests is returned once a caller exhausted its window.
var ErrTooManyRequests = errors.New("RATE_LIMITED", "Too many requests, slow down", http.StatusTooManyRequests)

// RateLimitKey derives the bucket a request is counted against.
type RateLimitKey func(c *gin.Context) string

// ByUser buckets authenticated requests per user and route, falling back to the client IP.
func ByUser(c *gin.Context) string {
	if userID := c.GetString(CtxUserIDKey); userID != "" {
		return "user:" + userID + "|" + c.FullPath()
	}
	return "ip:" + c.ClientIP() + "|" + c.FullPath()
}

// RateLimit limits requests per key within a fixed window. Counters live in the
// supplied store; a nil store keeps them in memory. Invite code guessing is the
// main thing it slows down. Store failures let the request through.
func RateLimit(maxRequests int, window time.Duration, key RateLimitKey, store cache.Store) gin.HandlerFunc {
	if key == nil {
		key = ByUser
	}
	if store == nil {
		store = cache.NewMemoryStore(nil)
	}

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		hits, resetIn, err := store.IncrementWithTTL(c.Request.Context(), key(c), window)
		if err != nil {
			logger.WithModule("ratelimit").Warn("rate limit store unavailable", zap.String("path", c.FullPath()), zap.Error(err))
			c.Next()
			return
		}

		count := int(hits)
		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if count > maxRequests {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(resetIn)))
			metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
			response.Error(c, ErrTooManyRequests)
			c.Abort()
			return
		}

		c.Next()
	}
}

// retryAfterSeconds rounds up so clients never retry inside the window.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int((d + time.Second - 1) / time.Second)
}
