package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/ratelimit"
	"github.com/risecheckout/orderengine/pkg/errors"
)

// RateLimit rejects clients over their attempt budget with 429 before the
// handler runs. The client IP is the key. A limiter failure lets the request through.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", zap.String("client_ip", key), zap.Error(err))
			c.Next()
			return
		}

		if !decision.Allowed {
			limitErr := &errors.RateLimitExceeded{RetryAfter: decision.RetryAfter}
			c.Header("Retry-After", strconv.Itoa(ratelimit.RetryAfterSeconds(decision.RetryAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   limitErr.Error(),
			})
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Next()
	}
}
