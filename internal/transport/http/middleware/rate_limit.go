package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/khushwant-singh1/bundle-market/internal/usecase"
)

// RateLimit enforces the limiter against the client IP and answers 429 with a
// Retry-After header when the budget is spent.
func RateLimit(limiter *usecase.RateLimiter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		identifier := c.ClientIP()
		if identifier == "" {
			c.Next()
			return
		}

		err := limiter.Allow(c.Request.Context(), identifier)
		if err == nil {
			c.Next()
			return
		}

		var limited *usecase.RateLimitExceededError
		if errors.As(err, &limited) {
			retryAfter := int(math.Ceil(limited.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				newErrorResponse(c, "too many requests; try again later"))
			return
		}

		logger.Warn("rate limiter failed", zap.Error(err))
		c.Next()
	}
}
