package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bappy/identity-service/internal/dto"
	"github.com/bappy/identity-service/internal/service"
)

// KeyFunc derives the rate limit bucket for a request.
type KeyFunc func(c *gin.Context) string

// IPBasedKey buckets requests by client IP.
func IPBasedKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// RateLimitMiddleware throttles requests using a sliding window. When the
// limiter backend is unavailable the request is allowed through.
func RateLimitMiddleware(limiter *service.RateLimiter, limit int, window time.Duration, keyFunc KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)

		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))

		if !allowed {
			seconds := int(retryAfter.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:   "rate_limited",
				Code:    "RATE_LIMITED",
				Message: "too many requests, try again later",
			})
			return
		}

		if remaining, err := limiter.Remaining(c.Request.Context(), key, limit, window); err == nil {
			c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		}

		c.Next()
	}
}
