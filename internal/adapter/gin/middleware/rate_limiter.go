package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	grpcmiddleware "user-crud-service/internal/adapter/grpc/middleware"
)

// RateLimiter returns a Gin middleware that applies the shared token bucket
// per client IP. A nil or disabled limiter lets every request through.
func RateLimiter(limiter *grpcmiddleware.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Enabled() {
			c.Next()
			return
		}

		allowed, _ := limiter.Allow(c.Request.Context(), "http:"+c.ClientIP())
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"errorMessage": "Rate limit exceeded: " + limiter.Describe(),
			})
			return
		}

		c.Next()
	}
}
