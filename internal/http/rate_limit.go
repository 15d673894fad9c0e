package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shapeshift/internal/service"
)

// rateLimitMiddleware corta con 429 cuando la clave supera el límite. Sin limiter no hace nada.
func rateLimitMiddleware(limiter service.RateLimiter, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		if !limiter.Allow(c.Request.Context(), key(c)) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func clientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

func userKey(c *gin.Context) string {
	claims, ok := GetAuthClaims(c)
	if !ok {
		return c.ClientIP()
	}
	return claims.UserID
}
