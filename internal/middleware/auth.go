package middleware

import (
	"crypto/subtle"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// InternalKeyHeader carries the shared secret on service-to-service calls.
const InternalKeyHeader = "X-Internal-API-Key"

// InternalAuthMiddleware gates the sourcing API behind the shared key in
// INTERNAL_API_KEY. Order services calling /api/sourcing/* must present
// the key; browsers never reach these routes. Comparison is constant
// time so response latency leaks nothing about the key.
func InternalAuthMiddleware() gin.HandlerFunc {
	apiKey := os.Getenv("INTERNAL_API_KEY")
	if apiKey == "" {
		// Refuse every request rather than running the sourcing API open.
		log.Warn().Msg("INTERNAL_API_KEY not set, sourcing API will reject all requests")
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "server misconfigured: INTERNAL_API_KEY not set",
			})
		}
	}
	apiKeyBytes := []byte(apiKey)

	return func(c *gin.Context) {
		key := c.GetHeader(InternalKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), apiKeyBytes) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Next()
	}
}
