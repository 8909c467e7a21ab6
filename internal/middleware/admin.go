package middleware

import (
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// AdminOnlyMiddleware rejects callers whose token claims do not carry admin=true.
// It runs before any handler touches data.
func AdminOnlyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := CallerFrom(c)
		// JWTAuthMiddleware must have run first
		if caller.AccountID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if !caller.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}
