package middleware

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"travel_marketplace/internal/domain" // Caller type
	"travel_marketplace/internal/utils"  // JWT utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// callerKey is where the authenticated caller is stored on the gin context
const callerKey = "caller"

// JWTAuthMiddleware validates JWT tokens and extracts the caller's claims
func JWTAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		// Check if the Authorization header is present and properly formatted
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ") // Extract the token string
		claims, err := utils.ParseJWT(tokenStr, secret)       // Parse the JWT token
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		// Store the caller in context for handlers and the admin gate
		c.Set(callerKey, domain.Caller{AccountID: claims.AccountID, Role: claims.Role, Admin: claims.Admin})
		c.Next()
	}
}

// CallerFrom returns the authenticated caller, or a zero Caller when none
func CallerFrom(c *gin.Context) domain.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(domain.Caller); ok {
			return caller
		}
	}
	return domain.Caller{}
}
