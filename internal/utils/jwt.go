package utils

import (
	"errors" // Error values
	"time"   // Time for token expiration

	"travel_marketplace/internal/domain" // Role type

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// TokenTTL is how long an issued token stays valid
const TokenTTL = 24 * time.Hour

// JWT Claims
type Claims struct {
	AccountID            string      `json:"account_id"` // Custom claim for account ID
	Role                 domain.Role `json:"role"`       // Custom claim for role
	Admin                bool        `json:"admin"`      // Custom claim for admin privilege
	jwt.RegisteredClaims             // Standard JWT claims
}

// GenerateJWT creates a JWT token carrying the account's custom claims
func GenerateJWT(accountID string, custom domain.Claims, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := Claims{
		AccountID: accountID,
		Role:      custom.Role,
		Admin:     custom.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// ParseJWT parses and validates a JWT token string
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.AccountID != "" {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
