package api

import (
	"context"  // Compensation context
	"errors"   // Error classification
	"net/http" // HTTP status codes
	"net/mail" // Email validation
	"strings"  // String manipulation

	"travel_marketplace/internal/domain"     // Domain models
	"travel_marketplace/internal/identity"   // Identity provider
	"travel_marketplace/internal/middleware" // Authenticated caller
	"travel_marketplace/internal/store"      // Account persistence

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Account IDs
	"github.com/sirupsen/logrus" // Logging library
)

// Request struct for registration
type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`    // Login email
	Password    string `json:"password" binding:"required"` // Plain password, hashed by the identity provider
	DisplayName string `json:"displayName"`                 // Optional display name
	Variant     string `json:"variant" binding:"required"`  // "traveler" or "partner"
}

// Request struct for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Login email
	Password string `json:"password" binding:"required"` // Plain password
}

// Response struct for authentication
type AuthResponse struct {
	Token string `json:"token"` // JWT token
}

// isValidPassword checks if the password length is between 8 and 64 characters
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 64
}

// RegisterHandler creates the identity and the account record for a new user
func RegisterHandler(accounts *store.AccountStore, provider *identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": CodeInvalidArgument})
			return
		}
		variant := domain.Variant(req.Variant)
		if !variant.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Variant must be traveler or partner", "code": CodeInvalidArgument})
			return
		}
		if _, err := mail.ParseAddress(req.Email); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email", "code": CodeInvalidArgument})
			return
		}
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-64 characters", "code": CodeInvalidArgument})
			return
		}

		acc := domain.Account{
			ID:            uuid.NewString(),
			Variant:       variant,
			Email:         strings.ToLower(req.Email),
			DisplayName:   req.DisplayName,
			PaymentStatus: domain.PaymentNone,
		}
		if variant == domain.VariantPartner {
			acc.AccountStatus = domain.AccountPendingPayment // Partners wait for their subscription
		}
		acc.Role = acc.BaseRole()

		// Identity first so an account row never exists without credentials
		if err := provider.Provision(c.Request.Context(), acc.ID, acc.Email, req.Password, acc.Role); err != nil {
			respondError(c, err)
			return
		}
		if err := accounts.Create(c.Request.Context(), &acc); err != nil {
			// Undo the identity so the email can be registered again
			if derr := provider.Delete(context.WithoutCancel(c.Request.Context()), acc.ID); derr != nil {
				logrus.WithField("account_id", acc.ID).WithError(derr).Error("failed to remove orphaned identity")
			}
			respondError(c, err)
			return
		}
		logrus.WithFields(logrus.Fields{"account_id": acc.ID, "variant": acc.Variant}).Info("account registered")
		c.JSON(http.StatusCreated, gin.H{"id": acc.ID, "message": "Account registered successfully"})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(provider *identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": CodeInvalidArgument})
			return
		}
		token, _, err := provider.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "code": CodeUnauthenticated})
				return
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token})
	}
}

// MeHandler returns the caller's own account record
func MeHandler(accounts *store.AccountStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, err := accounts.Get(c.Request.Context(), middleware.CallerFrom(c).AccountID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, acc) // needsReconciliation stays internal
	}
}
