package api

import (
	"net/http" // HTTP status codes

	"travel_marketplace/internal/domain"     // Domain models
	"travel_marketplace/internal/middleware" // Authenticated caller
	"travel_marketplace/internal/privilege"  // Admin privilege mutations

	"github.com/gin-gonic/gin" // Gin web framework
)

// Request struct for granting admin
type GrantAdminRequest struct {
	Email string `json:"email" binding:"required"` // Email of the account to promote
}

// Request struct for revoking admin
type RevokeAdminRequest struct {
	TargetAccountID string `json:"targetAccountId" binding:"required"` // Account to demote
}

// Request struct for partner status changes
type PartnerStatusRequest struct {
	AccountStatus string `json:"accountStatus" binding:"required"` // New account status
}

// Response struct for an admin entry
type AdminResponse struct {
	ID          string `json:"id"`          // Account ID
	Email       string `json:"email"`       // Account email
	DisplayName string `json:"displayName"` // Display name
	Variant     string `json:"variant"`     // Account variant
}

// GrantAdminHandler promotes the account registered under the given email
func GrantAdminHandler(guard *privilege.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantAdminRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": CodeInvalidArgument})
			return
		}
		res, err := guard.GrantAdmin(c.Request.Context(), middleware.CallerFrom(c), req.Email)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res) // {success, message}
	}
}

// RevokeAdminHandler demotes an admin, refusing self-revocation and the last admin
func RevokeAdminHandler(guard *privilege.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RevokeAdminRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": CodeInvalidArgument})
			return
		}
		res, err := guard.RevokeAdmin(c.Request.Context(), middleware.CallerFrom(c), req.TargetAccountID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res) // {success, message}
	}
}

// ListAdminsHandler lists every account currently holding the admin role
func ListAdminsHandler(guard *privilege.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		admins, err := guard.ListAdmins(c.Request.Context(), middleware.CallerFrom(c))
		if err != nil {
			respondError(c, err)
			return
		}
		resp := make([]AdminResponse, 0, len(admins)) // Never serialize as null
		for _, a := range admins {
			resp = append(resp, AdminResponse{
				ID:          a.ID,
				Email:       a.Email,
				DisplayName: a.DisplayName,
				Variant:     string(a.Variant),
			})
		}
		c.JSON(http.StatusOK, gin.H{"admins": resp})
	}
}

// SetPartnerStatusHandler moves a partner account to a new status
func SetPartnerStatusHandler(guard *privilege.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PartnerStatusRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": CodeInvalidArgument})
			return
		}
		acc, err := guard.SetPartnerStatus(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), domain.AccountStatus(req.AccountStatus))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": acc.ID, "accountStatus": acc.AccountStatus})
	}
}
