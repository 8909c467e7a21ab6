package api

import (
	"net/http" // HTTP status codes

	"travel_marketplace/internal/controlcode" // Control-code issuance
	"travel_marketplace/internal/domain"      // Domain models
	"travel_marketplace/internal/middleware"  // Authenticated caller

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Request struct for control-code issuance
type ControlCodeRequest struct {
	AccountID string `json:"accountId"` // Account receiving the code
	Variant   string `json:"variant"`   // "traveler" or "partner"
}

// Response struct for control-code issuance
type ControlCodeResponse struct {
	ControlCode string `json:"controlCode"` // Issued or existing code
}

// IssueControlCodeHandler returns the account's control code, allocating one if needed
func IssueControlCodeHandler(issuer *controlcode.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ControlCodeRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": CodeInvalidArgument})
			return
		}
		caller := middleware.CallerFrom(c) // Set by JWTAuthMiddleware

		res, err := issuer.Issue(c.Request.Context(), caller, req.AccountID, domain.Variant(req.Variant))
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"account_id": req.AccountID,
				"caller":     caller.AccountID,
			}).WithError(err).Warn("control code issuance failed")
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ControlCodeResponse{ControlCode: res.Code})
	}
}
