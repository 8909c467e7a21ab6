package api

import (
	"errors"   // Error classification
	"net/http" // HTTP status codes

	"travel_marketplace/internal/domain" // Domain error taxonomy

	"github.com/gin-gonic/gin" // Gin web framework
)

// Error codes returned next to the message
const (
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeNotFound           = "NOT_FOUND"
	CodeFailedPrecondition = "FAILED_PRECONDITION"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeInternal           = "INTERNAL"
)

// classify maps a domain error to a status, a code and a message safe to show
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, CodeInvalidArgument, err.Error()
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, CodeUnauthenticated, "Unauthenticated"
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden, CodePermissionDenied, "Admin access required"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, "Account not found"
	case errors.Is(err, domain.ErrSelfRevoke):
		return http.StatusConflict, CodeFailedPrecondition, domain.ErrSelfRevoke.Error()
	case errors.Is(err, domain.ErrLastAdmin):
		return http.StatusConflict, CodeFailedPrecondition, domain.ErrLastAdmin.Error()
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, CodeAlreadyExists, domain.ErrEmailTaken.Error()
	case errors.Is(err, domain.ErrAllocationExhausted):
		return http.StatusInternalServerError, CodeInternal, domain.ErrAllocationExhausted.Error() + ", try again"
	case errors.Is(err, domain.ErrControlCodeTaken):
		return http.StatusInternalServerError, CodeInternal, "control code collision, try again"
	}
	return http.StatusInternalServerError, CodeInternal, "Internal error"
}

// respondError writes the JSON error envelope for err
func respondError(c *gin.Context, err error) {
	status, code, message := classify(err)
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}
