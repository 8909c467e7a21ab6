package api

import (
	"travel_marketplace/internal/controlcode" // Control-code issuance
	"travel_marketplace/internal/identity"    // Identity provider
	"travel_marketplace/internal/middleware"  // Auth middleware
	"travel_marketplace/internal/privilege"   // Admin privilege mutations
	"travel_marketplace/internal/store"       // Account persistence

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Deps bundles everything the HTTP layer calls into
type Deps struct {
	Accounts   *store.AccountStore // Account records
	Identity   *identity.Provider  // Credentials and claims
	Verifier   SignatureVerifier   // Webhook signature checks
	Reconciler PaymentReconciler   // Payment transitions
	Issuer     *controlcode.Issuer // Control-code allocation
	Guard      *privilege.Guard    // Admin mutations
	JWTSecret  string              // Token signing secret
	Log        logrus.FieldLogger  // Webhook audit logger
}

// RegisterRoutes mounts every endpoint on r
func RegisterRoutes(r *gin.Engine, d Deps) {
	auth := middleware.JWTAuthMiddleware(d.JWTSecret)

	// Auth routes
	r.POST("/auth/register", RegisterHandler(d.Accounts, d.Identity)) // Registration endpoint
	r.POST("/auth/login", LoginHandler(d.Identity))                   // Login endpoint
	r.GET("/auth/me", auth, MeHandler(d.Accounts))                    // Own account endpoint

	// Gateway notifications; other methods get 405 from the handler itself
	r.Any("/webhooks/payments", PaymentWebhookHandler(d.Verifier, d.Reconciler, d.Log))

	// Account routes (protected by JWT)
	accountGroup := r.Group("/accounts")
	accountGroup.Use(auth)
	accountGroup.POST("/control-code", IssueControlCodeHandler(d.Issuer)) // Control-code endpoint

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(auth, middleware.AdminOnlyMiddleware())
	adminGroup.GET("/admins", ListAdminsHandler(d.Guard))                     // List admins endpoint
	adminGroup.POST("/grant", GrantAdminHandler(d.Guard))                     // Grant admin endpoint
	adminGroup.POST("/revoke", RevokeAdminHandler(d.Guard))                   // Revoke admin endpoint
	adminGroup.POST("/partners/:id/status", SetPartnerStatusHandler(d.Guard)) // Partner status endpoint
}

// NewRouter builds a gin engine with recovery, logging and every route mounted
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	RegisterRoutes(r, d)
	return r
}
