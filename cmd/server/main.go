package main

import (
	"context" // context package is needed for Redis operations
	"time"    // Lock and reservation lifetimes

	"travel_marketplace/internal/api"         // Custom package for API handlers
	"travel_marketplace/internal/config"      // Custom package for configuration
	"travel_marketplace/internal/controlcode" // Control-code issuance
	"travel_marketplace/internal/db"          // Database connection
	"travel_marketplace/internal/gateway"     // Payment gateway client
	"travel_marketplace/internal/identity"    // Identity provider
	"travel_marketplace/internal/payment"     // Payment reconciliation
	"travel_marketplace/internal/privilege"   // Admin privilege guard
	"travel_marketplace/internal/signature"   // Webhook signature verification
	"travel_marketplace/internal/store"       // Account persistence
	"travel_marketplace/internal/utils"       // Redis locks and reservations

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

const (
	adminLockTTL      = 10 * time.Second // Upper bound on one admin mutation
	reservationTTL    = 30 * time.Second // Control-code candidate hold
	reservationPrefix = "controlcode:reserve:"
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.WebhookSecret == "" {
		logrus.Warn("WEBHOOK_SECRET is not set; every payment notification will be rejected")
	}

	// Connect to the database
	gdb, err := db.Open(cfg.DSN())
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	accounts := store.NewAccountStore(gdb, cfg.StoreTimeout)
	provider := identity.NewProvider(gdb, cfg.JWTSecret, cfg.StoreTimeout)
	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAccessToken, cfg.GatewayTimeout)
	logger := logrus.StandardLogger()

	deps := api.Deps{
		Accounts:   accounts,
		Identity:   provider,
		Verifier:   signature.NewVerifier(cfg.WebhookSecret, cfg.SignatureTolerance, logger),
		Reconciler: payment.NewReconciler(gatewayClient, accounts, provider, logger),
		Issuer:     controlcode.NewIssuer(accounts, utils.NewReserver(redisClient, reservationPrefix, reservationTTL), logger),
		Guard:      privilege.NewGuard(accounts, provider, utils.NewLocker(redisClient, adminLockTTL), logger),
		JWTSecret:  cfg.JWTSecret,
		Log:        logger,
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := api.NewRouter(deps)

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	logrus.Info("Server running on " + cfg.AppPort) // Log server start
	if err := r.Run(":" + cfg.AppPort); err != nil { // Start the server on port cfg.AppPort
		logrus.Fatalf("server stopped: %v", err)
	}
}
