package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("GATEWAY_BASE_URL", "")
	t.Setenv("GATEWAY_TIMEOUT", "not-a-duration")
	t.Setenv("STORE_TIMEOUT", "")
	t.Setenv("SIGNATURE_TOLERANCE", "")

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "https://api.mercadopago.com", cfg.GatewayBaseURL)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 300*time.Second, cfg.SignatureTolerance)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "whsec")
	t.Setenv("GATEWAY_ACCESS_TOKEN", "token")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("IS_PROD", "true")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_PASSWORD", "p")
	t.Setenv("DB_HOST", "h")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "n")

	cfg := LoadConfig()

	assert.Equal(t, "whsec", cfg.WebhookSecret)
	assert.Equal(t, "token", cfg.GatewayAccessToken)
	assert.Equal(t, 3*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.IsProd)
	assert.Equal(t, "u:p@tcp(h:3306)/n?parseTime=true", cfg.DSN())
}
