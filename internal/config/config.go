package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"time"    // For timeout durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort            string        // Application port
	DBUser             string        // Database user
	DBPassword         string        // Database password
	DBHost             string        // Database host
	DBPort             string        // Database port
	DBName             string        // Database name
	JWTSecret          string        // JWT secret key
	RedisAddr          string        // Redis server address
	RedisPass          string        // Redis password
	RedisDB            int           // Redis database number
	IsProd             bool          // Is production environment
	WebhookSecret      string        // Shared secret for payment notification signatures
	GatewayAccessToken string        // Bearer credential for the payment gateway API
	GatewayBaseURL     string        // Payment gateway API base URL
	GatewayTimeout     time.Duration // Bound on a single gateway detail fetch
	StoreTimeout       time.Duration // Bound on a single store operation
	SignatureTolerance time.Duration // Allowed clock skew for signature timestamps
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:            getEnv("APP_PORT", "8080"),
		DBUser:             os.Getenv("DB_USER"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBHost:             os.Getenv("DB_HOST"),
		DBPort:             os.Getenv("DB_PORT"),
		DBName:             os.Getenv("DB_NAME"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPass:          os.Getenv("REDIS_PASS"),
		RedisDB:            redisDB,
		IsProd:             os.Getenv("IS_PROD") == "true",
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		GatewayAccessToken: os.Getenv("GATEWAY_ACCESS_TOKEN"),
		GatewayBaseURL:     getEnv("GATEWAY_BASE_URL", "https://api.mercadopago.com"),
		GatewayTimeout:     getDuration("GATEWAY_TIMEOUT", 10*time.Second),
		StoreTimeout:       getDuration("STORE_TIMEOUT", 5*time.Second),
		SignatureTolerance: getDuration("SIGNATURE_TOLERANCE", 300*time.Second),
	}
}

// DSN builds the MySQL data source name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
