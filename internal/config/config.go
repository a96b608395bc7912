package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	NewRelic     NewRelicConfig
	Ledger       LedgerConfig
	Card         CardConfig
	Gateway      GatewayConfig
	Notification NotificationConfig
	Admin        AdminConfig
	RateLimit    RateLimitConfig
	Log          LogConfig

	// BankDetailsFile overrides the embedded bank directory when set.
	BankDetailsFile string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	IdempotencyTTL  time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// Ledger backends.
const (
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
	LedgerMemory   = "memory"
)

// LedgerConfig selects where confirmation outcomes are stored.
type LedgerConfig struct {
	Backend string
}

// CardConfig holds the card provider settings.
type CardConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

// GatewayConfig holds the gateway provider settings. The secret key also
// signs webhooks.
type GatewayConfig struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// NotificationConfig holds notification transport and dispatcher settings.
type NotificationConfig struct {
	Endpoint   string // empty logs messages instead of sending them
	AdminEmail string
	Timeout    time.Duration
	Workers    int
	QueueSize  int
}

// AdminConfig holds admin API authentication settings.
type AdminConfig struct {
	JWTSecret string
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string
	Development bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first if present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 20*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			IdempotencyTTL:  getDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "payconfirm"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "payconfirm"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Ledger: LedgerConfig{
			Backend: getEnv("LEDGER_BACKEND", LedgerPostgres),
		},
		Card: CardConfig{
			BaseURL:       getEnv("CARD_API_URL", "https://api.stripe.com"),
			SecretKey:     getEnv("CARD_SECRET_KEY", ""),
			WebhookSecret: getEnv("CARD_WEBHOOK_SECRET", ""),
			Timeout:       getDurationEnv("CARD_TIMEOUT", 10*time.Second),
		},
		Gateway: GatewayConfig{
			BaseURL:   getEnv("GATEWAY_API_URL", "https://api.paystack.co"),
			SecretKey: getEnv("GATEWAY_SECRET_KEY", ""),
			Timeout:   getDurationEnv("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Notification: NotificationConfig{
			Endpoint:   getEnv("NOTIFY_ENDPOINT", ""),
			AdminEmail: getEnv("ADMIN_EMAIL", ""),
			Timeout:    getDurationEnv("NOTIFY_TIMEOUT", 10*time.Second),
			Workers:    getIntEnv("NOTIFY_WORKERS", 4),
			QueueSize:  getIntEnv("NOTIFY_QUEUE_SIZE", 256),
		},
		Admin: AdminConfig{
			JWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("RATE_LIMIT_RPS", 5),
			Burst:   getIntEnv("RATE_LIMIT_BURST", 10),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getBoolEnv("LOG_DEVELOPMENT", false),
		},
		BankDetailsFile: getEnv("BANK_DETAILS_FILE", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
