package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Redis (session rooms)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Auth
	JWTSecret string

	// Cron trigger shared secret for the reminder scan endpoint
	CronSecret string

	// Reminder job
	ReminderInterval   time.Duration
	ReminderLookahead  time.Duration
	RunReminderTicker  bool
	CancellationWindow time.Duration

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// Outbox deliverer
	OutboxBatchSize int
	OutboxInterval  time.Duration

	// Session rooms
	RoomTokenTTL time.Duration

	CORSAllowedOrigins string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		JWTSecret: getEnv("JWT_SECRET", ""),

		CronSecret: getEnv("CRON_SECRET", ""),

		ReminderInterval:   getEnvAsDuration("REMINDER_INTERVAL", 30*time.Minute),
		ReminderLookahead:  getEnvAsDuration("REMINDER_LOOKAHEAD", 25*time.Hour),
		RunReminderTicker:  getEnvAsBool("RUN_REMINDER_TICKER", false),
		CancellationWindow: getEnvAsDuration("CANCELLATION_WINDOW", 24*time.Hour),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "notificaciones@smartwell.la"),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "SmartWell"),

		OutboxBatchSize: getEnvAsInt("OUTBOX_BATCH_SIZE", 25),
		OutboxInterval:  getEnvAsDuration("OUTBOX_INTERVAL", 5*time.Second),

		RoomTokenTTL: getEnvAsDuration("ROOM_TOKEN_TTL", 2*time.Hour),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
