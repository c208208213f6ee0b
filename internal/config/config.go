package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL          string
	DBConnectMaxAttempts int
	DBConnectBaseDelay   time.Duration
	DBConnectMaxDelay    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Reconciliation job cadence
	SlotReleaseInterval     time.Duration
	SlotReleaseAfter        time.Duration
	CloseInterval           time.Duration
	CloseAfter              time.Duration
	ReminderInterval        time.Duration
	ReminderWindow          time.Duration
	ReminderDedupTTL        time.Duration
	ExternalSyncInterval    time.Duration
	NotificationInterval    time.Duration
	NotificationMaxAttempts int

	// External hospital provider
	HospitalAPITimeout time.Duration

	// Push gateway (player-id targeted)
	PushBaseURL string
	PushAppID   string
	PushAPIKey  string

	// SMS gateway
	SMSBaseURL string
	SMSAPIKey  string

	// Operator alerting
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	OpsAlertEmail     string
	AWSRegion         string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "9090"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:          getEnv("DATABASE_URL", ""),
		DBConnectMaxAttempts: getEnvAsInt("DB_CONNECT_MAX_ATTEMPTS", 6),
		DBConnectBaseDelay:   getEnvAsDuration("DB_CONNECT_BASE_DELAY", 500*time.Millisecond),
		DBConnectMaxDelay:    getEnvAsDuration("DB_CONNECT_MAX_DELAY", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SlotReleaseInterval:     getEnvAsDuration("SLOT_RELEASE_INTERVAL", 5*time.Minute),
		SlotReleaseAfter:        getEnvAsDuration("SLOT_RELEASE_AFTER", 15*time.Minute),
		CloseInterval:           getEnvAsDuration("CLOSE_BOOKINGS_INTERVAL", 30*time.Minute),
		CloseAfter:              getEnvAsDuration("CLOSE_BOOKINGS_AFTER", 600*time.Minute),
		ReminderInterval:        getEnvAsDuration("CONSULT_REMINDER_INTERVAL", time.Minute),
		ReminderWindow:          getEnvAsDuration("CONSULT_REMINDER_WINDOW", 70*time.Second),
		ReminderDedupTTL:        getEnvAsDuration("CONSULT_REMINDER_DEDUP_TTL", 5*time.Minute),
		ExternalSyncInterval:    getEnvAsDuration("EXTERNAL_SYNC_INTERVAL", 5*time.Minute),
		NotificationInterval:    getEnvAsDuration("NOTIFICATION_INTERVAL", 10*time.Second),
		NotificationMaxAttempts: getEnvAsInt("NOTIFICATION_MAX_ATTEMPTS", 3),

		HospitalAPITimeout: getEnvAsDuration("HOSPITAL_API_TIMEOUT", 15*time.Second),

		PushBaseURL: getEnv("PUSH_BASE_URL", "https://onesignal.com/api/v1"),
		PushAppID:   getEnv("PUSH_APP_ID", ""),
		PushAPIKey:  getEnv("PUSH_API_KEY", ""),

		SMSBaseURL: getEnv("SMS_BASE_URL", ""),
		SMSAPIKey:  getEnv("SMS_API_KEY", ""),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", ""))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "CareBridge"),
		OpsAlertEmail:     getEnv("OPS_ALERT_EMAIL", ""),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
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
