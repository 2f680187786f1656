// Package config centralises configuration parsing for the fitpulse services.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration values shared by the api, consumer and dlq manager.
type Config struct {
	HTTPAddress    string
	MetricsAddress string
	// PostgresURL selects the Postgres repository and enables the outbox. Empty keeps the
	// activity log in memory.
	PostgresURL        string
	KafkaBrokers       []string
	SchemaRegistryURL  string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	JWTSecret          string
	JWTIssuer          string
	DLQPollInterval    time.Duration // Interval between DLQ polling iterations.
	DLQMaxRetries      int           // Maximum number of DLQ retry attempts before quarantine.
	DLQBaseDelay       time.Duration // Base delay used for exponential backoff.
	ConsumerGroupID    string
	ConsumerTopics     []string

	FitnessAPIBaseURL   string
	FitnessAPITimeout   time.Duration
	ImportWindow        time.Duration
	DefaultBodyWeightKg float64

	RateLimitRPS      float64
	RateLimitBurst    int
	CORSAllowedOrigin string

	LogLevel      string
	LogFormatJSON bool
	LogFile       string
}

// Load reads an optional .env file and then environment variables into Config, applying
// defaults for local dev. Variables already set in the environment win over the file.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg := Config{
		HTTPAddress:         getEnv("HTTP_ADDRESS", ":8080"),
		MetricsAddress:      getEnv("METRICS_ADDRESS", ":9090"),
		PostgresURL:         getEnv("POSTGRES_URL", ""),
		SchemaRegistryURL:   getEnv("SCHEMA_REGISTRY_URL", "http://schema-registry:8081"),
		OutboxPollInterval:  getDurationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:     getIntEnv("OUTBOX_BATCH_SIZE", 25),
		JWTSecret:           getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:           getEnv("JWT_ISSUER", "fitpulse.identity"),
		DLQPollInterval:     getDurationEnv("DLQ_POLL_INTERVAL", 30*time.Second),
		DLQMaxRetries:       getIntEnv("DLQ_MAX_RETRIES", 5),
		DLQBaseDelay:        getDurationEnv("DLQ_BASE_DELAY", time.Minute),
		ConsumerGroupID:     getEnv("CONSUMER_GROUP_ID", "fitpulse-ledger"),
		FitnessAPIBaseURL:   getEnv("FITNESS_API_BASE_URL", ""),
		FitnessAPITimeout:   getDurationEnv("FITNESS_API_TIMEOUT", 15*time.Second),
		ImportWindow:        getDurationEnv("IMPORT_WINDOW", 24*time.Hour),
		DefaultBodyWeightKg: getFloatEnv("DEFAULT_BODY_WEIGHT_KG", 70),
		RateLimitRPS:        getFloatEnv("RATE_LIMIT_RPS", 20),
		RateLimitBurst:      getIntEnv("RATE_LIMIT_BURST", 40),
		CORSAllowedOrigin:   getEnv("CORS_ALLOWED_ORIGIN", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormatJSON:       getBoolEnv("LOG_FORMAT_JSON", false),
		LogFile:             getEnv("LOG_FILE", ""),
	}

	cfg.KafkaBrokers = splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092"))
	cfg.ConsumerTopics = splitAndTrim(getEnv("CONSUMER_TOPICS", "activity_events"))
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
