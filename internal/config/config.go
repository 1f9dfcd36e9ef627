package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Payment gateway
	StripeSecretKey     string
	StripeWebhookSecret string
	PaymentCurrency     string

	// AI chat assistant
	LLMProvider    string // "gemini" or "bedrock"
	GeminiAPIKey   string
	GeminiModelID  string
	BedrockModelID string

	// Headless CMS gallery
	CMSEndpoint string
	CMSToken    string
	CMSCacheTTL time.Duration

	// Document analysis
	DocumentsBucket   string
	DocumentsQueueURL string
	UseMemoryQueue    bool
	WorkerCount       int

	// Notifications
	EmailProvider  string // "sendgrid", "ses", or "" for stub
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	OwnerEmail     string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Redis (chat transcripts)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Admin surface
	AdminJWTSecret string

	CORSAllowedOrigins []string
	SessionTTL         time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		PaymentCurrency:     strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gemini"))),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),

		CMSEndpoint: getEnv("CMS_ENDPOINT", ""),
		CMSToken:    getEnv("CMS_TOKEN", ""),
		CMSCacheTTL: getEnvAsDuration("CMS_CACHE_TTL", 5*time.Minute),

		DocumentsBucket:   getEnv("DOCUMENTS_BUCKET", ""),
		DocumentsQueueURL: getEnv("DOCUMENTS_QUEUE_URL", ""),
		UseMemoryQueue:    getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:       getEnvAsInt("WORKER_COUNT", 2),

		EmailProvider:  strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", ""))),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		FromEmail:      getEnv("FROM_EMAIL", ""),
		FromName:       getEnv("FROM_NAME", "Portfolio"),
		OwnerEmail:     getEnv("OWNER_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		SessionTTL:         getEnvAsDuration("BOOKING_SESSION_TTL", 30*time.Minute),
	}
}

// PaymentsConfigured reports whether the payment gateway credentials are present.
// Absence degrades the payment path rather than crashing request handling.
func (c *Config) PaymentsConfigured() bool {
	return strings.TrimSpace(c.StripeSecretKey) != ""
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
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
