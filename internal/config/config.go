package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT / admin access
	JwtSecret         string
	JwtTTL            time.Duration
	AdminUsername     string
	AdminPasswordHash string // bcrypt hash

	// Server
	ApiPort string

	// Messaging provider (WhatsApp-style template/session API)
	MessagingAPIBaseURL string
	MessagingAPIToken   string
	MessagingPhoneID    string
	DefaultCountryCode  string // prepended to local numbers, e.g. "91"

	// Notification behaviour
	NotifyDebounceTTL time.Duration // short lock window per (recipient, channel, action)
	SessionWindow     time.Duration // horizon for free-form vs templated sends
	NotifyMaxRetries  int
	NotifyBackoffBase time.Duration

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	ImageBaseURL       string
	ImageMaxDimension  int

	// App Defaults
	AppName       string
	GetCacheTTL   time.Duration
	TxnMaxRetries int

	// Rate Limiting Defaults
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode, // Set from flag
	}

	var err error

	// Helper function to get env var or default
	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	// Helper function to get required env var
	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	// Load basic string values
	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "fieldquote")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.AdminUsername = getEnv("ADMIN_USERNAME", "admin")
	cfg.AdminPasswordHash = getEnv("ADMIN_PASSWORD_HASH", "")
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.MessagingAPIBaseURL = getEnv("MESSAGING_API_BASE_URL", "https://graph.facebook.com/v19.0")
	cfg.MessagingAPIToken = getEnv("MESSAGING_API_TOKEN", "")
	cfg.MessagingPhoneID = getEnv("MESSAGING_PHONE_ID", "")
	cfg.DefaultCountryCode = getEnv("DEFAULT_COUNTRY_CODE", "91")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.ImageBaseURL = getEnv("IMAGE_BASE_URL", "")
	cfg.AppName = getEnv("APP_NAME", "FieldQuote")

	// Load numeric and time duration values with defaults and parsing
	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtTTLSeconds, err := strconv.ParseInt(getEnv("JWT_TTL_SECONDS", "3600"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL_SECONDS: %w", err)
	}
	cfg.JwtTTL = time.Duration(jwtTTLSeconds) * time.Second

	debounceSeconds, err := strconv.ParseInt(getEnv("NOTIFY_DEBOUNCE_TTL_SECONDS", "30"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_DEBOUNCE_TTL_SECONDS: %w", err)
	}
	cfg.NotifyDebounceTTL = time.Duration(debounceSeconds) * time.Second

	sessionWindowHours, err := strconv.ParseInt(getEnv("SESSION_WINDOW_HOURS", "24"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_WINDOW_HOURS: %w", err)
	}
	cfg.SessionWindow = time.Duration(sessionWindowHours) * time.Hour

	cfg.NotifyMaxRetries, err = strconv.Atoi(getEnv("NOTIFY_MAX_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_MAX_RETRIES: %w", err)
	}

	backoffBaseMs, err := strconv.ParseInt(getEnv("NOTIFY_BACKOFF_BASE_MS", "500"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_BACKOFF_BASE_MS: %w", err)
	}
	cfg.NotifyBackoffBase = time.Duration(backoffBaseMs) * time.Millisecond

	cfg.ImageMaxDimension, err = strconv.Atoi(getEnv("IMAGE_MAX_DIMENSION", "2048"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_DIMENSION: %w", err)
	}

	getCacheTTLSeconds, err := strconv.ParseInt(getEnv("GET_CACHE_TTL_SECONDS", "60"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GET_CACHE_TTL_SECONDS: %w", err)
	}
	cfg.GetCacheTTL = time.Duration(getCacheTTLSeconds) * time.Second

	cfg.TxnMaxRetries, err = strconv.Atoi(getEnv("TXN_MAX_RETRIES", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid TXN_MAX_RETRIES: %w", err)
	}

	// Rate Limiting
	cfg.RateLimitBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_BUCKET_SIZE", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_REFILL_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
