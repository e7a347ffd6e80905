package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Ticketing backend
	BackendURL     string
	BackendTimeout time.Duration

	// Redis configuration
	RedisURL     string
	CacheBackend string // redis, memory

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Return-path reconciliation
	PollInterval       time.Duration
	PollMaxAttempts    int
	SuccessSettleDelay time.Duration
	PendingSettleDelay time.Duration
	FailureSettleDelay time.Duration

	// Client-held state
	TicketViewTTL    time.Duration
	OperationLockTTL time.Duration
	ProfileCacheTTL  time.Duration

	// Protection
	RateLimitPerMinute  int
	BreakerMaxRequests  int
	BreakerFailureRatio float64
	BreakerTimeout      time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

// LoadConfig reads the environment, after loading a .env file when present.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}

	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Backend
		BackendURL:     getEnv("BACKEND_API_URL", "http://localhost:3000/api/v1"),
		BackendTimeout: getEnvAsDuration("BACKEND_TIMEOUT", "10s"),

		// Redis
		RedisURL:     getEnv("REDIS_URL", "localhost:6379"),
		CacheBackend: getEnv("CACHE_BACKEND", "redis"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Reconciliation
		PollInterval:       getEnvAsDuration("POLL_INTERVAL", "1s"),
		PollMaxAttempts:    getEnvAsInt("POLL_MAX_ATTEMPTS", 15),
		SuccessSettleDelay: getEnvAsDuration("SUCCESS_SETTLE_DELAY", "2s"),
		PendingSettleDelay: getEnvAsDuration("PENDING_SETTLE_DELAY", "3s"),
		FailureSettleDelay: getEnvAsDuration("FAILURE_SETTLE_DELAY", "5s"),

		// Client-held state
		TicketViewTTL:    getEnvAsDuration("TICKET_VIEW_TTL", "5m"),
		OperationLockTTL: getEnvAsDuration("OPERATION_LOCK_TTL", "1m"),
		ProfileCacheTTL:  getEnvAsDuration("PROFILE_CACHE_TTL", "5m"),

		// Protection
		RateLimitPerMinute:  getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),
		BreakerMaxRequests:  getEnvAsInt("BREAKER_MAX_REQUESTS", 20),
		BreakerFailureRatio: getEnvAsFloat("BREAKER_FAILURE_RATIO", 0.6),
		BreakerTimeout:      getEnvAsDuration("BREAKER_TIMEOUT", "30s"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

// UseRedis reports whether client-held state lives in Redis rather than in process.
func (c *Config) UseRedis() bool {
	return c.CacheBackend != "memory"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
