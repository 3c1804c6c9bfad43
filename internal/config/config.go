// Package config provides configuration management for the livechat-hours service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Business hour engine types.
const (
	// EngineSingle manages only the default business hour.
	EngineSingle = "single"

	// EngineMultiple manages any number of business hours.
	EngineMultiple = "multiple"
)

const (
	// DefaultAdminMaxPayloadSize is the default max payload size for management endpoints (100KB).
	DefaultAdminMaxPayloadSize int64 = 100 * 1024 // 102400 bytes

	// DefaultReconcileInterval is the default interval between backstop reconciliation passes.
	DefaultReconcileInterval = 5 * time.Minute

	// DefaultLeaderLockTTL is the default TTL for the distributed leader lock.
	DefaultLeaderLockTTL = 30 * time.Second
)

// Config holds the application configuration.
type Config struct {
	// Port is the HTTP server port.
	Port string

	// DatabaseURL is the Postgres connection string. When empty the service
	// runs on in-memory stores.
	DatabaseURL string

	// RedisAddr is the Redis address used for leader election. When empty
	// the scheduler runs without a leader gate.
	RedisAddr string

	// RedisPassword is the Redis password, if any.
	RedisPassword string

	// LogLevel is the zerolog level name.
	LogLevel string

	// EngineType selects the business hour engine, single or multiple.
	EngineType string

	// ReconcileInterval is the interval between backstop reconciliation passes.
	ReconcileInterval time.Duration

	// LeaderLockTTL is the TTL for the distributed leader lock.
	LeaderLockTTL time.Duration

	// AdminMaxPayloadSize is the maximum payload size for management endpoints in bytes.
	AdminMaxPayloadSize int64
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	cfg := &Config{
		Port:                getEnvOrDefault("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		EngineType:          getEnvOrDefault("BUSINESS_HOUR_TYPE", EngineMultiple),
		ReconcileInterval:   getEnvDurationOrDefault("RECONCILE_INTERVAL", DefaultReconcileInterval),
		LeaderLockTTL:       getEnvDurationOrDefault("LEADER_LOCK_TTL", DefaultLeaderLockTTL),
		AdminMaxPayloadSize: getEnvInt64OrDefault("ADMIN_MAX_PAYLOAD_SIZE", DefaultAdminMaxPayloadSize),
	}

	if cfg.EngineType != EngineSingle && cfg.EngineType != EngineMultiple {
		cfg.EngineType = EngineMultiple
	}

	return cfg
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt64OrDefault returns the environment variable value as int64 or the default if not set or invalid.
func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault returns the environment variable value as a duration or the default if not set or invalid.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
