// Package config provides configuration management for the storefront service.
// It handles loading configuration from environment variables with sensible defaults
// and validates the configuration to ensure the application starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Optional log file path; stdout when empty
//
// Database Configuration:
//   - DATABASE_TYPE: Database type - "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./storefront.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE: PostgreSQL connection settings
//
// Remote Cache (Redis):
//   - REDIS_ADDRESS: Redis server address; empty runs the cache memory-only
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - REDIS_DIAL_TIMEOUT: Connection timeout (default: 5s)
//   - REDIS_COMMAND_TIMEOUT: Per-command timeout (default: 2s)
//
// Local Cache:
//   - CACHE_MAX_ENTRIES: Local tier capacity (default: 1000)
//   - CACHE_SWEEP_SCHEDULE: Cron spec for the expiry sweep (default: @every 5m)
//   - CACHE_WARMUP_SCHEDULE: Cron spec for scheduled warmup; empty disables
//   - CACHE_POLICY_FILE: Optional YAML file overriding per-category TTLs
//   - CACHE_BROADCAST: Publish invalidations to other instances (default: true)
//
// Security Configuration:
//   - JWT_SECRET: JWT signing secret (required, minimum 32 characters)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"storefront/internal/cache"
)

// Config holds all configuration values for the storefront service.
type Config struct {
	// Application settings
	Port     string
	LogLevel string
	LogFile  string

	// Database configuration
	DatabaseType     string // "sqlite" or "postgres"
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Remote cache tier; an empty address disables it
	RedisAddress        string
	RedisPassword       string
	RedisDB             string
	RedisPoolSize       string
	RedisDialTimeout    time.Duration
	RedisCommandTimeout time.Duration

	// Local cache tier and background jobs
	CacheMaxEntries     int
	CacheSweepSchedule  string
	CacheWarmupSchedule string
	CachePolicyFile     string
	CacheBroadcast      bool

	// JWT authentication configuration
	JWTSecret string
}

// Load reads the configuration from the environment without validating it.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./storefront.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "storefront"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:        os.Getenv("REDIS_ADDRESS"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnv("REDIS_DB", "0"),
		RedisPoolSize:       getEnv("REDIS_POOL_SIZE", "10"),
		RedisDialTimeout:    getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisCommandTimeout: getDurationEnv("REDIS_COMMAND_TIMEOUT", 2*time.Second),

		CacheMaxEntries:     getIntEnv("CACHE_MAX_ENTRIES", cache.DefaultMaxEntries),
		CacheSweepSchedule:  getEnv("CACHE_SWEEP_SCHEDULE", "@every 5m"),
		CacheWarmupSchedule: getEnv("CACHE_WARMUP_SCHEDULE", ""),
		CachePolicyFile:     getEnv("CACHE_POLICY_FILE", ""),
		CacheBroadcast:      getBoolEnv("CACHE_BROADCAST", true),

		JWTSecret: getEnv("JWT_SECRET", ""),
	}
}

// RedisEnabled reports whether the remote cache tier is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddress != ""
}

// RedisDBNumber returns REDIS_DB as an int. Call after Validate.
func (c *Config) RedisDBNumber() int {
	n, _ := strconv.Atoi(c.RedisDB)
	return n
}

// RedisPoolSizeNumber returns REDIS_POOL_SIZE as an int. Call after Validate.
func (c *Config) RedisPoolSizeNumber() int {
	n, _ := strconv.Atoi(c.RedisPoolSize)
	return n
}

// PostgresDSN builds a pgx connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresUser, c.PostgresPassword, c.PostgresSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv accepts anything strconv.ParseBool does; other values yield defaultValue.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv returns -1 for an unparsable value so Validate can reject it.
func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return parsed
}

// getDurationEnv returns -1 for an unparsable value so Validate can reject it.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return -1
	}
	return parsed
}

// Validate checks required fields, formats and cross-field dependencies.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.IsPostgres() {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	if c.RedisEnabled() {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
		if c.RedisDialTimeout <= 0 {
			return fmt.Errorf("REDIS_DIAL_TIMEOUT must be a positive duration (e.g., '5s')")
		}
		if c.RedisCommandTimeout <= 0 {
			return fmt.Errorf("REDIS_COMMAND_TIMEOUT must be a positive duration (e.g., '2s')")
		}
	}

	if c.CacheMaxEntries < 1 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be a positive number")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.CacheSweepSchedule); err != nil {
		return fmt.Errorf("CACHE_SWEEP_SCHEDULE is not a valid cron spec: %v", err)
	}
	if c.CacheWarmupSchedule != "" {
		if _, err := parser.Parse(c.CacheWarmupSchedule); err != nil {
			return fmt.Errorf("CACHE_WARMUP_SCHEDULE is not a valid cron spec: %v", err)
		}
	}

	return nil
}

// IsPostgres reports whether DATABASE_TYPE selects PostgreSQL.
func (c *Config) IsPostgres() bool {
	return c.DatabaseType == "postgres" || c.DatabaseType == "postgresql"
}
