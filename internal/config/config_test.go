package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/cache"
	apperrors "storefront/internal/common/errors"
)

var configEnvVars = []string{
	"PORT", "LOG_LEVEL", "LOG_FILE",
	"DATABASE_TYPE", "DATABASE_PATH",
	"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_DB", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_SSL_MODE",
	"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE", "REDIS_DIAL_TIMEOUT", "REDIS_COMMAND_TIMEOUT",
	"CACHE_MAX_ENTRIES", "CACHE_SWEEP_SCHEDULE", "CACHE_WARMUP_SCHEDULE", "CACHE_POLICY_FILE", "CACHE_BROADCAST",
	"JWT_SECRET",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
	}
}

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "./storefront.db", cfg.DatabasePath)
	assert.Equal(t, "", cfg.RedisAddress)
	assert.False(t, cfg.RedisEnabled())
	assert.Equal(t, 5*time.Second, cfg.RedisDialTimeout)
	assert.Equal(t, 2*time.Second, cfg.RedisCommandTimeout)
	assert.Equal(t, 1000, cfg.CacheMaxEntries)
	assert.Equal(t, "@every 5m", cfg.CacheSweepSchedule)
	assert.Equal(t, "", cfg.CacheWarmupSchedule)
	assert.True(t, cfg.CacheBroadcast)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDRESS", "redis:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_POOL_SIZE", "20")
	t.Setenv("REDIS_COMMAND_TIMEOUT", "750ms")
	t.Setenv("CACHE_MAX_ENTRIES", "50")
	t.Setenv("CACHE_BROADCAST", "false")
	t.Setenv("CACHE_WARMUP_SCHEDULE", "0 * * * *")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, 3, cfg.RedisDBNumber())
	assert.Equal(t, 20, cfg.RedisPoolSizeNumber())
	assert.Equal(t, 750*time.Millisecond, cfg.RedisCommandTimeout)
	assert.Equal(t, 50, cfg.CacheMaxEntries)
	assert.False(t, cfg.CacheBroadcast)
	assert.Equal(t, "0 * * * *", cfg.CacheWarmupSchedule)
}

func TestGetBoolEnv_InvalidFallsBack(t *testing.T) {
	t.Setenv("CACHE_BROADCAST", "perhaps")
	assert.True(t, getBoolEnv("CACHE_BROADCAST", true))
}

func validConfig() *Config {
	cfg := &Config{
		Port:                "8080",
		DatabaseType:        "sqlite",
		RedisDB:             "0",
		RedisPoolSize:       "10",
		RedisDialTimeout:    time.Second,
		RedisCommandTimeout: time.Second,
		CacheMaxEntries:     100,
		CacheSweepSchedule:  "@every 5m",
		JWTSecret:           testSecret,
	}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET environment variable is required"},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, "at least 32 characters"},
		{"bad port", func(c *Config) { c.Port = "99999" }, "PORT must be"},
		{"bad database", func(c *Config) { c.DatabaseType = "mongo" }, "DATABASE_TYPE"},
		{"postgres without user", func(c *Config) {
			c.DatabaseType = "postgres"
			c.PostgresHost, c.PostgresDB, c.PostgresPort = "db", "shop", "5432"
		}, "POSTGRES_USER"},
		{"redis db out of range", func(c *Config) {
			c.RedisAddress = "localhost:6379"
			c.RedisDB = "16"
		}, "REDIS_DB"},
		{"redis timeout invalid", func(c *Config) {
			c.RedisAddress = "localhost:6379"
			c.RedisCommandTimeout = -1
		}, "REDIS_COMMAND_TIMEOUT"},
		{"redis settings ignored when disabled", func(c *Config) { c.RedisDB = "nope" }, ""},
		{"zero capacity", func(c *Config) { c.CacheMaxEntries = 0 }, "CACHE_MAX_ENTRIES"},
		{"bad sweep schedule", func(c *Config) { c.CacheSweepSchedule = "whenever" }, "CACHE_SWEEP_SCHEDULE"},
		{"bad warmup schedule", func(c *Config) { c.CacheWarmupSchedule = "61 * * * *" }, "CACHE_WARMUP_SCHEDULE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_UnparsableNumbersFailValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("CACHE_MAX_ENTRIES", "lots")

	assert.Error(t, Load().Validate())
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{PostgresHost: "db", PostgresPort: "5432", PostgresDB: "shop", PostgresUser: "app", PostgresPassword: "pw", PostgresSSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 dbname=shop user=app password=pw sslmode=disable", cfg.PostgresDSN())
	assert.True(t, (&Config{DatabaseType: "postgresql"}).IsPostgres())
}

func TestParsePolicy(t *testing.T) {
	policy, err := ParsePolicy([]byte(`
categories:
  products: { remote: 120s, local: 30s }
  stats:
    remote: 1m
    local: 5m
default: { remote: 10m, local: 1m }
`))
	require.NoError(t, err)

	assert.Equal(t, cache.TTL{Remote: 2 * time.Minute, Local: 30 * time.Second}, policy.For(cache.CategoryProducts))
	assert.Equal(t, cache.TTL{Remote: time.Minute, Local: time.Minute}, policy.For(cache.CategoryStats), "local is clamped to remote")
	assert.Equal(t, 2*time.Hour, policy.For(cache.CategoryCategories).Remote)
	assert.Equal(t, cache.TTL{Remote: 10 * time.Minute, Local: time.Minute}, policy.For("orders"))
}

func TestParsePolicy_Errors(t *testing.T) {
	_, err := ParsePolicy([]byte("categories:\n  orders: { remote: 1m }\n"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = ParsePolicy([]byte("categories:\n  products: { remote: 0s }\n"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = ParsePolicy([]byte("categories: [not, a, map]"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestLoadPolicy(t *testing.T) {
	policy, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, cache.DefaultPolicy().For(cache.CategoryProducts), policy.For(cache.CategoryProducts))

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  search: { remote: 30s, local: 10s }\n"), 0o600))

	policy, err = LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, cache.TTL{Remote: 30 * time.Second, Local: 10 * time.Second}, policy.For(cache.CategorySearch))

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}
