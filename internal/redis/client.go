// Package redis is the remote cache tier: a go-redis client guarded by a
// circuit breaker that never surfaces transport failures to callers.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"storefront/internal/cache"
	"storefront/internal/circuitbreaker"
	apperrors "storefront/internal/common/errors"
	"storefront/internal/common/logging"
)

const scanBatch = 100

var (
	_ cache.Remote          = (*Client)(nil)
	_ cache.BreakerReporter = (*Client)(nil)
)

type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `json:"dial_timeout"`
	// CommandTimeout bounds every single command, including retries.
	CommandTimeout time.Duration `json:"command_timeout"`
	MaxRetries     int           `json:"max_retries"`

	Breaker circuitbreaker.Config `json:"-"`
}

func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = "localhost:6379"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 2 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.Breaker == (circuitbreaker.Config{}) {
		c.Breaker = circuitbreaker.DefaultConfig()
	}
}

// Client implements cache.Remote. The connection is established lazily, so
// an unreachable server at startup only produces misses until it recovers.
type Client struct {
	rdb     *redis.Client
	config  *Config
	breaker *circuitbreaker.Breaker
	logger  logging.Logger
}

func NewClient(config *Config, logger logging.Logger) (*Client, error) {
	if config == nil {
		return nil, apperrors.ConfigError("redis config is required")
	}
	config.applyDefaults()
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.Field{Key: "component", Value: "redis"}, logging.Field{Key: "address", Value: config.Address})

	rdb := redis.NewClient(&redis.Options{
		Addr:            config.Address,
		Password:        config.Password,
		DB:              config.DB,
		PoolSize:        config.PoolSize,
		DialTimeout:     config.DialTimeout,
		ReadTimeout:     config.CommandTimeout,
		WriteTimeout:    config.CommandTimeout,
		MaxRetries:      config.MaxRetries,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 2 * time.Second,
	})

	return &Client{
		rdb:     rdb,
		config:  config,
		breaker: circuitbreaker.New("redis-cache", config.Breaker, logger),
		logger:  logger,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings the server directly, bypassing the breaker.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return apperrors.ConnectionError("redis ping failed", err)
	}
	return nil
}

// GetGoRedisClient exposes the underlying client for redsync.
func (c *Client) GetGoRedisClient() *redis.Client {
	return c.rdb
}

func (c *Client) BreakerStats() circuitbreaker.Stats {
	return c.breaker.Stats()
}

// do runs fn under the command timeout and the breaker, logging failures.
func (c *Client) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.CommandTimeout)
	defer cancel()

	err := c.breaker.Execute(ctx, func() error { return fn(ctx) })
	if err == nil {
		return nil
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		c.logger.Debug("Remote cache command skipped", logging.Field{Key: "op", Value: op}, logging.Err(err))
	} else {
		c.logger.Warn("Remote cache command failed", logging.Field{Key: "op", Value: op}, logging.Err(apperrors.TransportError(op, err)))
	}
	return err
}

func (c *Client) Get(ctx context.Context, key string) (string, bool) {
	var (
		value string
		found bool
	)
	err := c.do(ctx, "get", func(ctx context.Context) error {
		v, err := c.rdb.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		value, found = v, true
		return nil
	})
	return value, err == nil && found
}

func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) bool {
	return c.do(ctx, "set", func(ctx context.Context) error {
		return c.rdb.Set(ctx, key, value, ttl).Err()
	}) == nil
}

func (c *Client) Delete(ctx context.Context, keys ...string) bool {
	if len(keys) == 0 {
		return true
	}
	return c.do(ctx, "del", func(ctx context.Context) error {
		return c.rdb.Del(ctx, keys...).Err()
	}) == nil
}

// ListKeys walks the keyspace with SCAN, never KEYS.
func (c *Client) ListKeys(ctx context.Context, prefix string) []string {
	var keys []string
	err := c.do(ctx, "scan", func(ctx context.Context) error {
		found, err := c.scan(ctx, prefix)
		keys = found
		return err
	})
	if err != nil {
		return nil
	}
	sort.Strings(keys)
	return keys
}

// DeleteMatchingPrefix scans for prefix and deletes matches in batches.
func (c *Client) DeleteMatchingPrefix(ctx context.Context, prefix string) (int, bool) {
	removed := 0
	err := c.do(ctx, "delete_prefix", func(ctx context.Context) error {
		keys, err := c.scan(ctx, prefix)
		if err != nil {
			return err
		}
		for start := 0; start < len(keys); start += scanBatch {
			end := start + scanBatch
			if end > len(keys) {
				end = len(keys)
			}
			n, err := c.rdb.Del(ctx, keys[start:end]...).Result()
			if err != nil {
				return err
			}
			removed += int(n)
		}
		return nil
	})
	return removed, err == nil
}

func (c *Client) scan(ctx context.Context, prefix string) ([]string, error) {
	match := escapePattern(prefix) + "*"
	keys := []string{}
	seen := make(map[string]struct{})

	var cursor uint64
	for {
		batch, next, err := c.rdb.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// Info returns the INFO report for section.
func (c *Client) Info(ctx context.Context, section string) (string, bool) {
	var info string
	err := c.do(ctx, "info", func(ctx context.Context) error {
		var err error
		info, err = c.rdb.Info(ctx, section).Result()
		return err
	})
	return info, err == nil
}

func (c *Client) Publish(ctx context.Context, channel string, message []byte) bool {
	return c.do(ctx, "publish", func(ctx context.Context) error {
		return c.rdb.Publish(ctx, channel, message).Err()
	}) == nil
}

// Subscribe is not guarded by the breaker; the caller owns the PubSub.
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channels...)
}

func escapePattern(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *Client) String() string {
	return fmt.Sprintf("redis(%s/%d)", c.config.Address, c.config.DB)
}
