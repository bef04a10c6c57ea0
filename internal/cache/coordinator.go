package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"storefront/internal/circuitbreaker"
	apperrors "storefront/internal/common/errors"
	"storefront/internal/common/logging"
)

const (
	ModeTwoTier    = "two-tier (memory+redis)"
	ModeMemoryOnly = "memory-only"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithPolicy(policy Policy) Option {
	return func(c *Coordinator) { c.policy = policy }
}

func WithLogger(logger logging.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNotifier publishes every invalidation to other instances.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// Coordinator composes the local Store and an optional Remote tier into a
// single read-through/write-through cache. No method returns an error for
// a cache-internal failure; failures are logged and degrade to a miss.
type Coordinator struct {
	local    *Store
	remote   Remote
	policy   Policy
	notifier Notifier
	logger   logging.Logger
	loads    singleflight.Group
}

// NewCoordinator wires the tiers. remote may be nil for memory-only mode.
func NewCoordinator(local *Store, remote Remote, opts ...Option) *Coordinator {
	if local == nil {
		local = NewStore(DefaultMaxEntries)
	}
	c := &Coordinator{
		local:  local,
		remote: remote,
		policy: DefaultPolicy(),
		logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "cache"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Local exposes the in-process tier.
func (c *Coordinator) Local() *Store { return c.local }

// Policy returns the TTL table in force.
func (c *Coordinator) Policy() Policy { return c.policy }

// Mode describes which tiers are active.
func (c *Coordinator) Mode() string {
	if c.remote == nil {
		return ModeMemoryOnly
	}
	return ModeTwoTier
}

// GenerateKey builds a key per GenerateKey.
func (c *Coordinator) GenerateKey(category Category, identifier string, params Params) string {
	return GenerateKey(category, identifier, params)
}

// Get looks in the local tier, then the remote tier. A remote hit is copied
// into the local tier with the category's local TTL.
func (c *Coordinator) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	if v, ok := c.local.Get(key); ok {
		if raw, ok := v.(json.RawMessage); ok {
			return raw, true
		}
		c.logger.Warn("Unexpected local cache value type, dropping entry",
			logging.Field{Key: "key", Value: key},
			logging.Field{Key: "type", Value: fmt.Sprintf("%T", v)},
		)
		c.local.Delete(key)
	}

	if c.remote == nil {
		return nil, false
	}

	data, ok := c.remote.Get(ctx, key)
	if !ok {
		return nil, false
	}
	if !json.Valid([]byte(data)) {
		c.logger.Warn("Discarding undecodable remote cache value",
			logging.Field{Key: "key", Value: key},
			logging.Err(apperrors.SerializationError(key, fmt.Errorf("invalid JSON"))),
		)
		return nil, false
	}

	raw := json.RawMessage(data)
	c.local.Set(key, raw, c.policy.For(CategoryOf(key)).Local)
	return raw, true
}

// GetJSON decodes the cached value into dest. A decode failure is a miss.
func (c *Coordinator) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("Cache value decode failed", logging.Err(apperrors.SerializationError(key, err)))
		return false
	}
	return true
}

// Set encodes value as JSON and writes it to the remote tier, then the local
// tier. ttl overrides the category's remote TTL when positive; the local TTL
// never exceeds the remote one. It reports false only when value cannot be
// encoded.
func (c *Coordinator) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Cache value encode failed", logging.Err(apperrors.SerializationError(key, err)))
		return false
	}
	c.store(ctx, key, data, ttl)
	return true
}

// SetRaw stores an already encoded JSON document.
func (c *Coordinator) SetRaw(ctx context.Context, key string, data []byte, ttl time.Duration) bool {
	if !json.Valid(data) {
		c.logger.Warn("Refusing to cache invalid JSON",
			logging.Err(apperrors.SerializationError(key, fmt.Errorf("invalid JSON"))))
		return false
	}
	c.store(ctx, key, data, ttl)
	return true
}

func (c *Coordinator) store(ctx context.Context, key string, data []byte, ttl time.Duration) {
	policy := c.policy.For(CategoryOf(key))
	remoteTTL := policy.Remote
	if ttl > 0 {
		remoteTTL = ttl
	}
	localTTL := policy.Local
	if localTTL > remoteTTL {
		localTTL = remoteTTL
	}

	if c.remote != nil && !c.remote.Set(ctx, key, string(data), remoteTTL) {
		c.logger.Debug("Remote cache write skipped", logging.Field{Key: "key", Value: key})
	}
	c.local.Set(key, json.RawMessage(data), localTTL)
}

// Coalesce runs load once for all concurrent callers sharing key and hands
// each of them its result. shared reports whether the result was produced
// by another caller's load.
func (c *Coordinator) Coalesce(key string, load func() (interface{}, error)) (v interface{}, err error, shared bool) {
	return c.loads.Do(key, load)
}

// Warmup stores value under <category>:warmup.
func (c *Coordinator) Warmup(ctx context.Context, category Category, value interface{}) bool {
	return c.Set(ctx, GenerateKey(category, "warmup", nil), value, 0)
}

// Invalidate removes key from both tiers.
func (c *Coordinator) Invalidate(ctx context.Context, key string) {
	if c.remote != nil {
		c.remote.Delete(ctx, key)
	}
	c.local.Delete(key)
	c.notify(ctx, InvalidationEvent{Key: key})
}

// InvalidateByPattern removes every key starting with prefix from both
// tiers. An empty prefix is ignored; use Clear to drop everything.
func (c *Coordinator) InvalidateByPattern(ctx context.Context, prefix string) {
	if prefix == "" {
		c.logger.Warn("Ignoring invalidation with empty prefix")
		return
	}

	remoteRemoved := 0
	if c.remote != nil {
		remoteRemoved, _ = c.remote.DeleteMatchingPrefix(ctx, prefix)
	}
	localRemoved := c.local.DeletePrefix(prefix)

	c.logger.Debug("Cache prefix invalidated",
		logging.Field{Key: "prefix", Value: prefix},
		logging.Field{Key: "remote_removed", Value: remoteRemoved},
		logging.Field{Key: "local_removed", Value: localRemoved},
	)
	c.notify(ctx, InvalidationEvent{Prefix: prefix})
}

// Clear invalidates every known category.
func (c *Coordinator) Clear(ctx context.Context) {
	for _, category := range Categories() {
		c.InvalidateByPattern(ctx, string(category))
	}
}

// ApplyInvalidation replays an invalidation received from another instance
// on the local tier only.
func (c *Coordinator) ApplyInvalidation(event InvalidationEvent) {
	switch {
	case event.Key != "":
		c.local.Delete(event.Key)
	case event.Prefix != "":
		c.local.DeletePrefix(event.Prefix)
	}
}

func (c *Coordinator) notify(ctx context.Context, event InvalidationEvent) {
	if c.notifier != nil {
		c.notifier.NotifyInvalidation(ctx, event)
	}
}

// MemorySnapshot is the local half of Stats.
type MemorySnapshot struct {
	Size  int        `json:"size"`
	Keys  []string   `json:"keys"`
	Stats StoreStats `json:"stats"`
}

// BreakerReporter is implemented by remotes guarded by a circuit breaker.
type BreakerReporter interface {
	BreakerStats() circuitbreaker.Stats
}

// Stats combines the remote server's memory report with the local tier.
type Stats struct {
	Mode      string                `json:"mode"`
	Redis     string                `json:"redis,omitempty"`
	Breaker   *circuitbreaker.Stats `json:"breaker,omitempty"`
	Memory    MemorySnapshot        `json:"memory"`
	Timestamp time.Time             `json:"timestamp"`
}

// Stats returns nil when the remote tier is configured but cannot report.
func (c *Coordinator) Stats(ctx context.Context) *Stats {
	stats := &Stats{
		Mode: c.Mode(),
		Memory: MemorySnapshot{
			Size:  c.local.Len(),
			Keys:  c.local.Keys(""),
			Stats: c.local.Stats(),
		},
		Timestamp: time.Now().UTC(),
	}

	if c.remote != nil {
		info, ok := c.remote.Info(ctx, "memory")
		if !ok {
			return nil
		}
		stats.Redis = info
		if reporter, ok := c.remote.(BreakerReporter); ok {
			breaker := reporter.BreakerStats()
			stats.Breaker = &breaker
		}
	}
	return stats
}

// KeyCounts are the per-tier totals of a KeyListing.
type KeyCounts struct {
	Redis  int `json:"redis"`
	Memory int `json:"memory"`
}

// KeyListing lists cached keys per tier.
type KeyListing struct {
	Redis  []string  `json:"redis"`
	Memory []string  `json:"memory"`
	Total  KeyCounts `json:"total"`
}

// Keys lists cache keys from both tiers. Remote keys match pattern as a
// prefix, local keys as a substring. Remote keys outside the known
// categories, such as revoked tokens, are not listed.
func (c *Coordinator) Keys(ctx context.Context, pattern string) KeyListing {
	listing := KeyListing{Redis: []string{}, Memory: c.local.Keys(pattern)}
	if c.remote != nil {
		for _, key := range c.remote.ListKeys(ctx, pattern) {
			if _, ok := ParseCategory(string(CategoryOf(key))); ok {
				listing.Redis = append(listing.Redis, key)
			}
		}
	}
	listing.Total = KeyCounts{Redis: len(listing.Redis), Memory: len(listing.Memory)}
	return listing
}
