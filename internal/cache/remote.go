package cache

import (
	"context"
	"time"
)

// Remote is the shared network tier. Implementations swallow transport
// failures: lookups degrade to a miss, writes to false, listings to nil.
type Remote interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) bool
	Delete(ctx context.Context, keys ...string) bool
	// DeleteMatchingPrefix removes every key starting with prefix.
	DeleteMatchingPrefix(ctx context.Context, prefix string) (int, bool)
	// ListKeys returns keys starting with prefix; an empty prefix lists all.
	ListKeys(ctx context.Context, prefix string) []string
	// Info returns the server's INFO output for section.
	Info(ctx context.Context, section string) (string, bool)
}

// InvalidationEvent describes a local-tier invalidation to replay on other
// instances. Exactly one of Key or Prefix is set.
type InvalidationEvent struct {
	Origin string `json:"origin"`
	Key    string `json:"key,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

// Notifier fans invalidations out to other instances sharing the remote tier.
type Notifier interface {
	NotifyInvalidation(ctx context.Context, event InvalidationEvent)
}
