package scheduler

import (
	"context"
	"time"

	"storefront/internal/cache"
	"storefront/internal/common/logging"
	"storefront/internal/warmup"
)

// Exclusive runs fn only while holding a cluster-wide lock on key.
// locks.Manager implements it.
type Exclusive interface {
	RunExclusive(ctx context.Context, key string, expiration time.Duration, fn func(ctx context.Context) error) (bool, error)
}

// SweepJob removes expired entries from the local tier.
func SweepJob(store *cache.Store, logger logging.Logger) Job {
	return func(context.Context) error {
		if removed := store.Cleanup(); removed > 0 {
			logger.Info("Expired cache entries swept",
				logging.Int("removed", removed),
				logging.Int("size", store.Len()),
			)
		}
		return nil
	}
}

// WarmupJob runs warmer under the warmup lock. With a nil locker the
// warmup always runs on this instance.
func WarmupJob(warmer *warmup.Warmer, locker Exclusive, lockTTL time.Duration, logger logging.Logger) Job {
	run := func(ctx context.Context) error {
		_, err := warmer.Run(ctx)
		return err
	}
	return func(ctx context.Context) error {
		if locker == nil {
			return run(ctx)
		}
		ran, err := locker.RunExclusive(ctx, warmup.LockKey, lockTTL, run)
		if err == nil && !ran {
			logger.Debug("Cache warmup skipped, another instance holds the lock")
		}
		return err
	}
}
