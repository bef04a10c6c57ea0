package app

import (
	"context"
	"time"

	"storefront/internal/common/logging"
	"storefront/internal/locks"
	"storefront/internal/redis"
)

func (app *App) initializeRedis() error {
	if !app.Config.RedisEnabled() {
		app.Logger.Info("Redis: Not configured (cache runs memory-only, warmup lock disabled)")
		return nil
	}

	redisClient, err := redis.NewClient(&redis.Config{
		Address:        app.Config.RedisAddress,
		Password:       app.Config.RedisPassword,
		DB:             app.Config.RedisDBNumber(),
		PoolSize:       app.Config.RedisPoolSizeNumber(),
		DialTimeout:    app.Config.RedisDialTimeout,
		CommandTimeout: app.Config.RedisCommandTimeout,
	}, app.Logger.WithFields(logging.Field{Key: "component", Value: "redis"}))
	if err != nil {
		return err
	}
	app.RedisClient = redisClient

	// The connection is lazy; an unreachable server only degrades the cache.
	ctx, cancel := context.WithTimeout(context.Background(), app.Config.RedisDialTimeout+time.Second)
	defer cancel()
	if err := redisClient.Health(ctx); err != nil {
		app.Logger.Warn("Redis: Unreachable at startup, will retry on demand",
			logging.Field{Key: "address", Value: app.Config.RedisAddress},
			logging.Err(err),
		)
	} else {
		app.Logger.Info("Redis: Connected", logging.Field{Key: "address", Value: app.Config.RedisAddress})
	}

	lockManager, err := locks.NewManager(redisClient, app.Logger.WithFields(logging.Field{Key: "component", Value: "locks"}))
	if err != nil {
		return err
	}
	app.Locks = lockManager
	app.Logger.Info("Distributed Locks: Enabled")

	if app.Config.CacheBroadcast {
		app.Broadcaster = redis.NewBroadcaster(redisClient, app.Logger.WithFields(logging.Field{Key: "component", Value: "cache_broadcast"}))
		app.Logger.Info("Cache Invalidation Broadcast: Enabled",
			logging.Field{Key: "channel", Value: redis.InvalidationChannel},
			logging.Field{Key: "origin", Value: app.Broadcaster.Origin()},
		)
	}

	return nil
}
