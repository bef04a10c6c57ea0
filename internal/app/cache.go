package app

import (
	"context"
	"time"

	"storefront/internal/cache"
	"storefront/internal/common/logging"
	"storefront/internal/config"
	"storefront/internal/scheduler"
	"storefront/internal/warmup"
)

const warmupLockTTL = 5 * time.Minute

func (app *App) initializeCache() error {
	if err := cache.CheckPrefixCollisions(cache.Categories()); err != nil {
		return err
	}

	policy, err := config.LoadPolicy(app.Config.CachePolicyFile)
	if err != nil {
		return err
	}

	opts := []cache.Option{
		cache.WithPolicy(policy),
		cache.WithLogger(app.Logger.WithFields(logging.Field{Key: "component", Value: "cache"})),
	}
	if app.Broadcaster != nil {
		opts = append(opts, cache.WithNotifier(app.Broadcaster))
	}

	var remote cache.Remote
	if app.RedisClient != nil {
		remote = app.RedisClient
	}

	app.Cache = cache.NewCoordinator(cache.NewStore(app.Config.CacheMaxEntries), remote, opts...)
	app.Queue = cache.NewTaskQueue(cache.DefaultQueueConfig(),
		app.Logger.WithFields(logging.Field{Key: "component", Value: "cache_queue"}))
	app.Warmer = warmup.New(app.Storage, app.Cache,
		app.Logger.WithFields(logging.Field{Key: "component", Value: "cache_warmup"}))

	if app.Broadcaster != nil {
		ctx, cancel := context.WithCancel(context.Background())
		app.stopListener = cancel
		go app.Broadcaster.Listen(ctx, app.Cache.ApplyInvalidation)
	}

	app.Logger.Info("Cache initialized",
		logging.Field{Key: "mode", Value: app.Cache.Mode()},
		logging.Field{Key: "max_entries", Value: app.Cache.Local().MaxSize()},
		logging.Field{Key: "policy_file", Value: app.Config.CachePolicyFile},
	)
	return nil
}

func (app *App) initializeScheduler() error {
	logger := app.Logger.WithFields(logging.Field{Key: "component", Value: "scheduler"})
	app.Scheduler = scheduler.New(warmupLockTTL, logger)

	if err := app.Scheduler.Add("cache-sweep", app.Config.CacheSweepSchedule,
		scheduler.SweepJob(app.Cache.Local(), logger)); err != nil {
		return err
	}

	if app.Config.CacheWarmupSchedule == "" {
		return nil
	}

	var locker scheduler.Exclusive
	if app.Locks != nil {
		locker = app.Locks
	}
	return app.Scheduler.Add("cache-warmup", app.Config.CacheWarmupSchedule,
		scheduler.WarmupJob(app.Warmer, locker, warmupLockTTL, logger))
}
