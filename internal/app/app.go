package app

import (
	"context"

	"storefront/internal/auth"
	"storefront/internal/cache"
	"storefront/internal/common/logging"
	"storefront/internal/config"
	"storefront/internal/locks"
	"storefront/internal/redis"
	"storefront/internal/scheduler"
	"storefront/internal/storage"
	"storefront/internal/warmup"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Storage     storage.Storage
	Cache       *cache.Coordinator
	Queue       *cache.TaskQueue
	Warmer      *warmup.Warmer
	Auth        *auth.Auth
	RedisClient *redis.Client
	Broadcaster *redis.Broadcaster
	Locks       *locks.Manager
	Scheduler   *scheduler.Scheduler
	Logger      logging.Logger

	stopListener context.CancelFunc
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}

	if err := app.initializeStorage(); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(); err != nil {
		// The remote tier is optional; the cache falls back to memory-only
		app.Logger.Warn("Redis initialization failed, continuing memory-only",
			logging.Err(err))
		if app.RedisClient != nil {
			app.RedisClient.Close()
		}
		app.RedisClient, app.Locks, app.Broadcaster = nil, nil, nil
	}

	if err := app.initializeCache(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeAuth(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeScheduler(); err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.stopListener != nil {
		app.stopListener()
	}
	if app.Locks != nil {
		app.Locks.Close()
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
	if app.Storage != nil {
		app.Storage.Close()
	}
}
