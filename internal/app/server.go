package app

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"storefront/internal/common/logging"
	"storefront/internal/handlers"
	"storefront/internal/server"
)

// Handler builds the fully routed HTTP handler.
func (app *App) Handler() http.Handler {
	var redisHealth handlers.HealthChecker
	if app.RedisClient != nil {
		redisHealth = app.RedisClient
	}
	h := handlers.New(app.Storage, app.Cache, app.Warmer, redisHealth)

	router := mux.NewRouter()
	SetupRoutes(router, h, app.Cache, app.Queue, app.Auth)
	return router
}

// RunServer starts the scheduler and returns the HTTP server, not yet started.
func (app *App) RunServer() *server.Server {
	app.Scheduler.Start()
	return server.New(app.Handler(), app.Config.Port, "", "")
}

// Shutdown gracefully stops background work
func (app *App) Shutdown(ctx context.Context) error {
	if app.Scheduler != nil {
		if err := app.Scheduler.Stop(ctx); err != nil {
			app.Logger.Warn("Error stopping scheduler", logging.Err(err))
		} else {
			app.Logger.Info("Scheduler stopped")
		}
	}

	// Drain pending cache writes and invalidations
	if app.Queue != nil {
		if err := app.Queue.Stop(ctx); err != nil {
			return err
		}
		app.Logger.Info("Cache task queue drained")
	}
	return nil
}
