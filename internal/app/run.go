package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storefront/internal/common/logging"
	"storefront/internal/config"
)

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logging
	if err := logging.InitGlobalLogger(); err != nil {
		return err
	}
	defer logging.MustSync()

	logging.Info("Starting storefront",
		logging.Int("cpus", runtime.NumCPU()),
		logging.String("go_version", runtime.Version()),
	)

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	// Initialize application
	app, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	// Start server
	srv := app.RunServer()
	if err := srv.Start(); err != nil {
		logging.Error("Server failed to start", err)
		return err
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting requests before draining background cache work
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err)
		return err
	}

	if err := app.Shutdown(ctx); err != nil {
		logging.Warn("Error during app shutdown", logging.Err(err))
	}

	logging.Info("Server exited")
	return nil
}
