// Package logging provides structured logging using zap
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
)

// NewDefaultLogger creates a stdout logger honouring LOG_LEVEL.
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(DefaultLogConfig())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger configures the global logger from LOG_LEVEL and LOG_FILE.
// With LOG_FILE unset, entries go to stdout.
func InitGlobalLogger() error {
	level := ParseLevel(os.Getenv("LOG_LEVEL"))

	var out io.Writer = os.Stdout
	logFileName := os.Getenv("LOG_FILE")
	if logFileName != "" {
		file, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFileName, err)
		}
		out = file
	}

	logger, err := NewZapLogger(LogConfig{Level: level, Output: out, Name: "storefront"})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	SetGlobalLogger(logger)

	logger.Info("Logger initialized",
		Field{"level", level.String()},
		Field{"log_file", logFileName},
	)
	return nil
}

// MustSync flushes any buffered log entries; call before exit.
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}
