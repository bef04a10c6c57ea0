package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{" Error ", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.in))
		})
	}
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestZapAdapter_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
	require.NoError(t, err)

	logger.Debug("debug message", Field{"key", "value"})
	logger.Info("info message", Field{"count", 42})
	logger.Warn("warn message", Field{"flag", true})
	logger.Error("error message", errors.New("boom"), Field{"code", 500})

	output := buf.String()
	for _, s := range []string{"DEBUG", "debug message", "value", "INFO", "42", "WARN", "true", "ERROR", "boom", "500"} {
		assert.Contains(t, output, s)
	}
}

func TestZapAdapter_Filtering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: WarnLevel, Output: &buf})
	require.NoError(t, err)

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("shown warn")
	logger.Error("shown error", nil)

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, "shown warn")
	assert.Contains(t, output, "shown error")
}

func TestZapAdapter_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf, Name: "storefront"})
	require.NoError(t, err)

	logger.WithFields(Field{"component", "cache"}).Info("with fields")

	output := buf.String()
	assert.Contains(t, output, "storefront")
	assert.Contains(t, output, "cache")
	assert.Contains(t, output, "with fields")
}

func TestZapAdapter_WithContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
	require.NoError(t, err)

	ctx := ContextWithRequestID(context.Background(), "req-123")
	logger.WithContext(ctx).Info("context message")
	assert.Contains(t, buf.String(), "req-123")

	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestRequestIDFromContext(t *testing.T) {
	_, ok := RequestIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := RequestIDFromContext(ContextWithRequestID(context.Background(), "abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
	require.NoError(t, err)
	SetGlobalLogger(logger)

	assert.Equal(t, logger, GetGlobalLogger())

	Debug("debug from global")
	Info("info from global")
	Warn("warn from global")
	Error("error from global", errors.New("global error"))

	output := buf.String()
	assert.Contains(t, output, "debug from global")
	assert.Contains(t, output, "info from global")
	assert.Contains(t, output, "warn from global")
	assert.Contains(t, output, "global error")
}
