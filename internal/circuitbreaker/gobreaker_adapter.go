// Package circuitbreaker guards calls to the remote cache tier using Sony's gobreaker
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	apperrors "storefront/internal/common/errors"
	"storefront/internal/common/logging"
)

// ErrOpen is returned (wrapped) when a call is rejected without being attempted.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the breaker
	MaxFailures int
	// Timeout is how long the breaker stays open before probing again
	Timeout time.Duration
	// HalfOpenRequests is the number of trial calls allowed, and successes required, while half-open
	HalfOpenRequests int
}

// DefaultConfig returns the settings used for the remote cache.
func DefaultConfig() Config {
	return Config{
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.HalfOpenRequests <= 0 {
		return fmt.Errorf("HalfOpenRequests must be positive, got %d", c.HalfOpenRequests)
	}
	return nil
}

// State represents the current state of the circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Stats is the breaker snapshot exposed by the cache admin endpoints.
type Stats struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	Failures            uint32 `json:"failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// Breaker wraps a gobreaker.CircuitBreaker.
type Breaker struct {
	name    string
	config  Config
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// New creates a breaker. An invalid config falls back to DefaultConfig.
func New(name string, config Config, logger logging.Logger) *Breaker {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if err := config.Validate(); err != nil {
		logger.Warn("Invalid circuit breaker config, using defaults",
			logging.Field{Key: "error", Value: err.Error()},
			logging.Field{Key: "name", Value: name},
		)
		config = DefaultConfig()
	}

	b := &Breaker{name: name, config: config, logger: logger}
	b.breaker = gobreaker.NewCircuitBreaker(b.settings())
	return b
}

func (b *Breaker) settings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        b.name,
		MaxRequests: uint32(b.config.HalfOpenRequests),
		Interval:    time.Minute,
		Timeout:     b.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(b.config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.logger.Warn("Circuit breaker state changed",
				logging.Field{Key: "breaker", Value: name},
				logging.Field{Key: "from", Value: from.String()},
				logging.Field{Key: "to", Value: to.String()},
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Caller mistakes and abandoned requests say nothing about the
			// health of the server.
			return errors.Is(err, context.Canceled) ||
				apperrors.IsType(err, apperrors.ErrTypeValidation) ||
				apperrors.IsType(err, apperrors.ErrTypeSerialization)
		},
	}
}

// Execute runs fn unless the breaker is open. A rejected call returns an
// error wrapping ErrOpen.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %v", b.name, ErrOpen, err)
	}
	return err
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	switch b.breaker.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// IsOpen reports whether calls are currently rejected.
func (b *Breaker) IsOpen() bool {
	return b.breaker.State() == gobreaker.StateOpen
}

func (b *Breaker) Stats() Stats {
	counts := b.breaker.Counts()
	return Stats{
		Name:                b.name,
		State:               b.State().String(),
		Requests:            counts.Requests,
		Failures:            counts.TotalFailures,
		ConsecutiveFailures: counts.ConsecutiveFailures,
	}
}
