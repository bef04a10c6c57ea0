// Package scheduler runs the periodic cache jobs: the local-tier expiry
// sweep and the optional warmup.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"storefront/internal/common/logging"
)

// Job is a unit of scheduled work.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	logger  logging.Logger
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// New returns a stopped scheduler. Each job run is bounded by timeout.
func New(timeout time.Duration, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "scheduler"})
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under a standard cron spec (five fields or a
// descriptor such as "@every 5m").
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("Scheduled job failed", err,
				logging.String("job", name),
				logging.Duration("elapsed", time.Since(start)),
			)
			return
		}
		s.logger.Debug("Scheduled job finished",
			logging.String("job", name),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	s.logger.Info("Scheduled job registered", logging.String("job", name), logging.String("schedule", spec))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, pairs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, pairs(keysAndValues)...)
}

func pairs(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprint(keysAndValues[i]), Value: keysAndValues[i+1]})
	}
	return fields
}
