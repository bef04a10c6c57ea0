// Package locks provides distributed locks on the remote cache's Redis using
// the Redlock implementation from go-redsync/redsync/v4. Scheduled jobs that
// must run on one instance at a time, such as cache warmup, take a lock here.
package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	apperrors "storefront/internal/common/errors"
	"storefront/internal/common/logging"
	"storefront/internal/redis"
)

// ErrLockHeld is returned when another instance holds the lock.
var ErrLockHeld = errors.New("lock is held elsewhere")

// Lock is an acquired distributed lock.
type Lock interface {
	Key() string
	Release(ctx context.Context) error
	IsHeld() bool
}

// Manager hands out redsync mutexes and renews them while held.
type Manager struct {
	redsync    *redsync.Redsync
	logger     logging.Logger
	localLocks map[string]*redsyncLock
	mu         sync.Mutex
}

type redsyncLock struct {
	mutex      *redsync.Mutex
	key        string
	expiration time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	manager    *Manager
	once       sync.Once
}

// NewManager creates a lock manager sharing the cache's Redis connection pool.
func NewManager(client *redis.Client, logger logging.Logger) (*Manager, error) {
	if client == nil {
		return nil, apperrors.ConfigError("redis client is required")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	pool := goredis.NewPool(client.GetGoRedisClient())
	return &Manager{
		redsync:    redsync.New(pool),
		logger:     logger.WithFields(logging.Field{Key: "component", Value: "locks"}),
		localLocks: make(map[string]*redsyncLock),
	}, nil
}

// AcquireLock makes a single attempt to take key. It returns ErrLockHeld
// (wrapped) when the lock is taken; the lock is renewed at a third of
// expiration until released.
func (m *Manager) AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	mutex := m.redsync.NewMutex(fmt.Sprintf("lock:%s", key),
		redsync.WithExpiry(expiration),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, fmt.Errorf("%s: %w", key, ErrLockHeld)
		}
		return nil, apperrors.InternalError("failed to acquire distributed lock", err)
	}

	lockCtx, cancel := context.WithCancel(context.Background())
	lock := &redsyncLock{
		mutex:      mutex,
		key:        key,
		expiration: expiration,
		ctx:        lockCtx,
		cancel:     cancel,
		manager:    m,
	}

	m.mu.Lock()
	m.localLocks[key] = lock
	m.mu.Unlock()

	go m.renew(lock)
	return lock, nil
}

// RunExclusive runs fn while holding key. ran is false when another
// instance holds the lock.
func (m *Manager) RunExclusive(ctx context.Context, key string, expiration time.Duration, fn func(ctx context.Context) error) (ran bool, err error) {
	lock, err := m.AcquireLock(ctx, key, expiration)
	if errors.Is(err, ErrLockHeld) {
		m.logger.Debug("Skipping exclusive job, lock held", logging.Field{Key: "lock", Value: key})
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer lock.Release(context.Background())

	return true, fn(ctx)
}

func (m *Manager) renew(lock *redsyncLock) {
	interval := lock.expiration / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-lock.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			ok, err := lock.mutex.ExtendContext(ctx)
			cancel()
			if err != nil || !ok {
				m.logger.Warn("Lost distributed lock", logging.Field{Key: "lock", Value: lock.key}, logging.Err(err))
				lock.Release(context.Background())
				return
			}
		}
	}
}

// Close releases every lock still held by this manager.
func (m *Manager) Close() error {
	m.mu.Lock()
	held := make([]*redsyncLock, 0, len(m.localLocks))
	for _, lock := range m.localLocks {
		held = append(held, lock)
	}
	m.mu.Unlock()

	for _, lock := range held {
		lock.Release(context.Background())
	}
	return nil
}

func (l *redsyncLock) Key() string {
	return l.key
}

// Release stops renewal and deletes the lock from Redis. It is idempotent.
func (l *redsyncLock) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		l.cancel()

		l.manager.mu.Lock()
		delete(l.manager.localLocks, l.key)
		l.manager.mu.Unlock()

		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, unlockErr := l.mutex.UnlockContext(ctx); unlockErr != nil {
			err = apperrors.InternalError("failed to release distributed lock", unlockErr)
		}
	})
	return err
}

func (l *redsyncLock) IsHeld() bool {
	select {
	case <-l.ctx.Done():
		return false
	default:
		return true
	}
}
