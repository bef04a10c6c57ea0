package cache

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"storefront/internal/common/logging"
)

// Task is a unit of background cache work.
type Task func(ctx context.Context) error

type queuedTask struct {
	name string
	fn   Task
}

// QueueConfig sizes a TaskQueue. Buffer is per worker.
type QueueConfig struct {
	Workers     int
	Buffer      int
	TaskTimeout time.Duration
}

// DefaultQueueConfig returns the sizing used by the HTTP middleware.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{Workers: 4, Buffer: 1024, TaskTimeout: 5 * time.Second}
}

// TaskQueue runs fire-and-forget cache work off the request path. Submit
// never blocks; failures and panics are logged by the workers. Each shard
// maps to one worker, so tasks sharing a shard run in submission order.
type TaskQueue struct {
	shards  []chan queuedTask
	timeout time.Duration
	logger  logging.Logger
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewTaskQueue starts the workers.
func NewTaskQueue(config QueueConfig, logger logging.Logger) *TaskQueue {
	defaults := DefaultQueueConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.Buffer <= 0 {
		config.Buffer = defaults.Buffer
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = defaults.TaskTimeout
	}
	if logger == nil {
		logger = logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "cache_queue"})
	}

	q := &TaskQueue{
		shards:  make([]chan queuedTask, config.Workers),
		timeout: config.TaskTimeout,
		logger:  logger,
	}
	for i := range q.shards {
		q.shards[i] = make(chan queuedTask, config.Buffer)
		q.wg.Add(1)
		go q.worker(q.shards[i])
	}
	return q
}

// Submit enqueues fn on the worker owning shard. It returns false when that
// worker's buffer is full or the queue is stopped; the task is then dropped
// and a warning logged.
func (q *TaskQueue) Submit(shard, name string, fn Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Warn("Cache task dropped, queue stopped", logging.Field{Key: "task", Value: name})
		return false
	}

	select {
	case q.shardFor(shard) <- queuedTask{name: name, fn: fn}:
		return true
	default:
		q.logger.Warn("Cache task dropped, queue full", logging.Field{Key: "task", Value: name}, logging.Field{Key: "shard", Value: shard})
		return false
	}
}

func (q *TaskQueue) shardFor(shard string) chan queuedTask {
	h := fnv.New32a()
	h.Write([]byte(shard))
	return q.shards[h.Sum32()%uint32(len(q.shards))]
}

// Stop rejects new tasks and waits for queued ones to finish or ctx to end.
func (q *TaskQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		for _, tasks := range q.shards {
			close(tasks)
		}
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *TaskQueue) worker(tasks <-chan queuedTask) {
	defer q.wg.Done()
	for task := range tasks {
		q.run(task)
	}
}

func (q *TaskQueue) run(task queuedTask) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Cache task panicked", fmt.Errorf("%v", r), logging.Field{Key: "task", Value: task.name})
		}
	}()

	if err := task.fn(ctx); err != nil {
		q.logger.Error("Cache task failed", err, logging.Field{Key: "task", Value: task.name})
	}
}
