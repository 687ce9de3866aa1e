package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// AsyncTask is a unit of deferred delivery
type AsyncTask struct {
	Name string
	Fn   func(ctx context.Context) error
}

// AsyncQueue runs tasks on a fixed worker pool
type AsyncQueue struct {
	tasks       chan AsyncTask
	workerCount int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	shutdown    bool
	mu          sync.Mutex
	logger      *zap.Logger
}

// QueueOption configures an AsyncQueue
type QueueOption func(*AsyncQueue)

// WithQueueLogger sets the logger for task failures
func WithQueueLogger(logger *zap.Logger) QueueOption {
	return func(q *AsyncQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// NewAsyncQueue creates a queue with workerCount workers and a buffer of
// queueSize tasks. Non-positive values select 4 workers and 100 tasks.
func NewAsyncQueue(workerCount, queueSize int, opts ...QueueOption) *AsyncQueue {
	if workerCount <= 0 {
		workerCount = 4
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &AsyncQueue{
		tasks:       make(chan AsyncTask, queueSize),
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start starts the worker pool
func (q *AsyncQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return
	}

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	q.started = true
}

func (q *AsyncQueue) worker(id int) {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			q.run(id, task)
		}
	}
}

func (q *AsyncQueue) run(id int, task AsyncTask) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("async task panicked",
				zap.Int("worker", id),
				zap.String("task", task.Name),
				zap.Any("panic", r),
			)
		}
	}()

	if err := task.Fn(q.ctx); err != nil {
		q.logger.Error("async task failed",
			zap.Int("worker", id),
			zap.String("task", task.Name),
			zap.Error(err),
		)
	}
}

// Enqueue adds a task to the queue, blocking while the buffer is full
func (q *AsyncQueue) Enqueue(task AsyncTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return ErrQueueNotStarted
	}
	if q.shutdown {
		return fmt.Errorf("%w: %s", ErrQueueClosed, task.Name)
	}

	select {
	case q.tasks <- task:
		return nil
	case <-q.ctx.Done():
		return fmt.Errorf("%w: %s", ErrQueueClosed, task.Name)
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish
func (q *AsyncQueue) Shutdown() {
	q.mu.Lock()
	if !q.started || q.shutdown {
		q.mu.Unlock()
		return
	}
	q.shutdown = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
}

// Stop stops the workers without draining the queue
func (q *AsyncQueue) Stop() {
	q.mu.Lock()
	q.shutdown = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}
