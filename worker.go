package gomarket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"goflare.io/gomarket/cart"
)

const queueSize = 1000

var ErrPoolClosed = errors.New("worker pool is shut down")

var _ cart.Persister = (*WorkerPool)(nil)

type task struct {
	ctx context.Context
	key string
	fn  func(context.Context) error
}

// WorkerPool runs tasks in the background. Every key is served by one worker, so tasks
// sharing a key run one at a time in the order they were submitted.
type WorkerPool struct {
	queues  []chan task
	timeout time.Duration
	logger  *zap.Logger
	workers sync.WaitGroup

	// sendMu keeps Shutdown from closing a queue while Submit is sending to it.
	sendMu sync.RWMutex
	closed bool

	mu      sync.Mutex
	pending int
	idle    chan struct{}
	errs    []error
}

// NewWorkerPool starts size workers. Each task gets timeout to finish; zero means no limit.
func NewWorkerPool(size int, timeout time.Duration, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	wp := &WorkerPool{
		queues:  make([]chan task, size),
		timeout: timeout,
		logger:  logger,
	}

	for i := range wp.queues {
		wp.queues[i] = make(chan task, queueSize/size+1)
		wp.workers.Add(1)
		go wp.worker(wp.queues[i])
	}

	return wp
}

func (wp *WorkerPool) worker(queue <-chan task) {
	defer wp.workers.Done()
	for t := range queue {
		err := wp.run(t)
		wp.finish(t.key, err)
	}
}

func (wp *WorkerPool) run(t task) (err error) {
	ctx := context.WithoutCancel(t.ctx)
	if wp.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			wp.logger.Error("panic in task", zap.String("key", t.key), zap.Any("panic", p))
			err = fmt.Errorf("task %s panicked: %v", t.key, p)
		}
	}()

	return t.fn(ctx)
}

func (wp *WorkerPool) finish(key string, err error) {
	if err != nil {
		wp.logger.Error("Failed to run task", zap.String("key", key), zap.Error(err))
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()

	if err != nil {
		wp.errs = append(wp.errs, err)
	}
	wp.pending--
	if wp.pending == 0 && wp.idle != nil {
		close(wp.idle)
		wp.idle = nil
	}
}

// Submit queues fn on the worker owning key. It blocks while that worker's queue is full.
func (wp *WorkerPool) Submit(ctx context.Context, key string, fn func(ctx context.Context) error) {
	wp.sendMu.RLock()
	defer wp.sendMu.RUnlock()

	if wp.closed {
		wp.logger.Warn("Task submitted after shutdown", zap.String("key", key))
		wp.mu.Lock()
		wp.errs = append(wp.errs, fmt.Errorf("%w: %s", ErrPoolClosed, key))
		wp.mu.Unlock()
		return
	}

	wp.mu.Lock()
	if wp.pending == 0 {
		wp.idle = make(chan struct{})
	}
	wp.pending++
	wp.mu.Unlock()

	wp.queues[xxhash.Sum64String(key)%uint64(len(wp.queues))] <- task{ctx: ctx, key: key, fn: fn}
}

// Flush waits until no task is pending and returns the errors of the tasks finished since
// the previous Flush.
func (wp *WorkerPool) Flush(ctx context.Context) error {
	wp.mu.Lock()
	idle := wp.idle
	wp.mu.Unlock()

	if idle != nil {
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()

	err := errors.Join(wp.errs...)
	wp.errs = nil
	return err
}

// Shutdown stops accepting tasks and waits for the queued ones to finish.
func (wp *WorkerPool) Shutdown() {
	wp.sendMu.Lock()
	if wp.closed {
		wp.sendMu.Unlock()
		return
	}
	wp.closed = true
	for _, queue := range wp.queues {
		close(queue)
	}
	wp.sendMu.Unlock()

	wp.workers.Wait()
}
