package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrQueueFull is reported when a task is dropped because every slot is taken.
var ErrQueueFull = errors.New("task queue full")

// ErrClosed is returned by Submit after Close has been called.
var ErrClosed = errors.New("task queue closed")

// Task is a unit of fire-and-forget work.
type Task struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Options configures a Dispatcher.
type Options struct {
	Workers   int
	QueueSize int
	// ErrorBuffer sizes the Errors channel. Errors beyond it are logged only.
	ErrorBuffer int
	// OnDrop is called for tasks rejected because the queue is full.
	OnDrop func(name string)
	// OnError is called for tasks whose Fn failed.
	OnError func(name string, err error)
}

// Dispatcher runs tasks on a fixed pool of workers behind a bounded queue.
// Submit never blocks the caller.
type Dispatcher struct {
	opts    Options
	logger  *zap.Logger
	queue   chan Task
	errs    chan error
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	failed  atomic.Int64
}

func NewDispatcher(opts Options, logger *zap.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.ErrorBuffer <= 0 {
		opts.ErrorBuffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		opts:   opts,
		logger: logger.Named("TaskQueue"),
		queue:  make(chan Task, opts.QueueSize),
		errs:   make(chan error, opts.ErrorBuffer),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Submit enqueues a task. A full queue drops the task and reports it.
func (d *Dispatcher) Submit(task Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- task:
		return nil
	default:
		d.dropped.Add(1)
		d.report(fmt.Errorf("%s: %w", task.Name, ErrQueueFull))
		if d.opts.OnDrop != nil {
			d.opts.OnDrop(task.Name)
		}
		return ErrQueueFull
	}
}

// Errors exposes failures and drops for callers that want to observe them.
func (d *Dispatcher) Errors() <-chan error { return d.errs }

// Dropped returns the number of tasks rejected so far.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Failed returns the number of tasks whose Fn returned an error.
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }

// Close stops accepting tasks and waits for queued ones to finish or for ctx
// to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for task := range d.queue {
		d.run(task)
	}
}

func (d *Dispatcher) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			d.fail(task.Name, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := task.Fn(context.Background()); err != nil {
		d.fail(task.Name, err)
	}
}

func (d *Dispatcher) fail(name string, err error) {
	d.failed.Add(1)
	d.report(fmt.Errorf("%s: %w", name, err))
	if d.opts.OnError != nil {
		d.opts.OnError(name, err)
	}
}

func (d *Dispatcher) report(err error) {
	d.logger.Warn("background task not completed", zap.Error(err))
	select {
	case d.errs <- err:
	default:
	}
}
