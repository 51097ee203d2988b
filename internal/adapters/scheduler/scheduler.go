// Package scheduler runs a task on a fixed interval without ever letting two
// runs of it overlap.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/boxscore/pkg/logger"
	"github.com/thejerf/suture/v4"
)

// Default runner configuration constants.
const (
	defaultInterval = time.Hour
)

// Task is the unit of work a Runner invokes.
type Task func(ctx context.Context)

// Runner invokes a Task every interval. A tick that arrives while the task
// is still running is dropped and counted. Runner implements suture.Service.
type Runner struct {
	task       Task
	name       string
	interval   time.Duration
	runOnStart bool
	logger     logger.Logger

	running  atomic.Bool
	runs     atomic.Int64
	skipped  atomic.Int64
	trigger  chan struct{}
	shutdown chan struct{}
	once     sync.Once
	inflight sync.WaitGroup
}

// New creates a Runner for task.
func New(task Task, opts ...Option) *Runner {
	r := &Runner{
		task:     task,
		name:     "runner",
		interval: defaultInterval,
		logger:   logger.Get().Named("scheduler"),
		trigger:  make(chan struct{}, 1),
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Serve runs the loop until ctx is cancelled or Shutdown is called.
func (r *Runner) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info(ctx, "runner started",
		logger.String("name", r.name),
		logger.Duration("interval", r.interval),
		logger.Bool("run_on_start", r.runOnStart))

	if r.runOnStart {
		r.fire(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.shutdown:
			return suture.ErrDoNotRestart
		case <-ticker.C:
			r.fire(ctx)
		case <-r.trigger:
			r.fire(ctx)
		}
	}
}

// Trigger requests an immediate run. Requests made while one is already
// pending are coalesced.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// fire starts the task unless a run is already in flight.
func (r *Runner) fire(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		r.skipped.Add(1)
		r.logger.Debug(ctx, "previous run still in progress, skipping tick", logger.String("name", r.name))
		return
	}
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer r.running.Store(false)
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error(ctx, "task panicked", logger.String("name", r.name), logger.Any("panic", p))
			}
		}()
		r.task(ctx)
		r.runs.Add(1)
	}()
}

// Shutdown stops the loop and waits for an in-flight run to finish or ctx
// to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.once.Do(func() { close(r.shutdown) })

	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.logger.Warn(ctx, "shutdown timed out", logger.String("name", r.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Running reports whether the task is currently executing.
func (r *Runner) Running() bool { return r.running.Load() }

// Runs returns the number of completed runs.
func (r *Runner) Runs() int64 { return r.runs.Load() }

// Skipped returns the number of ticks dropped because a run was in flight.
func (r *Runner) Skipped() int64 { return r.skipped.Load() }

// Interval returns the configured interval.
func (r *Runner) Interval() time.Duration { return r.interval }

// String names the runner in supervisor logs.
func (r *Runner) String() string { return r.name }
