package scheduler

import (
	"time"

	"github.com/okian/boxscore/pkg/logger"
)

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithInterval sets the delay between runs.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithName sets the runner name used in logs.
func WithName(name string) Option {
	return func(r *Runner) {
		if name != "" {
			r.name = name
		}
	}
}

// WithRunOnStart runs the task as soon as Serve starts.
func WithRunOnStart(enabled bool) Option {
	return func(r *Runner) {
		r.runOnStart = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}
