package refresh

import "github.com/okian/boxscore/pkg/logger"

// Option applies a configuration option to the Refresher.
type Option func(*Refresher)

// WithWindowSize sets the window size used when callers pass none.
func WithWindowSize(n int) Option {
	return func(r *Refresher) {
		if n > 0 {
			r.windowSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Refresher) {
		if l != nil {
			r.logger = l
		}
	}
}
