// Package worker runs the single recompute loop fed by the submission queue.
package worker

import (
	"github.com/okian/mccskill/pkg/logger"
)

// Option applies a configuration option to the Recomputer.
type Option func(*Recomputer)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *Recomputer) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *Recomputer) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMaxBatch caps how many submissions are applied before one recompute.
func WithMaxBatch(n int) Option {
	return func(w *Recomputer) {
		if n > 0 {
			w.maxBatch = n
		}
	}
}
