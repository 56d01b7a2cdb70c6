package worker

import (
	"context"
	"time"

	"github.com/okian/ladder/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMaxAttempts bounds how many times a job is tried.
func WithMaxAttempts(n int) Option {
	return func(w *InMemoryWorker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithBackoff sets the delay before the first retry. It doubles per attempt.
func WithBackoff(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.backoff = d
		}
	}
}

// WithOnPersisted registers a hook called after each job is durable.
func WithOnPersisted(fn func(ctx context.Context, job Job)) Option {
	return func(w *InMemoryWorker) {
		w.onPersisted = fn
	}
}
