package queue

import "time"

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum number of queued jobs.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithEnqueueTimeout sets how long Enqueue waits for room on a full queue.
func WithEnqueueTimeout(d time.Duration) Option {
	return func(q *InMemoryQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
