// Package queue is the bounded write-behind queue between accepted
// submissions and the workers that persist them.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity  = 100000
	defaultEnqueueTimeout = 50 * time.Millisecond
)

// Job is the payload flowing through the queue.
type Job = model.PersistJob

// Queue provides bounded enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job, waiting up to the enqueue timeout for room.
	Enqueue(ctx context.Context, job Job) error

	// Dequeue returns the channel jobs are delivered on. It is closed
	// once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs. Queued jobs stay readable.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		timeout:  defaultEnqueueTimeout,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, job Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	select {
	case q.jobs <- job:
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	default:
	}

	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case q.jobs <- job:
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	case <-timer.C:
		metrics.RecordQueueRejected()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	case <-ctx.Done():
		metrics.RecordQueueRejected()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return ctx.Err()
	}
}

// Dequeue returns the job channel.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Job {
	return q.jobs
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting jobs and closes the channel so consumers drain and exit.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
