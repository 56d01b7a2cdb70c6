// Package worker persists write-behind jobs into the durable ledger.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/ladder/internal/adapters/mq/queue"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	defaultMaxAttempts      = 3
	defaultBackoff          = 50 * time.Millisecond
	metricsUpdateInterval   = 5 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Persister writes an accepted score and the running total it produced.
type Persister interface {
	RecordScore(ctx context.Context, ev model.ScoreEvent, total int64) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
	Len(ctx context.Context) int
}

// Worker persists jobs until its queue is drained or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is closed.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	persister Persister
	name      string

	maxAttempts int
	backoff     time.Duration
	onPersisted func(ctx context.Context, job Job)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, persister Persister, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       q,
		persister:   persister,
		name:        "worker",
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "dropping score event",
					logger.String("eventID", job.Event.ID),
					logger.String("player", job.Event.PlayerID),
					logger.Int64("score", job.Event.Score),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process persists one job, retrying with exponential backoff.
func (w *InMemoryWorker) process(ctx context.Context, job Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	delay := w.backoff

	var err error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err = w.persister.RecordScore(ctx, job.Event, job.TotalScore)
		if err == nil {
			metrics.RecordPersisted(float64(time.Since(start).Microseconds()) / 1000)
			if w.onPersisted != nil {
				w.onPersisted(ctx, job)
			}
			return nil
		}
		metrics.RecordPersistFailure("attempt")
		if attempt == w.maxAttempts {
			break
		}
		w.logger.Warn(ctx, "persist failed, retrying",
			logger.String("eventID", job.Event.ID),
			logger.Int("attempt", attempt),
			logger.Duration("backoff", delay),
			logger.Error(err),
		)
		select {
		case <-ctx.Done():
			metrics.RecordPersistFailure("cancelled")
			return fmt.Errorf("persist event %s: %w", job.Event.ID, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	metrics.RecordPersistFailure("exhausted")
	metrics.RecordErrorByComponent("worker", "persist_error")
	return fmt.Errorf("persist event %s after %d attempts: %w", job.Event.ID, w.maxAttempts, err)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	cancel   context.CancelFunc
	shutdown chan struct{}
	stopOnce sync.Once

	logger logger.Logger
}

// NewPool creates a worker pool. Options apply to every worker.
func NewPool(workerCount int, q Queue, persister Persister, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Nop(),
	}

	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, persister, wopts...)
	}
	probe := &InMemoryWorker{logger: logger.Nop()}
	for _, opt := range opts {
		opt(probe)
	}
	pool.logger = probe.logger.Named("worker-pool")

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.queue.Len(ctx)
		}
	}
}

// Shutdown closes the queue and waits for the workers to drain it. Jobs
// still queued when ctx expires are abandoned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.shutdown) })

	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var err error
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker drain timed out",
				logger.Int("worker_id", i),
				logger.Int("remaining", p.queue.Len(context.Background())),
			)
			err = fmt.Errorf("drain timed out: %w", ctx.Err())
		}
		if err != nil {
			break
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
	metrics.UpdateWorkerCount(0)
	return err
}
