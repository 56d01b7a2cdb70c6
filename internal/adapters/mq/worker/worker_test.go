package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	queue "github.com/okian/ladder/internal/adapters/mq/queue"
	worker "github.com/okian/ladder/internal/adapters/mq/worker"
	model "github.com/okian/ladder/internal/domain/model"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }
func (mq *mockQueue) Len(context.Context) int                  { return len(mq.jobs) }

func (mq *mockQueue) add(job queue.Job) { //nolint:gocritic // hugeParam
	mq.jobs <- job
}

type mockPersister struct {
	mu       sync.Mutex
	totals   map[string]int64
	attempts map[string]int
	failures map[string]int // failures left per event id
	block    chan struct{}
}

func newMockPersister() *mockPersister {
	return &mockPersister{
		totals:   make(map[string]int64),
		attempts: make(map[string]int),
		failures: make(map[string]int),
	}
}

func (mp *mockPersister) RecordScore(ctx context.Context, ev model.ScoreEvent, total int64) error {
	if mp.block != nil {
		select {
		case <-mp.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.attempts[ev.ID]++
	if mp.failures[ev.ID] > 0 {
		mp.failures[ev.ID]--
		return errors.New("deadlock found when trying to get lock")
	}
	mp.totals[ev.PlayerID] = total
	return nil
}

func (mp *mockPersister) failFor(id string, n int) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.failures[id] = n
}

func (mp *mockPersister) total(player string) (int64, bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	t, ok := mp.totals[player]
	return t, ok
}

func (mp *mockPersister) attemptsFor(id string) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.attempts[id]
}

func (mp *mockPersister) persisted() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.totals)
}

func job(id, player string, total int64) queue.Job {
	return queue.Job{
		Event:      model.ScoreEvent{ID: id, PlayerID: player, Score: 10, Timestamp: time.Now().UTC()},
		TotalScore: total,
	}
}

// eventually polls cond until it holds or a second passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running InMemoryWorker", t, func() {
		q := newMockQueue()
		persister := newMockPersister()

		var hookMu sync.Mutex
		var hooked []string
		w := worker.NewInMemoryWorker(q, persister,
			worker.WithName("test-worker"),
			worker.WithBackoff(time.Millisecond),
			worker.WithOnPersisted(func(_ context.Context, j worker.Job) {
				hookMu.Lock()
				defer hookMu.Unlock()
				hooked = append(hooked, j.Event.ID)
			}),
		)
		hookCalls := func() []string {
			hookMu.Lock()
			defer hookMu.Unlock()
			return append([]string(nil), hooked...)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job arrives", func() {
			q.add(job("event-1", "player-1", 85))

			convey.Convey("Then it is persisted and the hook runs", func() {
				convey.So(eventually(func() bool { return len(hookCalls()) == 1 }), convey.ShouldBeTrue)
				total, ok := persister.total("player-1")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(total, convey.ShouldEqual, 85)
				convey.So(hookCalls(), convey.ShouldResemble, []string{"event-1"})
			})
		})

		convey.Convey("When the ledger fails transiently", func() {
			persister.failFor("event-2", 2)
			q.add(job("event-2", "player-2", 40))

			convey.Convey("Then the job is retried until it lands", func() {
				convey.So(eventually(func() bool { _, ok := persister.total("player-2"); return ok }), convey.ShouldBeTrue)
				convey.So(persister.attemptsFor("event-2"), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the ledger keeps failing", func() {
			persister.failFor("event-3", 10)
			q.add(job("event-3", "player-3", 40))
			q.add(job("event-4", "player-4", 50))

			convey.Convey("Then the job is dropped after three attempts and the worker moves on", func() {
				convey.So(eventually(func() bool { _, ok := persister.total("player-4"); return ok }), convey.ShouldBeTrue)
				_, ok := persister.total("player-3")
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(persister.attemptsFor("event-3"), convey.ShouldEqual, 3)
				convey.So(hookCalls(), convey.ShouldResemble, []string{"event-4"})
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer shutdownCancel()

			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then it should shutdown gracefully", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		persister := newMockPersister()

		convey.Convey("When creating a pool with the default count", func() {
			pool := worker.NewPool(0, q, persister)

			convey.Convey("Then it sizes itself from the CPU count", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When jobs are queued and the pool is shut down", func() {
			pool := worker.NewPool(3, q, persister, worker.WithBackoff(time.Millisecond))
			ctx := context.Background()
			for i := 0; i < 30; i++ {
				convey.So(q.Enqueue(ctx, job(fmt.Sprintf("event-%d", i), fmt.Sprintf("player-%d", i), int64(i))), convey.ShouldBeNil)
			}
			pool.Start(ctx)

			shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then every queued job is persisted before it returns", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(persister.persisted(), convey.ShouldEqual, 30)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the ledger hangs during shutdown", func() {
			persister.block = make(chan struct{})
			pool := worker.NewPool(1, q, persister)
			ctx := context.Background()
			convey.So(q.Enqueue(ctx, job("event-1", "player-1", 1)), convey.ShouldBeNil)
			pool.Start(ctx)

			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
			defer cancel()
			err := pool.Shutdown(shutdownCtx)

			convey.Convey("Then the drain times out", func() {
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}
