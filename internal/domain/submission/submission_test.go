package submission_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/ranking"
	"github.com/okian/ladder/internal/domain/submission"
	"github.com/okian/ladder/internal/domain/types"
)

type fakeRanker struct {
	mu     sync.Mutex
	totals map[string]int64
	err    error
}

func (r *fakeRanker) SubmitScore(_ context.Context, id string, delta int64) (types.SubmitResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return types.SubmitResult{}, r.err
	}
	r.totals[id] += delta
	return types.SubmitResult{PlayerID: id, SubmittedScore: delta, TotalScore: r.totals[id], Rank: 1}, nil
}

type fakeHistory struct {
	latest map[string]model.ScoreEvent
	stored map[string]bool
	err    error
}

func (h *fakeHistory) ExistsEvent(_ context.Context, id string, ts time.Time) (bool, error) {
	return h.stored[id+ts.UTC().Format(time.RFC3339Nano)], h.err
}

func (h *fakeHistory) LatestEvent(_ context.Context, id string) (model.ScoreEvent, bool, error) {
	if h.err != nil {
		return model.ScoreEvent{}, false, h.err
	}
	ev, ok := h.latest[id]
	return ev, ok, nil
}

type fakePlayers map[string]bool

func (p fakePlayers) Exists(_ context.Context, id string) (bool, error) { return p[id], nil }

type fakeQueue struct {
	jobs []model.PersistJob
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job model.PersistJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

var baseTime = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

func request(player string, level int, at time.Duration) submission.Request {
	return submission.Request{
		PlayerID:  player,
		Score:     100,
		Metadata:  map[string]interface{}{"level": float64(level), "timespent": 30.0},
		Timestamp: baseTime.Add(at),
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	Convey("Given a submitter", t, func() {
		ranker := &fakeRanker{totals: map[string]int64{}}
		history := &fakeHistory{latest: map[string]model.ScoreEvent{}, stored: map[string]bool{}}
		players := fakePlayers{"p1": true, "p2": true}
		queue := &fakeQueue{}
		s := submission.New(ranker, history, players, queue, submission.WithRatePerMinute(5))

		Convey("When a player submits a first level", func() {
			req := request("p1", 1, 1500*time.Microsecond)
			res, err := s.Submit(ctx, "p1", req)

			Convey("Then the score is ranked and queued for persistence", func() {
				So(err, ShouldBeNil)
				So(res.TotalScore, ShouldEqual, 100)
				So(res.SubmittedScore, ShouldEqual, 100)
				So(queue.jobs, ShouldHaveLength, 1)
				job := queue.jobs[0]
				So(job.TotalScore, ShouldEqual, 100)
				So(job.Event.PlayerID, ShouldEqual, "p1")
				So(job.Event.ID, ShouldNotBeEmpty)
				So(job.Event.Timestamp.Equal(baseTime.Add(time.Millisecond)), ShouldBeTrue)
				So(job.Event.Metadata["level"], ShouldEqual, 1.0)
			})

			Convey("And the next level follows", func() {
				_, err := s.Submit(ctx, "p1", request("p1", 2, time.Second))
				So(err, ShouldBeNil)
				So(ranker.totals["p1"], ShouldEqual, 200)
			})

			Convey("And a level jump is rejected", func() {
				_, err := s.Submit(ctx, "p1", request("p1", 3, time.Second))
				So(errors.Is(err, submission.ErrCheatSuspected), ShouldBeTrue)
			})

			Convey("And replaying the same timestamp is a duplicate", func() {
				_, err := s.Submit(ctx, "p1", request("p1", 2, 1500*time.Microsecond))
				So(errors.Is(err, submission.ErrDuplicate), ShouldBeTrue)
				So(queue.jobs, ShouldHaveLength, 1)
			})
		})

		Convey("When the payload is malformed", func() {
			missingLevel := request("p1", 1, 0)
			delete(missingLevel.Metadata, "level")
			textLevel := request("p1", 1, 0)
			textLevel.Metadata["level"] = "one"
			noTime := request("p1", 1, 0)
			noTime.Timestamp = time.Time{}
			huge := request("p1", 1, 0)
			huge.Score = 2_000_000
			negative := request("p1", 1, 0)
			negative.Score = -1
			anonymous := request("", 1, 0)

			Convey("Then each is a validation error that touches nothing", func() {
				for _, req := range []submission.Request{missingLevel, textLevel, noTime, huge, negative, anonymous} {
					_, err := s.Submit(ctx, req.PlayerID, req)
					So(errors.Is(err, ranking.ErrValidation), ShouldBeTrue)
				}
				So(queue.jobs, ShouldBeEmpty)
				So(ranker.totals, ShouldBeEmpty)
			})
		})

		Convey("When a caller submits for another player", func() {
			_, err := s.Submit(ctx, "p2", request("p1", 1, 0))

			Convey("Then it is forbidden", func() {
				So(errors.Is(err, submission.ErrForbidden), ShouldBeTrue)
			})
		})

		Convey("When the progression is implausible", func() {
			fast := request("p1", 1, 0)
			fast.Metadata["timespent"] = 1.0
			below := request("p1", -1, 0)

			Convey("Then it is suspected as cheating", func() {
				for _, req := range []submission.Request{request("p1", 2, 0), fast, below} {
					_, err := s.Submit(ctx, "p1", req)
					So(errors.Is(err, submission.ErrCheatSuspected), ShouldBeTrue)
				}
			})
		})

		Convey("When the player has persisted history", func() {
			history.latest["p1"] = model.ScoreEvent{PlayerID: "p1", Metadata: map[string]interface{}{"level": 3.0}}
			history.latest["p2"] = model.ScoreEvent{PlayerID: "p2", Metadata: map[string]interface{}{"level": "three"}}

			Convey("Then progression continues from the latest event", func() {
				_, err := s.Submit(ctx, "p1", request("p1", 4, 0))
				So(err, ShouldBeNil)
				_, err = s.Submit(ctx, "p1", request("p1", 4, time.Second))
				So(errors.Is(err, submission.ErrCheatSuspected), ShouldBeTrue)
			})

			Convey("Then a non-numeric previous level is rejected", func() {
				_, err := s.Submit(ctx, "p2", request("p2", 1, 0))
				So(errors.Is(err, submission.ErrCheatSuspected), ShouldBeTrue)
			})
		})

		Convey("When the event is already in the ledger", func() {
			history.stored["p1"+baseTime.Format(time.RFC3339Nano)] = true
			_, err := s.Submit(ctx, "p1", request("p1", 1, 0))

			Convey("Then it is a duplicate and nothing is applied", func() {
				So(errors.Is(err, submission.ErrDuplicate), ShouldBeTrue)
				So(ranker.totals, ShouldBeEmpty)
			})
		})

		Convey("When a player submits faster than the limit", func() {
			var err error
			for i := 1; i <= 6; i++ {
				_, err = s.Submit(ctx, "p1", request("p1", i, time.Duration(i)*time.Second))
				if err != nil {
					break
				}
			}

			Convey("Then the sixth submission is rate limited", func() {
				So(errors.Is(err, submission.ErrRateLimited), ShouldBeTrue)
				So(queue.jobs, ShouldHaveLength, 5)
			})
		})

		Convey("When the player is not registered", func() {
			_, err := s.Submit(ctx, "ghost", request("ghost", 1, 0))

			Convey("Then it is not found and may be retried once registered", func() {
				So(errors.Is(err, ranking.ErrNotFound), ShouldBeTrue)
				players["ghost"] = true
				_, err = s.Submit(ctx, "ghost", request("ghost", 1, 0))
				So(err, ShouldBeNil)
			})
		})

		Convey("When the write-behind queue refuses the job", func() {
			queue.err = errors.New("queue full")
			_, err := s.Submit(ctx, "p1", request("p1", 1, 0))

			Convey("Then the submission is unavailable and can be retried", func() {
				So(errors.Is(err, ranking.ErrUnavailable), ShouldBeTrue)
				queue.err = nil
				_, err = s.Submit(ctx, "p1", request("p1", 1, 0))
				So(err, ShouldBeNil)
			})
		})

		Convey("When the ledger is down", func() {
			history.err = errors.New("connection refused")
			_, err := s.Submit(ctx, "p1", request("p1", 1, 0))

			Convey("Then the submission is unavailable", func() {
				So(errors.Is(err, ranking.ErrUnavailable), ShouldBeTrue)
			})
		})

		Convey("When the ranking core fails", func() {
			ranker.err = ranking.ErrInconsistent
			_, err := s.Submit(ctx, "p1", request("p1", 1, 0))

			Convey("Then its error is returned and nothing is queued", func() {
				So(errors.Is(err, ranking.ErrInconsistent), ShouldBeTrue)
				So(queue.jobs, ShouldBeEmpty)
			})
		})
	})
}

func TestTrackedPlayersAreBounded(t *testing.T) {
	ctx := context.Background()

	Convey("Given a submitter that tracks two players", t, func() {
		ranker := &fakeRanker{totals: map[string]int64{}}
		history := &fakeHistory{latest: map[string]model.ScoreEvent{}, stored: map[string]bool{}}
		players := fakePlayers{"p1": true, "p2": true, "p3": true}
		queue := &fakeQueue{}
		s := submission.New(ranker, history, players, queue,
			submission.WithRatePerMinute(2),
			submission.WithMaxTrackedPlayers(2))

		_, err := s.Submit(ctx, "p1", request("p1", 1, time.Second))
		So(err, ShouldBeNil)
		_, err = s.Submit(ctx, "p1", request("p1", 2, 2*time.Second))
		So(err, ShouldBeNil)
		_, err = s.Submit(ctx, "p1", request("p1", 3, 3*time.Second))
		So(errors.Is(err, submission.ErrRateLimited), ShouldBeTrue)

		Convey("When two other players become active", func() {
			_, err := s.Submit(ctx, "p2", request("p2", 1, 4*time.Second))
			So(err, ShouldBeNil)
			_, err = s.Submit(ctx, "p3", request("p3", 1, 5*time.Second))
			So(err, ShouldBeNil)

			Convey("Then the least recently active player is forgotten", func() {
				So(s.Tracked(), ShouldEqual, 2)
			})

			Convey("Then the forgotten player reads its level from the ledger with a fresh limit", func() {
				history.latest["p1"] = model.ScoreEvent{
					PlayerID: "p1",
					Metadata: map[string]interface{}{"level": 2.0},
				}
				_, err := s.Submit(ctx, "p1", request("p1", 4, 6*time.Second))
				So(errors.Is(err, submission.ErrCheatSuspected), ShouldBeTrue)

				_, err = s.Submit(ctx, "p1", request("p1", 3, 7*time.Second))
				So(err, ShouldBeNil)
				So(ranker.totals["p1"], ShouldEqual, 300)
				So(s.Tracked(), ShouldEqual, 2)
			})
		})
	})
}
