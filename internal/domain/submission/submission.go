// Package submission accepts player score submissions: it validates the
// payload, rejects impossible progressions, rate limits and deduplicates
// per player, then hands the score to the ranking core and queues the
// event for durable persistence.
package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/okian/ladder/internal/domain/dedupe"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/ranking"
	"github.com/okian/ladder/internal/domain/types"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// Metadata keys inspected by the anti-cheat checks.
const (
	LevelKey     = "level"
	TimespentKey = "timespent"
)

// Request is one score submission.
type Request struct {
	PlayerID  string                 `json:"playerId"`
	Score     int64                  `json:"score"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}

// Ranker applies an accepted score.
type Ranker interface {
	SubmitScore(ctx context.Context, playerID string, delta int64) (types.SubmitResult, error)
}

// History reads a player's persisted events.
type History interface {
	ExistsEvent(ctx context.Context, playerID string, ts time.Time) (bool, error)
	LatestEvent(ctx context.Context, playerID string) (model.ScoreEvent, bool, error)
}

// Players reports whether a player is registered.
type Players interface {
	Exists(ctx context.Context, playerID string) (bool, error)
}

// Enqueuer hands accepted events to the write-behind pipeline.
type Enqueuer interface {
	Enqueue(ctx context.Context, job model.PersistJob) error
}

// Submitter runs the submission pipeline.
type Submitter struct {
	ranker  Ranker
	history History
	players Players
	queue   Enqueuer
	dedupe  dedupe.Deduper
	log     logger.Logger

	maxScore     int64
	minTimespent float64
	maxLevelJump int64
	perMinute    int

	maxTracked int
	tracked    *tracker
}

// New creates a Submitter.
func New(ranker Ranker, history History, players Players, queue Enqueuer, opts ...Option) *Submitter {
	s := &Submitter{
		ranker:       ranker,
		history:      history,
		players:      players,
		queue:        queue,
		log:          logger.Nop(),
		maxScore:     1_000_000,
		minTimespent: 5,
		maxLevelJump: 1,
		perMinute:    10,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dedupe == nil {
		s.dedupe = dedupe.NewInMemoryDeduper()
	}
	s.tracked = newTracker(s.maxTracked, s.perMinute)
	return s
}

// Tracked reports how many players currently hold limiter and level state.
func (s *Submitter) Tracked() int { return s.tracked.len() }

// Submit runs the pipeline for a submission made by callerID.
func (s *Submitter) Submit(ctx context.Context, callerID string, req Request) (types.SubmitResult, error) {
	res, err := s.submit(ctx, callerID, req)
	metrics.RecordSubmission(outcome(err))
	return res, err
}

func (s *Submitter) submit(ctx context.Context, callerID string, req Request) (types.SubmitResult, error) {
	level, timespent, err := s.validate(req)
	if err != nil {
		return types.SubmitResult{}, err
	}
	ts := req.Timestamp.UTC().Truncate(time.Millisecond)

	if callerID != req.PlayerID {
		return types.SubmitResult{}, fmt.Errorf("%w: %s", ErrForbidden, req.PlayerID)
	}

	if err := s.checkProgression(ctx, req.PlayerID, level, timespent); err != nil {
		return types.SubmitResult{}, err
	}

	if !s.tracked.allow(req.PlayerID) {
		return types.SubmitResult{}, fmt.Errorf("%w: at most %d per minute", ErrRateLimited, s.perMinute)
	}

	key := dedupe.Key(req.PlayerID, ts)
	if s.dedupe.SeenAndRecord(ctx, key) {
		return types.SubmitResult{}, ErrDuplicate
	}
	accepted := false
	defer func() {
		if !accepted {
			s.dedupe.Unrecord(ctx, key)
		}
	}()

	dup, err := s.history.ExistsEvent(ctx, req.PlayerID, ts)
	if err != nil {
		return types.SubmitResult{}, fmt.Errorf("duplicate check: %w: %w", ranking.ErrUnavailable, err)
	}
	if dup {
		// Already durable, keep the key so the ledger is not asked again.
		accepted = true
		return types.SubmitResult{}, ErrDuplicate
	}

	ok, err := s.players.Exists(ctx, req.PlayerID)
	if err != nil {
		return types.SubmitResult{}, fmt.Errorf("player lookup: %w: %w", ranking.ErrUnavailable, err)
	}
	if !ok {
		return types.SubmitResult{}, fmt.Errorf("%w: %s", ranking.ErrNotFound, req.PlayerID)
	}

	res, err := s.ranker.SubmitScore(ctx, req.PlayerID, req.Score)
	if err != nil {
		return types.SubmitResult{}, err
	}

	job := model.PersistJob{
		Event: model.ScoreEvent{
			ID:        uuid.NewString(),
			PlayerID:  req.PlayerID,
			Score:     req.Score,
			Metadata:  datatypes.JSONMap(req.Metadata),
			Timestamp: ts,
		},
		TotalScore: res.TotalScore,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// The fast store already counted the score. The next bootstrap
		// rebuilds it from the ledger, which never saw this event.
		s.log.Error(ctx, "write-behind enqueue failed",
			logger.String("player", req.PlayerID),
			logger.Int64("score", req.Score),
			logger.Int64("total", res.TotalScore),
			logger.Error(err))
		return types.SubmitResult{}, fmt.Errorf("enqueue: %w: %w", ranking.ErrUnavailable, err)
	}

	accepted = true
	s.tracked.setLevel(req.PlayerID, level)
	return res, nil
}

func (s *Submitter) validate(req Request) (level, timespent float64, err error) {
	if req.PlayerID == "" {
		return 0, 0, fmt.Errorf("%w: playerId is required", ranking.ErrValidation)
	}
	if req.Score < 0 || req.Score > s.maxScore {
		return 0, 0, fmt.Errorf("%w: score %d outside [0, %d]", ranking.ErrValidation, req.Score, s.maxScore)
	}
	if req.Timestamp.IsZero() {
		return 0, 0, fmt.Errorf("%w: timestamp is required", ranking.ErrValidation)
	}
	level, ok := number(req.Metadata[LevelKey])
	if !ok {
		return 0, 0, fmt.Errorf("%w: metadata.%s must be a number", ranking.ErrValidation, LevelKey)
	}
	timespent, ok = number(req.Metadata[TimespentKey])
	if !ok {
		return 0, 0, fmt.Errorf("%w: metadata.%s must be a number", ranking.ErrValidation, TimespentKey)
	}
	return level, timespent, nil
}

// checkProgression rejects levels a player cannot have reached since the
// previous accepted submission.
func (s *Submitter) checkProgression(ctx context.Context, playerID string, level, timespent float64) error {
	if timespent < s.minTimespent {
		return fmt.Errorf("%w: timespent %v below %v", ErrCheatSuspected, timespent, s.minTimespent)
	}
	if level < 0 {
		return fmt.Errorf("%w: negative level", ErrCheatSuspected)
	}

	last, ok, err := s.lastLevel(ctx, playerID)
	if err != nil {
		return err
	}
	if !ok {
		if level != 1 {
			return fmt.Errorf("%w: first submission must be level 1, got %v", ErrCheatSuspected, level)
		}
		return nil
	}
	jump := level - last
	if jump <= 0 || jump > float64(s.maxLevelJump) {
		return fmt.Errorf("%w: level %v after %v", ErrCheatSuspected, level, last)
	}
	return nil
}

func (s *Submitter) lastLevel(ctx context.Context, playerID string) (float64, bool, error) {
	if level, ok := s.tracked.level(playerID); ok {
		return level, true, nil
	}

	ev, ok, err := s.history.LatestEvent(ctx, playerID)
	if err != nil {
		return 0, false, fmt.Errorf("latest event: %w: %w", ranking.ErrUnavailable, err)
	}
	if !ok {
		return 0, false, nil
	}
	level, ok := number(ev.Metadata[LevelKey])
	if !ok {
		return 0, false, fmt.Errorf("%w: previous level is not a number", ErrCheatSuspected)
	}
	return level, true, nil
}

// number accepts the numeric shapes a decoded JSON document can carry.
func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ranking.ErrValidation):
		return "invalid"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrCheatSuspected):
		return "cheat"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ranking.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
