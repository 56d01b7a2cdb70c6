package ranking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/ladder/internal/adapters/rankset"
	"github.com/okian/ladder/internal/domain/types"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// SubmitScore adds delta to the player's total and returns the new total
// with a concrete rank. Ranks come from the fast set when the player is
// admitted, otherwise from the durable player totals.
func (s *Service) SubmitScore(ctx context.Context, playerID string, delta int64) (types.SubmitResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordSubmitLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if playerID == "" {
		return types.SubmitResult{}, validation("player id is required")
	}
	if delta < 0 || delta > s.maxScore {
		return types.SubmitResult{}, validation("score %d outside [0, %d]", delta, s.maxScore)
	}

	u, err := s.apply(ctx, playerID, delta)
	if err != nil {
		return types.SubmitResult{}, err
	}

	rank := u.Rank
	if u.Admitted() {
		metrics.RecordAdmission("admitted")
		if float64(u.Size) > float64(s.capacity)*s.overflow {
			s.requestTrim()
		}
	} else {
		metrics.RecordAdmission("rejected")
		metrics.RecordFallbackRank()
		above, err := s.players.GetTotalScoreRankCount(ctx, u.Total)
		if err != nil {
			return types.SubmitResult{}, storeErr("fallback rank", err)
		}
		rank = above + 1
	}

	s.PurgePages(ctx)

	return types.SubmitResult{
		PlayerID:       playerID,
		SubmittedScore: delta,
		TotalScore:     u.Total,
		Rank:           rank,
	}, nil
}

// apply runs the atomic step, seeding the totals hash from the player store
// when the fast store has no running total for the player yet.
func (s *Service) apply(ctx context.Context, playerID string, delta int64) (rankset.Update, error) {
	u, err := s.set.Apply(ctx, playerID, delta, s.capacity, nil)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, rankset.ErrSeedRequired) {
		return rankset.Update{}, storeErr("apply", err)
	}

	seed, ok, err := s.players.TotalScore(ctx, playerID)
	if err != nil {
		return rankset.Update{}, storeErr("seed total", err)
	}
	if !ok {
		return rankset.Update{}, fmt.Errorf("%w: %s", ErrNotFound, playerID)
	}
	s.log.Debug(ctx, "seeding running total", logger.String("player", playerID), logger.Int64("seed", seed))

	u, err = s.set.Apply(ctx, playerID, delta, s.capacity, &seed)
	if err != nil {
		return rankset.Update{}, storeErr("apply seeded", err)
	}
	return u, nil
}
