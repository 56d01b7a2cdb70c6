package ranking

import (
	"context"

	"github.com/okian/ladder/internal/adapters/pagecache"
	"github.com/okian/ladder/internal/domain/types"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// Query selects a leaderboard page.
type Query struct {
	Timeframe types.Timeframe
	Limit     int
	Offset    int
	// PlayerID keeps players whose id contains it. Filtered pages are never cached.
	PlayerID string
}

// ClampLimit corrects a page size into [1, MaxPageLimit].
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > MaxPageLimit:
		return MaxPageLimit
	}
	return limit
}

func timeframeOf(tf types.Timeframe) (types.Timeframe, error) {
	if tf == "" {
		return types.AllTime, nil
	}
	if !tf.Valid() {
		return "", validation("unknown timeframe %q", tf)
	}
	return tf, nil
}

// GetLeaderboard returns one page of the timeframe leaderboard, ordered by
// windowed total desc then player id asc, with exact ranks.
func (s *Service) GetLeaderboard(ctx context.Context, q Query) (types.Page, error) {
	tf, err := timeframeOf(q.Timeframe)
	if err != nil {
		return types.Page{}, err
	}
	if q.Offset < 0 {
		return types.Page{}, validation("offset %d must not be negative", q.Offset)
	}
	limit := ClampLimit(q.Limit)

	cacheable := q.PlayerID == ""
	key := pagecache.Key(tf, limit, q.Offset)
	var gen uint64
	if cacheable {
		gen, err = s.pages.Generation(ctx)
		if err != nil {
			s.log.Warn(ctx, "page cache unavailable", logger.Error(err))
			cacheable = false
		} else if page, ok, err := s.pages.Get(ctx, gen, key); err != nil {
			s.log.Warn(ctx, "page cache read failed", logger.Error(err), logger.String("key", key))
		} else if ok {
			metrics.RecordPageCache("hit")
			return page, nil
		} else {
			metrics.RecordPageCache("miss")
		}
	}

	page, err := s.computePage(ctx, tf, limit, q.Offset, q.PlayerID)
	if err != nil {
		return types.Page{}, err
	}

	if cacheable {
		if err := s.pages.Set(ctx, gen, key, page, s.pageTTL); err != nil {
			s.log.Warn(ctx, "page cache write failed", logger.Error(err), logger.String("key", key))
		}
	}
	return page, nil
}

func (s *Service) computePage(ctx context.Context, tf types.Timeframe, limit, offset int, filter string) (types.Page, error) {
	w := types.WindowFor(tf, s.now())

	rows, err := s.ledger.SumScoresInWindow(ctx, w, filter, limit, offset)
	if err != nil {
		return types.Page{}, storeErr("leaderboard page", err)
	}
	total, err := s.ledger.CountDistinctPlayersInWindow(ctx, w)
	if err != nil {
		return types.Page{}, storeErr("leaderboard count", err)
	}

	page := types.Page{Items: []types.Entry{}, Total: total, Limit: limit, Offset: offset}
	if len(rows) == 0 {
		return page, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.PlayerID
	}
	ranks, err := s.ledger.RankWithinWindow(ctx, w, ids)
	if err != nil {
		return types.Page{}, storeErr("leaderboard ranks", err)
	}

	page.Items = make([]types.Entry, len(rows))
	for i, r := range rows {
		rank, ok := ranks[r.PlayerID]
		if !ok {
			above, err := s.ledger.CountPlayersAbove(ctx, w, r.TotalScore)
			if err != nil {
				return types.Page{}, storeErr("leaderboard rank", err)
			}
			rank = above + 1
		}
		page.Items[i] = types.Entry{PlayerID: r.PlayerID, TotalScore: r.TotalScore, Rank: rank}
	}
	return page, nil
}
