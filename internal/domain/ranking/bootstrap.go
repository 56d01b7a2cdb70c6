package ranking

import (
	"context"
	"time"

	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// Bootstrap rebuilds the fast ranking set from the durable top players in
// batches. It returns the number of players loaded. An empty player store
// leaves the set untouched.
func (s *Service) Bootstrap(ctx context.Context) (int, error) {
	start := time.Now()

	top, err := s.players.GetTopNByScore(ctx, s.capacity)
	if err != nil {
		return 0, storeErr("bootstrap read", err)
	}
	if len(top) == 0 {
		s.log.Info(ctx, "bootstrap skipped, no players")
		return 0, nil
	}

	for i := 0; i < len(top); i += s.batchSize {
		end := min(i+s.batchSize, len(top))
		if err := s.set.Load(ctx, top[i:end]); err != nil {
			return i, storeErr("bootstrap load", err)
		}
	}

	// A warm external store may already hold more than capacity.
	if size, err := s.set.Card(ctx); err == nil && size > int64(s.capacity) {
		if _, err := s.Trim(ctx); err != nil {
			s.log.Warn(ctx, "bootstrap trim failed", logger.Error(err))
		}
	}

	elapsed := time.Since(start)
	metrics.RecordBootstrap(len(top), float64(elapsed.Milliseconds()))
	s.log.Info(ctx, "ranking set rebuilt",
		logger.Int("players", len(top)),
		logger.Int("batch_size", s.batchSize),
		logger.Duration("elapsed", elapsed))
	return len(top), nil
}
