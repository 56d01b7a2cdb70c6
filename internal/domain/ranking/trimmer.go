package ranking

import (
	"context"
	"time"

	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// requestTrim signals the trimmer without blocking. Signals coalesce.
func (s *Service) requestTrim() {
	select {
	case s.trimCh <- struct{}{}:
	default:
	}
}

func (s *Service) trimLoop(ctx context.Context) {
	defer s.wg.Done()

	var tick <-chan time.Time
	if s.trimInterval > 0 {
		t := time.NewTicker(s.trimInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-s.trimCh:
			s.trimBestEffort(ctx)
		case <-tick:
			s.trimBestEffort(ctx)
		}
	}
}

func (s *Service) trimBestEffort(ctx context.Context) {
	if _, err := s.Trim(ctx); err != nil {
		s.log.Warn(ctx, "trim failed", logger.Error(err))
	}
}

// Trim evicts the lowest members above capacity and returns how many went.
func (s *Service) Trim(ctx context.Context) (int, error) {
	evicted, err := s.set.Trim(ctx, s.capacity)
	if err != nil {
		metrics.RecordTrim("error", 0)
		return 0, storeErr("trim", err)
	}
	if len(evicted) == 0 {
		metrics.RecordTrim("noop", 0)
		return 0, nil
	}
	metrics.RecordTrim("evicted", len(evicted))
	s.log.Debug(ctx, "trimmed ranking set", logger.Int("evicted", len(evicted)), logger.Int("capacity", s.capacity))
	return len(evicted), nil
}
