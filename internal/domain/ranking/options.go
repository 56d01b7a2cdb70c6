package ranking

import (
	"time"

	"github.com/okian/ladder/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCapacity bounds the all-time ranking set.
func WithCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithOverflowFactor sets how far the set may grow past capacity before a trim is requested.
func WithOverflowFactor(f float64) Option {
	return func(s *Service) {
		if f >= 1 {
			s.overflow = f
		}
	}
}

// WithBatchSize sets the bootstrap load batch size.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithSurroundSize sets how many neighbors are returned on each side.
func WithSurroundSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.surroundSize = n
		}
	}
}

// WithPageCacheTTL sets how long unfiltered pages stay cached.
func WithPageCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pageTTL = d
		}
	}
}

// WithTrimInterval enables the periodic trim sweep. Zero disables it.
func WithTrimInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.trimInterval = d
		}
	}
}

// WithMaxScore sets the largest accepted delta.
func WithMaxScore(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxScore = n
		}
	}
}

// WithClock overrides the clock used for time windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}
