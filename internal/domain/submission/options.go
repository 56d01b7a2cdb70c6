package submission

import (
	"github.com/okian/ladder/internal/domain/dedupe"
	"github.com/okian/ladder/pkg/logger"
)

// Option applies a configuration option to the Submitter.
type Option func(*Submitter)

// WithMaxScore bounds a single submitted score.
func WithMaxScore(n int64) Option {
	return func(s *Submitter) {
		if n > 0 {
			s.maxScore = n
		}
	}
}

// WithMinTimespent sets the shortest plausible play time for a level.
func WithMinTimespent(n float64) Option {
	return func(s *Submitter) {
		if n >= 0 {
			s.minTimespent = n
		}
	}
}

// WithMaxLevelJump sets how many levels one submission may advance.
func WithMaxLevelJump(n int64) Option {
	return func(s *Submitter) {
		if n > 0 {
			s.maxLevelJump = n
		}
	}
}

// WithRatePerMinute limits accepted submissions per player.
func WithRatePerMinute(n int) Option {
	return func(s *Submitter) {
		if n > 0 {
			s.perMinute = n
		}
	}
}

// WithDeduper replaces the default idempotency cache.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Submitter) {
		if d != nil {
			s.dedupe = d
		}
	}
}

// WithLogger sets the submitter logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Submitter) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxTrackedPlayers bounds how many players keep a rate limiter and a
// cached level. The least recently active player is forgotten first.
func WithMaxTrackedPlayers(n int) Option {
	return func(s *Submitter) {
		if n > 0 {
			s.maxTracked = n
		}
	}
}
