// Package ranking is the leaderboard ranking core.
//
// Writes go to the bounded fast ranking set, with an exact rank from the
// player store when a player is not admitted. Reads are answered from the
// durable score ledger so every timeframe and filter is exact, with a short
// lived cache for unfiltered pages.
package ranking

import (
	"context"
	"sync"
	"time"

	"github.com/okian/ladder/internal/adapters/pagecache"
	"github.com/okian/ladder/internal/adapters/rankset"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/types"
	"github.com/okian/ladder/pkg/logger"
	"github.com/okian/ladder/pkg/metrics"
)

// Page size bounds.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// PlayerStore reads durable player totals.
type PlayerStore interface {
	Exists(ctx context.Context, playerID string) (bool, error)
	// TotalScore returns ok=false for an unknown player.
	TotalScore(ctx context.Context, playerID string) (total int64, ok bool, err error)
	// GetTotalScoreRankCount counts players with a total strictly greater than threshold.
	GetTotalScoreRankCount(ctx context.Context, threshold int64) (int64, error)
	GetTopNByScore(ctx context.Context, n int) ([]model.Member, error)
}

// ScoreLedger answers windowed aggregate queries over score events.
type ScoreLedger interface {
	SumScoresInWindow(ctx context.Context, w types.Window, filter string, limit, offset int) ([]model.Member, error)
	CountDistinctPlayersInWindow(ctx context.Context, w types.Window) (int64, error)
	RankWithinWindow(ctx context.Context, w types.Window, ids []string) (map[string]int64, error)
	PlayerSumInWindow(ctx context.Context, w types.Window, playerID string) (int64, error)
	CountPlayersAbove(ctx context.Context, w types.Window, total int64) (int64, error)
	NeighborsInWindow(ctx context.Context, w types.Window, playerID string, total int64, side types.Side, n int) ([]model.Member, error)
}

// Service is the ranking core.
type Service struct {
	set     rankset.RankedSet
	players PlayerStore
	ledger  ScoreLedger
	pages   pagecache.Cache
	log     logger.Logger

	capacity     int
	overflow     float64
	batchSize    int
	surroundSize int
	pageTTL      time.Duration
	trimInterval time.Duration
	maxScore     int64
	now          func() time.Time

	trimCh   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a ranking core over its collaborators.
func New(set rankset.RankedSet, players PlayerStore, ledger ScoreLedger, pages pagecache.Cache, opts ...Option) *Service {
	s := &Service{
		set:          set,
		players:      players,
		ledger:       ledger,
		pages:        pages,
		log:          logger.Nop(),
		capacity:     1000,
		overflow:     1.1,
		batchSize:    1000,
		surroundSize: 2,
		pageTTL:      30 * time.Second,
		maxScore:     1_000_000,
		now:          time.Now,
		trimCh:       make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capacity returns the ranking set bound.
func (s *Service) Capacity() int { return s.capacity }

// Start runs the background trimmer until ctx is done or Stop is called.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.trimLoop(ctx)
}

// Stop terminates background work and waits for it to exit.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Stats describes the fast ranking set.
type Stats struct {
	Size     int64          `json:"size"`
	Capacity int            `json:"capacity"`
	Top      []model.Member `json:"top"`
}

// Stats returns the set size and its n highest members.
func (s *Service) Stats(ctx context.Context, n int) (Stats, error) {
	size, err := s.set.Card(ctx)
	if err != nil {
		return Stats{}, storeErr("stats", err)
	}
	st := Stats{Size: size, Capacity: s.capacity, Top: []model.Member{}}
	if n > 0 && size > 0 {
		top, err := s.set.Top(ctx, n)
		if err != nil {
			return Stats{}, storeErr("stats", err)
		}
		st.Top = top
	}
	return st, nil
}

// PurgePages drops every cached leaderboard page. Failures are logged.
func (s *Service) PurgePages(ctx context.Context) {
	if err := s.pages.Purge(ctx); err != nil {
		s.log.Warn(ctx, "page cache purge failed", logger.Error(err))
		return
	}
	metrics.RecordPageCache("purge")
}
