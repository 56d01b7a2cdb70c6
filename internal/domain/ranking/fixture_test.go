package ranking_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/okian/ladder/internal/adapters/ledger"
	"github.com/okian/ladder/internal/adapters/pagecache"
	"github.com/okian/ladder/internal/adapters/rankset"
	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/ranking"
)

var dbSeq atomic.Int64

type fixture struct {
	svc    *ranking.Service
	set    rankset.RankedSet
	ledger *ledger.Ledger
	pages  pagecache.Cache
}

type setFactory struct {
	name string
	open func(t *testing.T) (rankset.RankedSet, pagecache.Cache)
}

func setFactories() []setFactory {
	return []setFactory{
		{name: "memory", open: func(*testing.T) (rankset.RankedSet, pagecache.Cache) {
			return rankset.NewMemory(), pagecache.NewMemory()
		}},
		{name: "redis", open: func(t *testing.T) (rankset.RankedSet, pagecache.Cache) {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return rankset.NewRedis(client), pagecache.NewRedis(client, "leaderboard")
		}},
	}
}

func openLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	db, err := ledger.Open(ledger.DriverSQLite, fmt.Sprintf("file:ranking%d?mode=memory&cache=shared", dbSeq.Add(1)), 1, 1)
	require.NoError(t, err)
	require.NoError(t, ledger.Migrate(context.Background(), db))
	l := ledger.New(db)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newFixture(t *testing.T, f setFactory, opts ...ranking.Option) *fixture {
	t.Helper()
	set, pages := f.open(t)
	l := openLedger(t)
	return &fixture{
		svc:    ranking.New(set, l, l, pages, opts...),
		set:    set,
		ledger: l,
		pages:  pages,
	}
}

func (f *fixture) addPlayers(t *testing.T, totals map[string]int64) {
	t.Helper()
	players := make([]model.Player, 0, len(totals))
	for id, total := range totals {
		players = append(players, model.Player{ID: id, Wallet: "0x" + id, TotalScore: total})
	}
	require.NoError(t, f.ledger.DB().CreateInBatches(players, 200).Error)
}

// addEvent writes a scored event at an explicit ledger time.
func (f *fixture) addEvent(t *testing.T, playerID string, score int64, at time.Time) {
	t.Helper()
	ev := model.ScoreEvent{
		ID:        fmt.Sprintf("%s-%d", playerID, at.UnixNano()),
		PlayerID:  playerID,
		Score:     score,
		Timestamp: at,
		CreatedAt: at.UTC(),
	}
	require.NoError(t, f.ledger.DB().Create(&ev).Error)
}

// stubSet fails every call with err.
type stubSet struct{ err error }

func (s stubSet) Apply(context.Context, string, int64, int, *int64) (rankset.Update, error) {
	return rankset.Update{}, s.err
}
func (s stubSet) Trim(context.Context, int) ([]string, error)     { return nil, s.err }
func (s stubSet) Load(context.Context, []model.Member) error       { return s.err }
func (s stubSet) Card(context.Context) (int64, error)              { return 0, s.err }
func (s stubSet) Top(context.Context, int) ([]model.Member, error) { return nil, s.err }
