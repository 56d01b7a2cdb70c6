package ledger_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okian/ladder/internal/adapters/ledger"
	"github.com/okian/ladder/internal/domain/model"
)

var dbSeq atomic.Int64

// openLedger returns a migrated ledger on a private in-memory SQLite database.
func openLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := ledger.Open(ledger.DriverSQLite, dsn, 1, 1)
	require.NoError(t, err)
	require.NoError(t, ledger.Migrate(context.Background(), db))
	l := ledger.New(db)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// addEvent writes an event with an explicit ledger write time.
func addEvent(t *testing.T, l *ledger.Ledger, playerID string, score int64, at time.Time) {
	t.Helper()
	ev := model.ScoreEvent{
		ID:        fmt.Sprintf("%s-%d", playerID, at.UnixNano()),
		PlayerID:  playerID,
		Score:     score,
		Timestamp: at,
		CreatedAt: at.UTC(),
	}
	require.NoError(t, l.DB().Create(&ev).Error)
}

func addPlayer(t *testing.T, l *ledger.Ledger, id string, total int64) {
	t.Helper()
	p := model.Player{ID: id, Wallet: "0x" + id, TotalScore: total}
	require.NoError(t, l.DB().Create(&p).Error)
}
