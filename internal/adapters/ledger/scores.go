package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/types"
	"github.com/okian/ladder/pkg/metrics"
)

// Aggregates are raw SQL that runs unchanged on SQLite and MySQL. Window
// bounds filter on created_at, the ledger write time.

const perPlayerSums = `SELECT s.player_id AS player_id, SUM(s.score) AS total_score FROM scores s WHERE `

func windowClause(w types.Window) (string, []interface{}) {
	if w.Start == nil {
		return "s.created_at <= ?", []interface{}{w.End.UTC()}
	}
	return "s.created_at <= ? AND s.created_at >= ?", []interface{}{w.End.UTC(), w.Start.UTC()}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// SumScoresInWindow returns per-player sums in w ordered by total desc,
// player id asc. A non-empty filter keeps player ids containing it.
func (l *Ledger) SumScoresInWindow(ctx context.Context, w types.Window, filter string, limit, offset int) ([]model.Member, error) {
	defer observe("page", time.Now())
	where, args := windowClause(w)
	if filter != "" {
		where += " AND s.player_id LIKE ? ESCAPE '!'"
		args = append(args, "%"+likeEscaper.Replace(filter)+"%")
	}
	args = append(args, limit, offset)

	var rows []model.Member
	q := perPlayerSums + where + ` GROUP BY s.player_id ORDER BY total_score DESC, player_id ASC LIMIT ? OFFSET ?`
	if err := l.db.WithContext(ctx).Raw(q, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("sum scores: %w", err)
	}
	return rows, nil
}

// CountDistinctPlayersInWindow counts players with any event in w.
func (l *Ledger) CountDistinctPlayersInWindow(ctx context.Context, w types.Window) (int64, error) {
	defer observe("count", time.Now())
	where, args := windowClause(w)
	var n int64
	if err := l.db.WithContext(ctx).Raw(`SELECT COUNT(DISTINCT s.player_id) FROM scores s WHERE `+where, args...).Scan(&n).Error; err != nil {
		return 0, fmt.Errorf("count players: %w", err)
	}
	return n, nil
}

// RankWithinWindow returns 1 + the number of players with a strictly greater
// windowed sum, for each of ids that has events in w.
func (l *Ledger) RankWithinWindow(ctx context.Context, w types.Window, ids []string) (map[string]int64, error) {
	if len(ids) == 0 {
		return map[string]int64{}, nil
	}
	defer observe("rank", time.Now())
	where, wargs := windowClause(w)
	q := `SELECT p.player_id AS player_id, COUNT(allp.player_id) + 1 AS player_rank
FROM (` + perPlayerSums + where + ` AND s.player_id IN ? GROUP BY s.player_id) p
LEFT JOIN (` + perPlayerSums + where + ` GROUP BY s.player_id) allp ON allp.total_score > p.total_score
GROUP BY p.player_id`
	args := append(append(append([]interface{}{}, wargs...), ids), wargs...)

	var rows []struct {
		PlayerID   string
		PlayerRank int64
	}
	if err := l.db.WithContext(ctx).Raw(q, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("rank page: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.PlayerID] = r.PlayerRank
	}
	return out, nil
}

// PlayerSumInWindow returns the player's sum in w, 0 without events.
func (l *Ledger) PlayerSumInWindow(ctx context.Context, w types.Window, playerID string) (int64, error) {
	defer observe("player_sum", time.Now())
	where, args := windowClause(w)
	var total int64
	q := `SELECT COALESCE(SUM(s.score), 0) FROM scores s WHERE s.player_id = ? AND ` + where
	if err := l.db.WithContext(ctx).Raw(q, append([]interface{}{playerID}, args...)...).Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("player sum: %w", err)
	}
	return total, nil
}

// CountPlayersAbove counts players whose windowed sum is strictly greater than total.
func (l *Ledger) CountPlayersAbove(ctx context.Context, w types.Window, total int64) (int64, error) {
	defer observe("count_above", time.Now())
	where, args := windowClause(w)
	var n int64
	q := `SELECT COUNT(*) FROM (` + perPlayerSums + where + ` GROUP BY s.player_id) t WHERE t.total_score > ?`
	if err := l.db.WithContext(ctx).Raw(q, append(args, total)...).Scan(&n).Error; err != nil {
		return 0, fmt.Errorf("count above: %w", err)
	}
	return n, nil
}

// NeighborsInWindow returns up to n players other than playerID nearest to
// total on side, nearest first.
func (l *Ledger) NeighborsInWindow(ctx context.Context, w types.Window, playerID string, total int64, side types.Side, n int) ([]model.Member, error) {
	if n <= 0 {
		return nil, nil
	}
	defer observe("neighbors", time.Now())
	where, args := windowClause(w)
	having, order := "SUM(s.score) > ?", "total_score ASC"
	if side == types.SideBelow {
		having, order = "SUM(s.score) < ?", "total_score DESC"
	}
	q := perPlayerSums + where + ` AND s.player_id <> ? GROUP BY s.player_id HAVING ` + having +
		` ORDER BY ` + order + `, player_id ASC LIMIT ?`
	args = append(args, playerID, total, n)

	var rows []model.Member
	if err := l.db.WithContext(ctx).Raw(q, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("neighbors: %w", err)
	}
	return rows, nil
}

// ExistsEvent reports whether an event with this idempotency key was persisted.
func (l *Ledger) ExistsEvent(ctx context.Context, playerID string, ts time.Time) (bool, error) {
	defer observe("event_exists", time.Now())
	var n int64
	err := l.db.WithContext(ctx).Model(&model.ScoreEvent{}).
		Where("player_id = ? AND timestamp = ?", playerID, ts.UTC()).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("event exists: %w", err)
	}
	return n > 0, nil
}

// LatestEvent returns the player's most recently written event.
func (l *Ledger) LatestEvent(ctx context.Context, playerID string) (model.ScoreEvent, bool, error) {
	defer observe("latest_event", time.Now())
	var ev model.ScoreEvent
	err := l.db.WithContext(ctx).Where("player_id = ?", playerID).
		Order("created_at DESC").Order("timestamp DESC").Take(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ScoreEvent{}, false, nil
	}
	if err != nil {
		return model.ScoreEvent{}, false, fmt.Errorf("latest event: %w", err)
	}
	return ev, true, nil
}

// RecordScore persists an accepted event and raises the player's durable
// total to total. Replays of an already persisted event are no-ops, and the
// total never moves backwards when jobs land out of order.
func (l *Ledger) RecordScore(ctx context.Context, ev model.ScoreEvent, total int64) error {
	defer observe("record", time.Now())
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Timestamp = ev.Timestamp.UTC()

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ev).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil
			}
			return fmt.Errorf("record score: %w", err)
		}
		err := tx.Model(&model.Player{}).
			Where("id = ? AND total_score < ?", ev.PlayerID, total).
			Update("total_score", total).Error
		if err != nil {
			return fmt.Errorf("record total: %w", err)
		}
		return nil
	})
}

func observe(query string, start time.Time) {
	metrics.RecordLedgerQueryLatency(query, float64(time.Since(start).Microseconds())/1000)
}
