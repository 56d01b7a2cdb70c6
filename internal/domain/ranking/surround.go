package ranking

import (
	"context"
	"fmt"

	"github.com/okian/ladder/internal/domain/model"
	"github.com/okian/ladder/internal/domain/types"
)

// GetPlayerRankAndSurround returns the player's windowed total and rank with
// up to the surround size of nearest players on each side. Above is ordered
// farthest to nearest, below nearest to farthest.
func (s *Service) GetPlayerRankAndSurround(ctx context.Context, playerID string, timeframe types.Timeframe) (types.Surround, error) {
	if playerID == "" {
		return types.Surround{}, validation("player id is required")
	}
	tf, err := timeframeOf(timeframe)
	if err != nil {
		return types.Surround{}, err
	}

	exists, err := s.players.Exists(ctx, playerID)
	if err != nil {
		return types.Surround{}, storeErr("player lookup", err)
	}
	if !exists {
		return types.Surround{}, fmt.Errorf("%w: %s", ErrNotFound, playerID)
	}

	w := types.WindowFor(tf, s.now())
	total, err := s.ledger.PlayerSumInWindow(ctx, w, playerID)
	if err != nil {
		return types.Surround{}, storeErr("player total", err)
	}
	above, err := s.ledger.CountPlayersAbove(ctx, w, total)
	if err != nil {
		return types.Surround{}, storeErr("player rank", err)
	}
	rank := above + 1

	out := types.Surround{
		Player:      types.Entry{PlayerID: playerID, TotalScore: total, Rank: rank},
		Surrounding: types.Neighbors{Above: []types.Entry{}, Below: []types.Entry{}},
	}
	if s.surroundSize == 0 {
		return out, nil
	}

	up, err := s.ledger.NeighborsInWindow(ctx, w, playerID, total, types.SideAbove, s.surroundSize)
	if err != nil {
		return types.Surround{}, storeErr("players above", err)
	}
	down, err := s.ledger.NeighborsInWindow(ctx, w, playerID, total, types.SideBelow, s.surroundSize)
	if err != nil {
		return types.Surround{}, storeErr("players below", err)
	}

	out.Surrounding.Above = aboveEntries(up, rank)
	out.Surrounding.Below = belowEntries(down, rank)
	return out, nil
}

// aboveEntries takes neighbors nearest first and returns them farthest first.
func aboveEntries(nearestFirst []model.Member, rank int64) []types.Entry {
	n := len(nearestFirst)
	out := make([]types.Entry, n)
	for i := range out {
		m := nearestFirst[n-1-i]
		out[i] = types.Entry{PlayerID: m.PlayerID, TotalScore: m.TotalScore, Rank: rank - int64(n-i)}
	}
	return out
}

func belowEntries(nearestFirst []model.Member, rank int64) []types.Entry {
	out := make([]types.Entry, len(nearestFirst))
	for i, m := range nearestFirst {
		out[i] = types.Entry{PlayerID: m.PlayerID, TotalScore: m.TotalScore, Rank: rank + int64(i) + 1}
	}
	return out
}
