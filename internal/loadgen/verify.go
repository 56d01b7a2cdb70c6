package loadgen

import (
	"fmt"

	"github.com/okian/ladder/internal/domain/types"
)

// verifyOrder checks that entries, read from rank 1 onwards, are sorted by
// total descending then player id ascending, and carry competition ranks.
func verifyOrder(entries []types.Entry) error {
	for i, e := range entries {
		want := int64(i + 1)
		if i > 0 {
			prev := entries[i-1]
			switch {
			case prev.TotalScore < e.TotalScore:
				return fmt.Errorf("%w: position %d total %d above %d", ErrVerification, i, prev.TotalScore, e.TotalScore)
			case prev.TotalScore == e.TotalScore && prev.PlayerID >= e.PlayerID:
				return fmt.Errorf("%w: tie at position %d not ordered by id (%s, %s)", ErrVerification, i, prev.PlayerID, e.PlayerID)
			case prev.TotalScore == e.TotalScore:
				want = prev.Rank
			}
		}
		if e.Rank != want {
			return fmt.Errorf("%w: %s has rank %d, want %d", ErrVerification, e.PlayerID, e.Rank, want)
		}
	}
	return nil
}

// verifyTotals checks every expected player appears with its expected total.
// Players expected at zero may be absent.
func verifyTotals(entries []types.Entry, expected map[string]int64) error {
	got := make(map[string]int64, len(entries))
	for _, e := range entries {
		got[e.PlayerID] = e.TotalScore
	}
	for id, want := range expected {
		total, ok := got[id]
		if !ok && want == 0 {
			continue
		}
		if !ok {
			return fmt.Errorf("%w: %s missing from leaderboard", ErrVerification, id)
		}
		if total != want {
			return fmt.Errorf("%w: %s total %d, want %d", ErrVerification, id, total, want)
		}
	}
	return nil
}

// verifySurround checks a player's neighbors sit on the right side of it.
func verifySurround(s types.Surround, wantTotal int64) error {
	p := s.Player
	if p.TotalScore != wantTotal {
		return fmt.Errorf("%w: %s surround total %d, want %d", ErrVerification, p.PlayerID, p.TotalScore, wantTotal)
	}
	for _, e := range s.Surrounding.Above {
		if e.Rank >= p.Rank || e.TotalScore <= p.TotalScore {
			return fmt.Errorf("%w: %s listed above %s (rank %d vs %d)", ErrVerification, e.PlayerID, p.PlayerID, e.Rank, p.Rank)
		}
	}
	for _, e := range s.Surrounding.Below {
		if e.Rank <= p.Rank || e.TotalScore >= p.TotalScore {
			return fmt.Errorf("%w: %s listed below %s (rank %d vs %d)", ErrVerification, e.PlayerID, p.PlayerID, e.Rank, p.Rank)
		}
	}
	return nil
}
