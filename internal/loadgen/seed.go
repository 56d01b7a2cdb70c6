package loadgen

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/ladder/internal/adapters/ledger"
	"github.com/okian/ladder/internal/domain/submission"
)

const (
	walletPattern = "0x[0-9a-f]{40}"
	tokenTTL      = time.Hour
	minTimespent  = 5
	maxTimespent  = 120
	maxRoundScore = 1000
)

// TokenIssuer signs access tokens for generated players.
type TokenIssuer interface {
	IssueToken(playerID string, ttl time.Duration) (string, error)
}

type scoreBody struct {
	PlayerID  string                 `json:"playerId"`
	Score     int64                  `json:"score"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}

// plan is everything one player will submit, generated up front so the
// faker is only touched from one goroutine.
type plan struct {
	PlayerID string
	Token    string
	Initial  int64
	Rounds   []scoreBody
}

// seedPlayers registers cfg.Players wallets in the ledger and builds their
// submission plans. Players that already exist continue from their last level.
func seedPlayers(ctx context.Context, cfg *Config, l *ledger.Ledger, issuer TokenIssuer) ([]plan, error) {
	f := gofakeit.New(cfg.Seed)
	base := time.Now().UTC().Truncate(time.Millisecond)

	plans := make([]plan, 0, cfg.Players)
	for i := 0; i < cfg.Players; i++ {
		p, err := l.GetOrCreateByWallet(ctx, f.Regex(walletPattern))
		if err != nil {
			return nil, fmt.Errorf("register player %d: %w", i, err)
		}
		initial, _, err := l.TotalScore(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("total for %s: %w", p.ID, err)
		}
		level, err := lastLevel(ctx, l, p.ID)
		if err != nil {
			return nil, err
		}
		token, err := issuer.IssueToken(p.ID, tokenTTL)
		if err != nil {
			return nil, fmt.Errorf("token for %s: %w", p.ID, err)
		}

		rounds := make([]scoreBody, cfg.Rounds)
		for r := range rounds {
			rounds[r] = scoreBody{
				PlayerID: p.ID,
				Score:    int64(f.IntRange(0, maxRoundScore)),
				Metadata: map[string]interface{}{
					submission.LevelKey:     level + int64(r) + 1,
					submission.TimespentKey: f.Float64Range(minTimespent, maxTimespent),
				},
				Timestamp: base.Add(time.Duration(r) * time.Millisecond),
			}
		}
		plans = append(plans, plan{PlayerID: p.ID, Token: token, Initial: initial, Rounds: rounds})
	}
	return plans, nil
}

func lastLevel(ctx context.Context, l *ledger.Ledger, playerID string) (int64, error) {
	ev, ok, err := l.LatestEvent(ctx, playerID)
	if err != nil {
		return 0, fmt.Errorf("latest event for %s: %w", playerID, err)
	}
	if !ok {
		return 0, nil
	}
	switch v := ev.Metadata[submission.LevelKey].(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	}
	return 0, nil
}
