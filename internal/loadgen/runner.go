package loadgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/ladder/internal/adapters/http/api"
	"github.com/okian/ladder/internal/adapters/ledger"
	"github.com/okian/ladder/internal/domain/types"
	"github.com/okian/ladder/pkg/logger"
)

const (
	pageSize     = 1000
	pollInterval = 200 * time.Millisecond
)

// Run seeds players, drives their submissions against the service and
// verifies the resulting leaderboard. The returned report is filled in as far
// as the run got, even on error.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Report, error) {
	if log == nil {
		log = logger.Nop()
	}
	start := time.Now()
	report := &Report{Players: cfg.Players}
	defer func() { report.Duration = time.Since(start) }()

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed))

	if err := cfg.Validate(); err != nil {
		return report, err
	}

	c := &client{http: &http.Client{Timeout: cfg.Timeout}, baseURL: cfg.BaseURL}

	// Step 1: Check service health
	if err := c.health(ctx); err != nil {
		return report, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Register players
	db, err := ledger.Open(cfg.DBDriver, cfg.DBDSN, 0, 0)
	if err != nil {
		return report, err
	}
	l := ledger.New(db)
	defer l.Close()

	plans, err := seedPlayers(ctx, cfg, l, api.NewAuthenticator(cfg.Secret))
	if err != nil {
		return report, fmt.Errorf("player seeding failed: %w", err)
	}

	// Step 3: Submit scores
	expected, err := submitAll(ctx, cfg, c, plans, report)
	if err != nil {
		return report, fmt.Errorf("score submission failed: %w", err)
	}
	log.Info(ctx, "submissions completed",
		logger.Int("submitted", report.Submitted),
		logger.Int("accepted", report.Accepted),
		logger.Int("rateLimited", report.RateLimited),
		logger.Int("rejected", report.Rejected),
		logger.Int("failed", report.Failed))

	// Step 4: Wait for the write-behind queue to catch up
	token := plans[0].Token
	entries, err := awaitTotals(ctx, cfg, c, token, expected, report)
	if err != nil {
		return report, err
	}

	// Step 5: Verify ordering and surrounds
	if err := verifyOrder(entries); err != nil {
		return report, err
	}
	if err := verifySurrounds(ctx, cfg, c, plans, expected, report); err != nil {
		return report, err
	}

	log.Info(ctx, "load run verified",
		logger.Int64("leaderboardSize", report.LeaderboardSize),
		logger.Int("surroundsChecked", report.Checked),
		logger.Duration("elapsed", time.Since(start)))
	return report, nil
}

// submitAll runs every plan, cfg.Workers players at a time. Each player stops
// at its first rejected round since later levels would fail the progression check.
func submitAll(ctx context.Context, cfg *Config, c *client, plans []plan, report *Report) (map[string]int64, error) {
	var submitted, accepted, limited, rejected, failed int64
	gained := make([]int64, len(plans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i := range plans {
		p := &plans[i]
		g.Go(func() error {
			for _, round := range p.Rounds {
				if err := gctx.Err(); err != nil {
					return err
				}
				atomic.AddInt64(&submitted, 1)
				_, err := c.submit(gctx, p.Token, round)
				var apiErr *apiError
				switch {
				case err == nil:
					atomic.AddInt64(&accepted, 1)
					gained[i] += round.Score
					continue
				case errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests:
					atomic.AddInt64(&limited, 1)
				case errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				return nil
			}
			return nil
		})
	}
	err := g.Wait()

	report.Submitted = int(submitted)
	report.Accepted = int(accepted)
	report.RateLimited = int(limited)
	report.Rejected = int(rejected)
	report.Failed = int(failed)
	if err != nil {
		return nil, err
	}

	expected := make(map[string]int64, len(plans))
	for i, p := range plans {
		expected[p.PlayerID] = p.Initial + gained[i]
	}
	return expected, nil
}

// awaitTotals polls the all-time leaderboard until it reflects expected or
// cfg.Settle passes, and returns the last full read.
func awaitTotals(ctx context.Context, cfg *Config, c *client, token string, expected map[string]int64, report *Report) ([]types.Entry, error) {
	deadline := time.Now().Add(cfg.Settle)
	for {
		entries, total, err := readAll(ctx, c, token)
		if err != nil {
			return nil, fmt.Errorf("leaderboard retrieval failed: %w", err)
		}
		report.LeaderboardSize = total
		verr := verifyTotals(entries, expected)
		if verr == nil || !time.Now().Before(deadline) {
			return entries, verr
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// readAll pages through the whole all-time leaderboard.
func readAll(ctx context.Context, c *client, token string) ([]types.Entry, int64, error) {
	var out []types.Entry
	for offset := 0; ; offset += pageSize {
		page, err := c.page(ctx, token, pageSize, offset)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, page.Items...)
		if len(page.Items) < pageSize || int64(len(out)) >= page.Total {
			return out, page.Total, nil
		}
	}
}

func verifySurrounds(ctx context.Context, cfg *Config, c *client, plans []plan, expected map[string]int64, report *Report) error {
	var checked int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for _, p := range plans {
		g.Go(func() error {
			s, err := c.surround(gctx, p.Token)
			if err != nil {
				return fmt.Errorf("surround for %s: %w", p.PlayerID, err)
			}
			if err := verifySurround(s, expected[p.PlayerID]); err != nil {
				return err
			}
			atomic.AddInt64(&checked, 1)
			return nil
		})
	}
	err := g.Wait()
	report.Checked = int(checked)
	return err
}
