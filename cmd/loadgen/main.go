package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/okian/ladder/internal/adapters/ledger"
	"github.com/okian/ladder/internal/loadgen"
	"github.com/okian/ladder/pkg/logger"
)

const (
	defaultPlayers = 100
	defaultRounds  = 5
	runTimeout     = 10 * time.Minute
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := newApp().Run(os.Args); err != nil {
		os.Stderr.WriteString("load run failed: " + err.Error() + "\n")
		_ = logger.Sync()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "loadgen",
		Usage: "register players, submit scores and verify the leaderboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:9080", Usage: "base URL of the service"},
			&cli.IntFlag{Name: "players", Value: defaultPlayers, Usage: "number of players to register"},
			&cli.IntFlag{Name: "rounds", Value: defaultRounds, Usage: "sequential submissions per player"},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU() * 2, Usage: "players submitting concurrently"},
			&cli.StringFlag{Name: "secret", EnvVars: []string{"LADDER_JWT_SECRET"}, Usage: "HS256 secret shared with the service"},
			&cli.DurationFlag{Name: "timeout", Value: loadgen.DefaultTimeout, Usage: "HTTP request timeout"},
			&cli.DurationFlag{Name: "settle", Value: loadgen.DefaultSettle, Usage: "how long to wait for persistence"},
			&cli.StringFlag{Name: "db-driver", Value: ledger.DriverSQLite, EnvVars: []string{"LADDER_DB_DRIVER"}, Usage: "ledger driver, sqlite or mysql"},
			&cli.StringFlag{Name: "db-dsn", Value: "file:ladder.db?cache=shared&_busy_timeout=5000", EnvVars: []string{"LADDER_DB_DSN"}, Usage: "ledger DSN shared with the service"},
			&cli.Uint64Flag{Name: "seed", Usage: "faker seed, 0 picks one at random"},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	cfg := &loadgen.Config{
		BaseURL:  c.String("url"),
		Players:  c.Int("players"),
		Rounds:   c.Int("rounds"),
		Workers:  c.Int("workers"),
		Secret:   c.String("secret"),
		Timeout:  c.Duration("timeout"),
		Settle:   c.Duration("settle"),
		Seed:     c.Uint64("seed"),
		DBDriver: c.String("db-driver"),
		DBDSN:    c.String("db-dsn"),
	}

	report, err := loadgen.Run(ctx, cfg, logger.Named("loadgen"))
	if report != nil {
		fmt.Fprintf(c.App.Writer, "players=%d submitted=%d accepted=%d rate_limited=%d rejected=%d failed=%d leaderboard=%d surrounds=%d elapsed=%s\n",
			report.Players, report.Submitted, report.Accepted, report.RateLimited, report.Rejected, report.Failed,
			report.LeaderboardSize, report.Checked, report.Duration.Round(time.Millisecond))
	}
	return err
}
