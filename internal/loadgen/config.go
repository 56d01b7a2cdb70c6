// Package loadgen drives a running leaderboard with generated players and
// submissions, then checks that the rankings it reads back are coherent.
package loadgen

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/ladder/internal/adapters/ledger"
)

// Defaults applied by Validate.
const (
	DefaultTimeout = 10 * time.Second
	DefaultSettle  = 10 * time.Second
)

// ErrVerification marks a leaderboard that failed a consistency check.
var ErrVerification = errors.New("verification failed")

// Config holds configuration for a load run.
type Config struct {
	BaseURL string        // Base URL of the service
	Players int           // Number of players to register
	Rounds  int           // Sequential submissions per player
	Workers int           // Players submitting concurrently
	Secret  string        // HS256 secret shared with the service
	Timeout time.Duration // HTTP request timeout
	Settle  time.Duration // How long to wait for persistence before verifying
	Seed    uint64        // Faker seed, 0 picks one from the clock

	DBDriver string // Ledger driver used to register players
	DBDSN    string
}

// Report summarises a run.
type Report struct {
	Players     int
	Submitted   int
	Accepted    int
	RateLimited int
	Rejected    int
	Failed      int

	LeaderboardSize int64
	Checked         int
	Duration        time.Duration
}

// Validate checks the run configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base url is required")
	}
	if c.Players < 1 {
		return fmt.Errorf("players must be positive, got %d", c.Players)
	}
	if c.Rounds < 1 {
		return fmt.Errorf("rounds must be positive, got %d", c.Rounds)
	}
	if c.Secret == "" {
		return errors.New("jwt secret is required")
	}
	if c.DBDSN == "" {
		return errors.New("ledger dsn is required")
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Settle <= 0 {
		c.Settle = DefaultSettle
	}
	if c.DBDriver == "" {
		c.DBDriver = ledger.DriverSQLite
	}
	return nil
}
