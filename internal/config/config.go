// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a YAML file and LADDER_* environment variables over the defaults.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// JWTSecret verifies HS256 bearer tokens issued by the auth service.
	JWTSecret string `koanf:"jwt_secret"`

	// RedisAddr selects the Redis backed ranked set and page cache. Empty keeps
	// both in process.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix"`

	// DBDriver is sqlite or mysql.
	DBDriver  string `koanf:"db_driver"`
	DBDSN     string `koanf:"db_dsn"`
	DBMaxOpen int    `koanf:"db_max_open"`
	DBMaxIdle int    `koanf:"db_max_idle"`

	// CacheCapacity bounds the all-time ranked set, OverflowFactor sets the
	// size at which a trim is requested.
	CacheCapacity      int     `koanf:"cache_capacity"`
	OverflowFactor     float64 `koanf:"overflow_factor"`
	BootstrapBatchSize int     `koanf:"bootstrap_batch_size"`
	SurroundSize       int     `koanf:"surround_size"`
	PageCacheTTLMS     int     `koanf:"page_cache_ttl_ms"`
	TrimIntervalMS     int     `koanf:"trim_interval_ms"`

	// Submission rules.
	MaxScore                int64 `koanf:"max_score"`
	MaxSubmissionsPerMinute int   `koanf:"max_submissions_per_minute"`
	MinTimespent            int64 `koanf:"min_timespent"`
	MaxLevelJump            int64 `koanf:"max_level_jump"`
	// TrackedPlayers bounds per-player limiter and level state.
	TrackedPlayers int `koanf:"tracked_players"`

	// EventQueueSize bounds the write-behind queue.
	EventQueueSize   int `koanf:"queue_size"`
	EnqueueTimeoutMS int `koanf:"enqueue_timeout_ms"`

	// WorkerCount sets the number of write-behind workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":9080",
		RedisPrefix:             "leaderboard",
		DBDriver:                DriverSQLite,
		DBDSN:                   "file:ladder.db?cache=shared&_busy_timeout=5000",
		DBMaxOpen:               20,
		DBMaxIdle:               5,
		CacheCapacity:           1000,
		OverflowFactor:          1.1,
		BootstrapBatchSize:      1000,
		SurroundSize:            2,
		PageCacheTTLMS:          30_000,
		TrimIntervalMS:          5_000,
		MaxScore:                1_000_000,
		MaxSubmissionsPerMinute: 10,
		MinTimespent:            5,
		MaxLevelJump:            1,
		TrackedPlayers:          100_000,
		EventQueueSize:          100_000,
		EnqueueTimeoutMS:        50,
		WorkerCount:             runtime.NumCPU() * 2,
		DedupeSize:              500_000,
	}
}

// Supported ledger drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// PageCacheTTL returns the leaderboard page cache TTL.
func (c *Config) PageCacheTTL() time.Duration {
	return time.Duration(c.PageCacheTTLMS) * time.Millisecond
}

// TrimInterval returns the periodic trim sweep interval.
func (c *Config) TrimInterval() time.Duration {
	return time.Duration(c.TrimIntervalMS) * time.Millisecond
}

// EnqueueTimeout returns how long a submission waits for write-behind room.
func (c *Config) EnqueueTimeout() time.Duration {
	return time.Duration(c.EnqueueTimeoutMS) * time.Millisecond
}
