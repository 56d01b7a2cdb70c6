package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LADDER_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if LADDER_CONFIG is set
//  3. env (prefix LADDER_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// LADDER_QUEUE_SIZE -> queue_size. Underscores are kept to match the flat koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.CacheCapacity <= 0:
		return fmt.Errorf("%w: cache_capacity must be positive", ErrInvalidConfig)
	case c.OverflowFactor < 1:
		return fmt.Errorf("%w: overflow_factor must be >= 1", ErrInvalidConfig)
	case c.BootstrapBatchSize <= 0:
		return fmt.Errorf("%w: bootstrap_batch_size must be positive", ErrInvalidConfig)
	case c.SurroundSize < 0:
		return fmt.Errorf("%w: surround_size must not be negative", ErrInvalidConfig)
	case c.MaxScore <= 0:
		return fmt.Errorf("%w: max_score must be positive", ErrInvalidConfig)
	case c.MaxSubmissionsPerMinute <= 0:
		return fmt.Errorf("%w: max_submissions_per_minute must be positive", ErrInvalidConfig)
	case c.TrackedPlayers <= 0:
		return fmt.Errorf("%w: tracked_players must be positive", ErrInvalidConfig)
	case c.MaxLevelJump < 1:
		return fmt.Errorf("%w: max_level_jump must be >= 1", ErrInvalidConfig)
	case c.EventQueueSize <= 0 || c.WorkerCount <= 0:
		return fmt.Errorf("%w: queue_size and worker_count must be positive", ErrInvalidConfig)
	}
	switch c.DBDriver {
	case DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	}
	return nil
}
