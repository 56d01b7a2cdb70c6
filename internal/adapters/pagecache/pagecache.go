// Package pagecache is the short-lived read cache for unfiltered leaderboard pages.
//
// Entries are scoped to a generation. Purge advances the generation, which
// drops every cached page at once. Readers capture the generation before
// computing a page and store it under that generation, so a page computed
// concurrently with a purge is never served after the purge.
package pagecache

import (
	"context"
	"strconv"
	"time"

	"github.com/okian/ladder/internal/domain/types"
)

// Cache stores leaderboard pages by key within a generation.
type Cache interface {
	Generation(ctx context.Context) (uint64, error)
	Get(ctx context.Context, gen uint64, key string) (types.Page, bool, error)
	Set(ctx context.Context, gen uint64, key string, page types.Page, ttl time.Duration) error
	Purge(ctx context.Context) error
}

// Key builds the cache key of an unfiltered page.
func Key(tf types.Timeframe, limit, offset int) string {
	return string(tf) + ":" + strconv.Itoa(limit) + ":" + strconv.Itoa(offset)
}
