// Package rankset implements the bounded all-time ranking set and its
// companion totals hash.
//
// Two backends are provided: Redis, where every multi-step operation runs as
// a server-side Lua script, and Memory, an order-statistic treap behind a
// single mutex. Both order members by (score asc, player id asc), so rank
// and eviction are identical across backends.
package rankset

import (
	"context"

	"github.com/okian/ladder/internal/domain/model"
)

// Update is the result of an atomic increment-admit-rank step.
type Update struct {
	// Total is the player's cumulative score after the increment.
	Total int64
	// Rank is 1 + the number of members with a strictly greater score, or 0
	// when the player was not admitted to the set.
	Rank int64
	// Size is the set cardinality after the step.
	Size int64
}

// Admitted reports whether the player holds a ranking-set entry after the update.
func (u Update) Admitted() bool { return u.Rank > 0 }

// RankedSet is the fast ranking store.
type RankedSet interface {
	// Apply increments the player's total by delta and, in the same atomic
	// unit, decides admission against capacity and reads the rank.
	// When the totals hash has no entry for the player and seed is nil,
	// Apply returns ErrSeedRequired without mutating anything. With a
	// seed, the hash entry is initialised to *seed before the increment.
	Apply(ctx context.Context, playerID string, delta int64, capacity int, seed *int64) (Update, error)

	// Trim removes the lowest members until at most capacity remain and
	// returns the evicted ids. Totals entries are kept, so an evicted
	// player's next Apply continues from its running total.
	Trim(ctx context.Context, capacity int) ([]string, error)

	// Load upserts members into the set and the totals hash. An existing
	// total is never lowered.
	Load(ctx context.Context, members []model.Member) error

	// Card returns the number of members in the set.
	Card(ctx context.Context) (int64, error)

	// Top returns up to n members ordered by score desc, player id desc.
	Top(ctx context.Context, n int) ([]model.Member, error)
}
