package rankset

import "errors"

// Sentinel kinds for ranked set errors.
var (
	// ErrSeedRequired means the totals hash has no entry for the player and
	// the caller must supply the durable total as a seed.
	ErrSeedRequired = errors.New("rankset: total seed required")
	// ErrUnexpectedReply means the store answered with a reply of the wrong shape.
	ErrUnexpectedReply = errors.New("rankset: unexpected reply")
	ErrInvalidLimit    = errors.New("rankset: invalid limit")
)
