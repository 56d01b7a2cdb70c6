package ranking

import (
	"errors"
	"fmt"

	"github.com/okian/ladder/internal/adapters/rankset"
)

// Error kinds surfaced by the ranking core. Every returned error wraps exactly one.
var (
	// ErrValidation marks a malformed request. Nothing was touched.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a player without a durable record.
	ErrNotFound = errors.New("player not found")
	// ErrUnavailable marks a fast store or ledger failure. The call may be retried.
	ErrUnavailable = errors.New("ranking store unavailable")
	// ErrInconsistent marks a reply that breaks the store contract.
	ErrInconsistent = errors.New("ranking store inconsistent")
)

func validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storeErr classifies a collaborator failure.
func storeErr(op string, err error) error {
	if errors.Is(err, rankset.ErrUnexpectedReply) || errors.Is(err, rankset.ErrSeedRequired) {
		return fmt.Errorf("%s: %w: %w", op, ErrInconsistent, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
