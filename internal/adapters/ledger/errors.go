package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrUnknownDriver = errors.New("ledger: unknown driver")
)
