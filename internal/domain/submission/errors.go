package submission

import "errors"

// Rejections specific to the submission path. Validation, missing players
// and store failures reuse the ranking error kinds.
var (
	ErrForbidden      = errors.New("caller may not submit for this player")
	ErrRateLimited    = errors.New("too many submissions")
	ErrDuplicate      = errors.New("duplicate submission")
	ErrCheatSuspected = errors.New("impossible progression")
)
