package api

import (
	"errors"
	"net/http"

	"github.com/okian/ladder/internal/domain/ranking"
	"github.com/okian/ladder/internal/domain/submission"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, ranking.ErrValidation):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, submission.ErrCheatSuspected):
		return http.StatusBadRequest, "cheat_suspected"
	case errors.Is(err, submission.ErrDuplicate):
		return http.StatusBadRequest, "duplicate"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, submission.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ranking.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, "method_not_allowed"
	case errors.Is(err, submission.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, ranking.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
