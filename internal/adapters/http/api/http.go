// Package api serves the leaderboard HTTP API.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sugawarayuuta/sonnet"

	"github.com/okian/ladder/internal/domain/ranking"
	"github.com/okian/ladder/internal/domain/submission"
	"github.com/okian/ladder/internal/domain/types"
	"github.com/okian/ladder/pkg/logger"
)

// Submitter accepts score submissions.
type Submitter interface {
	Submit(ctx context.Context, callerID string, req submission.Request) (types.SubmitResult, error)
}

// Leaderboard answers ranking reads.
type Leaderboard interface {
	GetLeaderboard(ctx context.Context, q ranking.Query) (types.Page, error)
	GetPlayerRankAndSurround(ctx context.Context, playerID string, tf types.Timeframe) (types.Surround, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	scoresHandler      *ScoresHandler
	leaderboardHandler *LeaderboardHandler
	auth               *Authenticator
}

// NewServer creates a new API server with all handlers.
func NewServer(submitter Submitter, board Leaderboard, stats StatsProvider, auth *Authenticator, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(stats, log),
		scoresHandler:      NewScoresHandler(submitter, log),
		leaderboardHandler: NewLeaderboardHandler(board, log),
		auth:               auth,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/scores", MetricsMiddleware(s.auth.Require(s.scoresHandler.HandlePostScore), "scores"))
	mux.HandleFunc("/leaderboard/player", MetricsMiddleware(s.auth.Require(s.leaderboardHandler.HandleGetPlayer), "leaderboard_player"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.auth.Require(s.leaderboardHandler.HandleGetLeaderboard), "leaderboard"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonnet.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"code":"internal_error","message":"encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// fail logs server-side failures and renders err.
func fail(ctx context.Context, log logger.Logger, w http.ResponseWriter, err error) {
	if status, _ := classify(err); status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.Error(err))
	}
	writeError(w, err)
}

// writeError renders err with the status its kind maps to.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := http.StatusText(status)
	// Server-side failures keep their causes out of responses.
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, fmt.Errorf("%w: %s", ErrMethodNotAllowed, r.Method))
		return false
	}
	return true
}
