package api

import (
	"net/http"
	"strconv"

	"github.com/okian/ladder/internal/domain/ranking"
	"github.com/okian/ladder/internal/domain/types"
	"github.com/okian/ladder/pkg/logger"
)

// LeaderboardHandler handles leaderboard reads.
type LeaderboardHandler struct {
	board Leaderboard
	log   logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(board Leaderboard, log logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, log: log}
}

// HandleGetLeaderboard handles GET /leaderboard?timeframe=&limit=&offset=&playerId= requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	params := r.URL.Query()

	tf, err := types.ParseTimeframe(params.Get("timeframe"))
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}
	limit, err := intParam(params.Get("limit"), ranking.DefaultPageLimit)
	if err != nil {
		writeError(w, badRequest("limit must be an integer"))
		return
	}
	// Out of range sizes are corrected, zero means the default.
	if limit == 0 {
		limit = ranking.DefaultPageLimit
	}
	limit = ranking.ClampLimit(limit)
	offset, err := intParam(params.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeError(w, badRequest("offset must not be negative"))
		return
	}

	page, err := h.board.GetLeaderboard(r.Context(), ranking.Query{
		Timeframe: tf,
		Limit:     limit,
		Offset:    offset,
		PlayerID:  params.Get("playerId"),
	})
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleGetPlayer handles GET /leaderboard/player?timeframe= for the caller.
func (h *LeaderboardHandler) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	tf, err := types.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		writeError(w, badRequest("%v", err))
		return
	}

	surround, err := h.board.GetPlayerRankAndSurround(r.Context(), PlayerID(r.Context()), tf)
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, surround)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
