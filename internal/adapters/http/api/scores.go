package api

import (
	"io"
	"net/http"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/okian/ladder/internal/domain/submission"
	"github.com/okian/ladder/pkg/logger"
)

const maxBodyBytes = 64 << 10

// scoreRequest mirrors the OpenAPI schema for POST /scores.
type scoreRequest struct {
	PlayerID  string                 `json:"playerId"`
	Score     int64                  `json:"score"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}

// ScoresHandler handles score submissions.
type ScoresHandler struct {
	submitter Submitter
	log       logger.Logger
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(submitter Submitter, log logger.Logger) *ScoresHandler {
	return &ScoresHandler{submitter: submitter, log: log}
}

// HandlePostScore handles POST /scores requests.
func (h *ScoresHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, badRequest("read body: %v", err))
		return
	}
	var req scoreRequest
	if err := sonnet.Unmarshal(body, &req); err != nil {
		writeError(w, badRequest("invalid body: %v", err))
		return
	}

	res, err := h.submitter.Submit(r.Context(), PlayerID(r.Context()), submission.Request{
		PlayerID:  req.PlayerID,
		Score:     req.Score,
		Metadata:  req.Metadata,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
