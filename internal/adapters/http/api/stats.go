package api

import (
	"context"
	"net/http"

	"github.com/okian/ladder/pkg/logger"
)

// StatsProvider reports service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
	log           logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider, log logger.Logger) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider, log: log}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	stats, err := h.statsProvider.GetStats(r.Context())
	if err != nil {
		fail(r.Context(), h.log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
