package api

import (
	"context"
	"log/slog"
	"net/http"
)

// PassageCounter reports corpus size. *store.Passages implements it.
type PassageCounter interface {
	Count(ctx context.Context) (int64, error)
}

type statsResponse struct {
	TotalPassages int64 `json:"total_passages"`
}

type statsHandler struct {
	passages PassageCounter
	logger   *slog.Logger
}

// get handles GET /api/v1/stats.
func (h *statsHandler) get(w http.ResponseWriter, r *http.Request) {
	count, err := h.passages.Count(r.Context())
	if err != nil {
		h.logger.Error("counting passages", "error", err,
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, http.StatusServiceUnavailable, "stats_unavailable", "passage store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{TotalPassages: count})
}
