package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-finder/internal/store"
)

// StatsHandler exposes store statistics.
type StatsHandler struct {
	store store.Store
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(st store.Store) *StatsHandler {
	return &StatsHandler{store: st}
}

// Stats returns image/face counts and storage size.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
