package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-finder/internal/indexer"
)

// IndexingHandler exposes indexing session operations.
type IndexingHandler struct {
	pipeline *indexer.Pipeline
}

// NewIndexingHandler creates a new indexing handler.
func NewIndexingHandler(pipeline *indexer.Pipeline) *IndexingHandler {
	return &IndexingHandler{pipeline: pipeline}
}

type startIndexingRequest struct {
	Root string `json:"root"`
}

// Start begins an indexing session for a root directory.
func (h *IndexingHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startIndexingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Root == "" {
		respondError(w, http.StatusBadRequest, "root is required")
		return
	}

	sessionID, err := h.pipeline.Start(req.Root)
	if err != nil {
		var running *indexer.AlreadyRunningError
		if errors.As(err, &running) {
			respondError(w, http.StatusConflict, running.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"session_id": sessionID})
}

// Progress returns a snapshot of an indexing session.
func (h *IndexingHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snapshot, ok := h.pipeline.Progress(id)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// Cancel requests a cooperative stop of an indexing session.
func (h *IndexingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.pipeline.Cancel(id) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}
