package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-finder/internal/fileops"
)

// FilesHandler exposes batch file operations.
type FilesHandler struct {
	operator *fileops.Operator
}

// NewFilesHandler creates a new files handler.
func NewFilesHandler(operator *fileops.Operator) *FilesHandler {
	return &FilesHandler{operator: operator}
}

type fileOperationRequest struct {
	Operation   string   `json:"operation"`
	Paths       []string `json:"paths"`
	Destination string   `json:"destination,omitempty"`
}

// Apply runs a batch copy/move/delete and reports the tally.
func (h *FilesHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req fileOperationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	op := fileops.Operation(req.Operation)
	if !op.Valid() {
		respondError(w, http.StatusBadRequest, "unknown operation: "+req.Operation)
		return
	}
	if len(req.Paths) == 0 {
		respondError(w, http.StatusBadRequest, "paths are required")
		return
	}

	report, err := h.operator.Apply(r.Context(), op, req.Paths, req.Destination)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, report)
}
