package handlers

import (
	"errors"
	"net/http"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/search"
	"github.com/kozaktomas/face-finder/internal/store"
)

// SearchHandler exposes similarity search.
type SearchHandler struct {
	engine     *search.Engine
	threshold  float64
	maxResults int
}

// NewSearchHandler creates a new search handler. The config supplies the
// defaults applied when a request omits threshold or max_results.
func NewSearchHandler(engine *search.Engine, cfg config.SearchConfig) *SearchHandler {
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = search.DefaultThreshold
	}
	return &SearchHandler{
		engine:     engine,
		threshold:  threshold,
		maxResults: cfg.MaxResults,
	}
}

type searchRequest struct {
	Embedding  []float32 `json:"embedding"`
	Metric     string    `json:"metric,omitempty"`
	Threshold  *float64  `json:"threshold,omitempty"`
	MaxResults int       `json:"max_results,omitempty"`
}

type searchResponse struct {
	Results []search.Result `json:"results"`
	Count   int             `json:"count"`
}

// Search runs a similarity query against the store.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Embedding) == 0 {
		respondError(w, http.StatusBadRequest, "embedding is required")
		return
	}

	metric := store.Metric(req.Metric)
	if req.Metric != "" && !metric.Valid() {
		respondError(w, http.StatusBadRequest, "unknown metric: "+req.Metric)
		return
	}

	threshold := h.threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 || threshold > 1 {
		respondError(w, http.StatusBadRequest, "threshold must be within [0, 1]")
		return
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = h.maxResults
	}

	results, err := h.engine.Search(r.Context(), search.Query{
		Embedding:  req.Embedding,
		Metric:     metric,
		Threshold:  threshold,
		MaxResults: maxResults,
	})
	if err != nil {
		var mismatch *store.DimensionMismatchError
		if errors.As(err, &mismatch) {
			respondError(w, http.StatusBadRequest, mismatch.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, searchResponse{Results: results, Count: len(results)})
}
