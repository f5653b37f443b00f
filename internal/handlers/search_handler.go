package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// SearchHandler serves corpus search requests
type SearchHandler struct {
	search interfaces.SearchBackend
	logger arbor.ILogger
}

// NewSearchHandler creates a new search handler with dependencies
func NewSearchHandler(search interfaces.SearchBackend, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{
		search: search,
		logger: logger,
	}
}

// SearchCorpusHandler handles GET /api/corpus/search?q=query requests
func (h *SearchHandler) SearchCorpusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		WriteError(w, http.StatusBadRequest, "Missing q parameter")
		return
	}
	limit, _ := GetLimitOffset(r, 20, 100)

	streamCtx, stopStream := context.WithCancel(r.Context())
	defer stopStream()

	spec := &models.DatasetQuery{QueryText: query, TopK: limit}
	batches, errs := h.search.Stream(streamCtx, spec, limit)

	results := make([]models.SearchResult, 0, limit)
	for batch := range batches {
		results = append(results, batch...)
		if len(results) >= limit {
			stopStream()
			break
		}
	}

	// Drain so the backend goroutine can deliver its terminal error and exit
	for range batches {
	}
	if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Error().
			Err(err).
			Str("query", query).
			Msg("Corpus search failed")
		WriteServiceError(w, err)
		return
	}

	if len(results) > limit {
		results = results[:limit]
	}

	h.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Str("backend", h.search.Name()).
		Msg("Corpus search completed")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
		"count":   len(results),
		"backend": h.search.Name(),
	})
}
