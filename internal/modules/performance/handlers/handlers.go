// Package handlers provides HTTP handlers for performance queries.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/performance"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles performance HTTP requests
type Handler struct {
	analyzer *performance.Analyzer
	log      zerolog.Logger
}

// NewHandler creates a new performance handler
func NewHandler(analyzer *performance.Analyzer, log zerolog.Logger) *Handler {
	return &Handler{
		analyzer: analyzer,
		log:      log.With().Str("handler", "performance").Logger(),
	}
}

// RegisterRoutes registers the performance routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolios/{id}/performance", h.HandleGetPerformance)
}

// HandleGetPerformance handles GET /api/portfolios/{id}/performance?period=1Y
func (h *Handler) HandleGetPerformance(w http.ResponseWriter, r *http.Request) {
	period, err := performance.ParsePeriod(r.URL.Query().Get("period"), h.analyzer.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	perf, err := h.analyzer.Analyze(r.Context(), chi.URLParam(r, "id"), period)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("period", period.Code).Msg("Failed to analyze performance")
		http.Error(w, "Could not load performance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	response := map[string]interface{}{
		"data": perf,
		"metadata": map[string]interface{}{
			"timestamp":   time.Now().Format(time.RFC3339),
			"provisional": perf.Provisional,
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
