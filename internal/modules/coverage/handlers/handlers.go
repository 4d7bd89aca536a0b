// Package handlers provides HTTP handlers for insurance coverage queries.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/coverage"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles coverage HTTP requests
type Handler struct {
	service *coverage.Service
	log     zerolog.Logger
}

// NewHandler creates a new coverage handler
func NewHandler(service *coverage.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "coverage").Logger(),
	}
}

// RegisterRoutes registers the coverage routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolios/{id}/coverage", h.HandleGetCoverage)
}

// HandleGetCoverage handles GET /api/portfolios/{id}/coverage
func (h *Handler) HandleGetCoverage(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetCoverage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to compute coverage")
		http.Error(w, "Could not load coverage", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	response := map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
