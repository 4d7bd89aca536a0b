// Package handlers provides HTTP handlers for sensitivity queries.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/sensitivity"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles sensitivity HTTP requests
type Handler struct {
	service *sensitivity.Service
	log     zerolog.Logger
}

// NewHandler creates a new sensitivity handler
func NewHandler(service *sensitivity.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "sensitivity").Logger(),
	}
}

// RegisterRoutes registers the sensitivity routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolios/{id}/sensitivity", h.HandleGetSensitivity)
}

// HandleGetSensitivity handles GET /api/portfolios/{id}/sensitivity
func (h *Handler) HandleGetSensitivity(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetSensitivity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to compute sensitivity")
		http.Error(w, "Could not load sensitivity", http.StatusInternalServerError)
		return
	}

	estimated := 0
	for _, a := range result.Assets {
		if a.VolatilitySource == sensitivity.VolatilityEstimated {
			estimated++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	response := map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"estimated": estimated,
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
