// Package handlers provides HTTP handlers for ledger operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/wealth/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// MovementReader is the read side of the ledger.
type MovementReader interface {
	ListByPortfolio(portfolioID string, limit int) ([]domain.Movement, error)
	ListByPosition(positionID string) ([]domain.Movement, error)
}

// Handler handles ledger HTTP requests
type Handler struct {
	movements MovementReader
	log       zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(movements MovementReader, log zerolog.Logger) *Handler {
	return &Handler{
		movements: movements,
		log:       log.With().Str("handler", "ledger").Logger(),
	}
}

// HandleGetPortfolioMovements handles GET /api/portfolios/{id}/movements
func (h *Handler) HandleGetPortfolioMovements(w http.ResponseWriter, r *http.Request) {
	portfolioID := chi.URLParam(r, "id")

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	movements, err := h.movements.ListByPortfolio(portfolioID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to list movements")
		http.Error(w, "Could not load movements", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": movements,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(movements),
		},
	})
}

// HandleGetPositionMovements handles GET /api/positions/{id}/movements
func (h *Handler) HandleGetPositionMovements(w http.ResponseWriter, r *http.Request) {
	positionID := chi.URLParam(r, "id")

	movements, err := h.movements.ListByPosition(positionID)
	if err != nil {
		h.log.Error().Err(err).Str("position_id", positionID).Msg("Failed to list movements")
		http.Error(w, "Could not load movements", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": movements,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(movements),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
