// Package handlers provides HTTP handlers for currency operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/wealth/internal/modules/currency"
	"github.com/rs/zerolog"
)

// Handler handles currency HTTP requests
type Handler struct {
	cache        *currency.RateCache
	consolidator *currency.Consolidator
	log          zerolog.Logger
}

// NewHandler creates a new currency handler
func NewHandler(cache *currency.RateCache, consolidator *currency.Consolidator, log zerolog.Logger) *Handler {
	return &Handler{
		cache:        cache,
		consolidator: consolidator,
		log:          log.With().Str("handler", "currency").Logger(),
	}
}

// HandleGetRates handles GET /api/rates
func (h *Handler) HandleGetRates(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.EnsureFresh(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Serving rates without a fresh table")
	}

	rates := h.cache.Rates()
	stale := 0
	for _, rate := range rates {
		if rate.Stale {
			stale++
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"reporting_currency": h.cache.ReportingCurrency(),
			"rates":              rates,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(rates),
			"stale":     stale,
		},
	})
}

// HandleRefreshRates handles POST /api/rates/refresh
//
// A failed fetch is not an HTTP error: the cache keeps serving the previous
// tier, and the response reports the failure.
func (h *Handler) HandleRefreshRates(w http.ResponseWriter, r *http.Request) {
	refreshed := true
	var refreshErr string
	if err := h.cache.Refresh(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Manual rate refresh failed")
		refreshed = false
		refreshErr = err.Error()
	}

	report, err := h.consolidator.ConsolidateAll(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Consolidation after refresh failed")
		http.Error(w, "Could not revalue assets", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"refreshed":     refreshed,
			"error":         refreshErr,
			"consolidation": report,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
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
