// Package handlers provides HTTP handlers for snapshot history and runs.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/performance"
	"github.com/aristath/wealth/internal/modules/snapshots"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles snapshot HTTP requests
type Handler struct {
	engine *snapshots.Engine
	log    zerolog.Logger
	now    func() time.Time
}

// NewHandler creates a new snapshot handler
func NewHandler(engine *snapshots.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		log:    log.With().Str("handler", "snapshots").Logger(),
		now:    time.Now,
	}
}

// HandleGetHistory handles GET /api/portfolios/{id}/history?period=1Y
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	period, err := performance.ParsePeriod(r.URL.Query().Get("period"), h.now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "id")
	history, err := h.engine.GetHistory(r.Context(), id, period.Start, period.End)
	if err != nil {
		h.log.Error().Err(err).Str("portfolio_id", id).Msg("Failed to load history")
		http.Error(w, "Could not load history", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []domain.HistorySnapshot{}
	}

	h.writeJSON(w, http.StatusOK, history, map[string]interface{}{
		"period": period.Code,
		"count":  len(history),
	})
}

// HandleRunSnapshot handles POST /api/snapshots/run?date=YYYY-MM-DD
//
// A run where only some portfolios failed still answers 200 with the report;
// the failures are listed in it.
func (h *Handler) HandleRunSnapshot(w http.ResponseWriter, r *http.Request) {
	asOf := h.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation(domain.DateLayout, raw, asOf.Location())
		if err != nil {
			http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		asOf = parsed
	}

	report, err := h.engine.Snapshot(r.Context(), asOf)
	var partial *domain.PartialBatchFailure
	switch {
	case err == nil, errors.As(err, &partial):
	default:
		h.log.Error().Err(err).Msg("Snapshot run failed")
		http.Error(w, "Could not run snapshot", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, report, map[string]interface{}{
		"partial": partial != nil,
	})
}

// writeJSON wraps data in the standard envelope
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}, extra map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	metadata := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
	for k, v := range extra {
		metadata[k] = v
	}

	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data, "metadata": metadata}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
