// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/portfolio"
	"github.com/aristath/wealth/pkg/money"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.Service
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

type nameRequest struct {
	Name string `json:"name"`
}

type priceRequest struct {
	Price float64 `json:"price"`
}

// HandleListPortfolios handles GET /api/portfolios
func (h *Handler) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.service.ListPortfolios(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Could not load portfolios")
		return
	}
	h.writeJSON(w, http.StatusOK, portfolios)
}

// HandleCreatePortfolio handles POST /api/portfolios
func (h *Handler) HandleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.CreatePortfolio(r.Context(), req.Name)
	if err != nil {
		h.writeServiceError(w, err, "Could not save portfolio")
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

// HandleGetPortfolio handles GET /api/portfolios/{id}
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPortfolio(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Could not load portfolio")
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleRenamePortfolio handles PATCH /api/portfolios/{id}
func (h *Handler) HandleRenamePortfolio(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !h.decode(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.RenamePortfolio(r.Context(), id, req.Name); err != nil {
		h.writeServiceError(w, err, "Could not save portfolio")
		return
	}

	p, err := h.service.GetPortfolio(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Could not load portfolio")
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleDeletePortfolio handles DELETE /api/portfolios/{id}
func (h *Handler) HandleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePortfolio(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "Could not delete portfolio")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetPositions handles GET /api/portfolios/{id}/positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.service.GetPositions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Could not load positions")
		return
	}
	h.writeJSON(w, http.StatusOK, positions)
}

// HandleAddPosition handles POST /api/portfolios/{id}/positions
func (h *Handler) HandleAddPosition(w http.ResponseWriter, r *http.Request) {
	var in portfolio.PositionInput
	if !h.decode(w, r, &in) {
		return
	}
	in.PortfolioID = chi.URLParam(r, "id")

	p, err := h.service.AddPosition(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err, "Could not save position")
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

// HandleGetPosition handles GET /api/positions/{id}
func (h *Handler) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetPosition(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Could not load position")
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleUpdatePosition handles PUT /api/positions/{id}
func (h *Handler) HandleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	var in portfolio.PositionInput
	if !h.decode(w, r, &in) {
		return
	}

	p, err := h.service.UpdatePosition(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeServiceError(w, err, "Could not save position")
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleUpdatePrice handles PUT /api/positions/{id}/price
func (h *Handler) HandleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.service.UpdatePrice(r.Context(), chi.URLParam(r, "id"), req.Price)
	if err != nil {
		h.writeServiceError(w, err, "Could not save position")
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// HandleDeletePosition handles DELETE /api/positions/{id}
func (h *Handler) HandleDeletePosition(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePosition(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "Could not delete position")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleApplyEvent handles POST /api/positions/{id}/events
func (h *Handler) HandleApplyEvent(w http.ResponseWriter, r *http.Request) {
	var e portfolio.CorporateEvent
	if !h.decode(w, r, &e) {
		return
	}
	e.PositionID = chi.URLParam(r, "id")

	result, err := h.service.ApplyEvent(r.Context(), e)
	if err != nil {
		h.writeServiceError(w, err, "Could not apply corporate event")
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// HandleGetTotals handles GET /api/portfolios/{id}/totals
func (h *Handler) HandleGetTotals(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.GetPortfolioTotals(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "Could not load totals")
		return
	}

	currency := h.service.ReportingCurrency()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio_id":   result.PortfolioID,
		"total_value":    money.NewAmount(result.Totals.TotalValue, currency),
		"total_invested": money.NewAmount(result.Totals.TotalInvested, currency),
		"total_gain":     money.NewAmount(result.Totals.TotalGain, currency),
		"gain_percent":   result.Totals.GainPercent,
		"skipped":        result.Skipped,
		"repaired":       result.Repaired,
	})
}

// HandleGetWealth handles GET /api/portfolios/{id}/wealth?view=investments|total
func (h *Handler) HandleGetWealth(w http.ResponseWriter, r *http.Request) {
	view := portfolio.ParseView(r.URL.Query().Get("view"))

	wealth, err := h.service.GetWealth(r.Context(), chi.URLParam(r, "id"), view)
	if err != nil {
		h.writeServiceError(w, err, "Could not load wealth")
		return
	}

	currency := h.service.ReportingCurrency()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"view":          wealth.View,
		"value":         money.NewAmount(wealth.Value(), currency),
		"investments":   money.NewAmount(wealth.Investments, currency),
		"global_assets": money.NewAmount(wealth.GlobalAssets, currency),
		"skipped":       wealth.Skipped,
	})
}

// HandleListAssets handles GET /api/assets
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.service.ListGlobalAssets(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Could not load assets")
		return
	}
	h.writeJSON(w, http.StatusOK, assets)
}

// HandleAddAsset handles POST /api/assets
func (h *Handler) HandleAddAsset(w http.ResponseWriter, r *http.Request) {
	var in portfolio.GlobalAssetInput
	if !h.decode(w, r, &in) {
		return
	}

	asset, err := h.service.AddGlobalAsset(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, err, "Could not save asset")
		return
	}
	h.writeJSON(w, http.StatusCreated, asset)
}

// HandleUpdateAsset handles PUT /api/assets/{id}
func (h *Handler) HandleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	var in portfolio.GlobalAssetInput
	if !h.decode(w, r, &in) {
		return
	}

	asset, err := h.service.UpdateGlobalAsset(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeServiceError(w, err, "Could not save asset")
		return
	}
	h.writeJSON(w, http.StatusOK, asset)
}

// HandleDeleteAsset handles DELETE /api/assets/{id}
func (h *Handler) HandleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteGlobalAsset(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "Could not delete asset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeServiceError maps service errors to HTTP statuses. Only validation
// messages are echoed to the client.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidEvent):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg(message)
		http.Error(w, message, http.StatusInternalServerError)
	}
}

// writeJSON wraps data in the standard envelope
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
