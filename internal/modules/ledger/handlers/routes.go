package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all ledger routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolios/{id}/movements", h.HandleGetPortfolioMovements)
	r.Get("/positions/{id}/movements", h.HandleGetPositionMovements)
}
