package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes. Other modules add their own
// /portfolios/{id}/... routes on the same router, so patterns stay flat.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolios", h.HandleListPortfolios)
	r.Post("/portfolios", h.HandleCreatePortfolio)
	r.Get("/portfolios/{id}", h.HandleGetPortfolio)
	r.Patch("/portfolios/{id}", h.HandleRenamePortfolio)
	r.Delete("/portfolios/{id}", h.HandleDeletePortfolio)

	r.Get("/portfolios/{id}/positions", h.HandleGetPositions)
	r.Post("/portfolios/{id}/positions", h.HandleAddPosition)
	r.Get("/portfolios/{id}/totals", h.HandleGetTotals)
	r.Get("/portfolios/{id}/wealth", h.HandleGetWealth) // ?view=investments|total

	r.Get("/positions/{id}", h.HandleGetPosition)
	r.Put("/positions/{id}", h.HandleUpdatePosition)
	r.Delete("/positions/{id}", h.HandleDeletePosition)
	r.Put("/positions/{id}/price", h.HandleUpdatePrice)
	r.Post("/positions/{id}/events", h.HandleApplyEvent) // bonus, split, reverse_split, amortization

	r.Get("/assets", h.HandleListAssets)
	r.Post("/assets", h.HandleAddAsset)
	r.Put("/assets/{id}", h.HandleUpdateAsset)
	r.Delete("/assets/{id}", h.HandleDeleteAsset)
}
