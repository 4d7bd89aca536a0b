package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all snapshot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolios/{id}/history", h.HandleGetHistory)
	r.Post("/snapshots/run", h.HandleRunSnapshot)
}
