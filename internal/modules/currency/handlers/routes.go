package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all currency routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/rates", h.HandleGetRates)
	r.Post("/rates/refresh", h.HandleRefreshRates) // refresh then revalue global assets
}
