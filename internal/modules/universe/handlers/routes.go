package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all universe routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/universe", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Post("/", h.HandleUpsert)
		r.Post("/rankings/refresh", h.HandleRefreshRankings)
	})
}
