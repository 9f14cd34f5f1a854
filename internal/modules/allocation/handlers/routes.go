package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all allocation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/allocation", func(r chi.Router) {
		r.Get("/rules", h.HandleGetRules)
		r.Post("/rules", h.HandleUpsertRule)
		r.Put("/rules", h.HandleBulkUpsert)
		r.Get("/rules/{axis}", h.HandleGetRulesByAxis)
		r.Delete("/rules/{axis}/{category}", h.HandleDeleteRule)
	})
}
