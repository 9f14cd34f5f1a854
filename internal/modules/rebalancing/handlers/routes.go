package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all rebalancing routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/rebalancing", func(r chi.Router) {
		r.Post("/trigger", h.HandleTrigger)
		r.Get("/status", h.HandleStatus)
		r.Get("/compliance", h.HandleCompliance)
		r.Get("/history", h.HandleHistory)

		r.Post("/events/{id}/approve", h.HandleApprove)
		r.Post("/events/{id}/reject", h.HandleReject)
		r.Post("/events/{id}/execute", h.HandleExecute)
	})
}
