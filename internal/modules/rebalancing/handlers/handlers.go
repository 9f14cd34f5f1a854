// Package handlers provides HTTP handlers for rebalancing operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/avramidis/optsentry/internal/modules/rebalancing"
)

// Handler provides HTTP handlers for rebalancing endpoints
type Handler struct {
	service *rebalancing.Service
	archive *rebalancing.Archive
	log     zerolog.Logger
}

// NewHandler creates a new rebalancing handler
func NewHandler(service *rebalancing.Service, archive *rebalancing.Archive, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		archive: archive,
		log:     log.With().Str("handler", "rebalancing").Logger(),
	}
}

type triggerRequest struct {
	Reason string `json:"reason"`
}

// HandleTrigger handles POST /rebalancing/trigger
func (h *Handler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	reason := "manual"
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Reason != "" {
		reason = req.Reason
	}

	event, err := h.service.Trigger(reason)
	if err != nil {
		h.log.Error().Err(err).Msg("Rebalancing pass failed")
		http.Error(w, "Rebalancing pass failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.log, event)
}

// HandleStatus handles GET /rebalancing/status. Before the first pass it
// returns an explicit empty result instead of an error.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.Current()
	if errors.Is(err, rebalancing.ErrNoEvent) {
		writeJSON(w, h.log, map[string]any{
			"has_event": false,
			"message":   "no recommendations yet",
		})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get current event")
		http.Error(w, "Failed to get current event", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.log, map[string]any{
		"has_event": true,
		"event":     event,
	})
}

// HandleApprove handles POST /rebalancing/events/{id}/approve
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Approve)
}

// HandleReject handles POST /rebalancing/events/{id}/reject
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.Reject)
}

// HandleExecute handles POST /rebalancing/events/{id}/execute
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, h.service.MarkExecuted)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, fn func(string) (*rebalancing.Event, error)) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Event ID is required", http.StatusBadRequest)
		return
	}
	event, err := fn(id)
	if errors.Is(err, rebalancing.ErrNoEvent) {
		http.Error(w, "No current event", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Warn().Err(err).Str("event_id", id).Msg("Event transition rejected")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, h.log, event)
}

// HandleCompliance handles GET /rebalancing/compliance
func (h *Handler) HandleCompliance(w http.ResponseWriter, r *http.Request) {
	checks, err := h.service.Compliance()
	if err != nil {
		h.log.Error().Err(err).Msg("Compliance evaluation failed")
		http.Error(w, "Compliance evaluation failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.log, checks)
}

// HandleHistory handles GET /rebalancing/history
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, h.log, []rebalancing.Event{})
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	events, err := h.archive.Recent(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load event history")
		http.Error(w, "Failed to load event history", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []rebalancing.Event{}
	}
	writeJSON(w, h.log, events)
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
