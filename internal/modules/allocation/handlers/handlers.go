// Package handlers provides HTTP handlers for allocation rule management.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/avramidis/optsentry/internal/domain"
	"github.com/avramidis/optsentry/internal/modules/allocation"
)

// Handler provides HTTP handlers for allocation endpoints
type Handler struct {
	repo *allocation.Repository
	log  zerolog.Logger
}

// NewHandler creates a new allocation handler
func NewHandler(repo *allocation.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "allocation").Logger(),
	}
}

// HandleGetRules handles GET /allocation/rules
func (h *Handler) HandleGetRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.repo.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get allocation rules")
		http.Error(w, "Failed to get allocation rules", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.log, rules)
}

// HandleGetRulesByAxis handles GET /allocation/rules/{axis}
func (h *Handler) HandleGetRulesByAxis(w http.ResponseWriter, r *http.Request) {
	axis := chi.URLParam(r, "axis")
	if !domain.ValidAxis(axis) {
		http.Error(w, "Unknown axis", http.StatusBadRequest)
		return
	}

	rules, err := h.repo.GetByAxis(domain.Axis(axis))
	if err != nil {
		h.log.Error().Err(err).Str("axis", axis).Msg("Failed to get rules for axis")
		http.Error(w, "Failed to get rules for axis", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.log, rules)
}

// HandleUpsertRule handles POST /allocation/rules
func (h *Handler) HandleUpsertRule(w http.ResponseWriter, r *http.Request) {
	var rule allocation.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.repo.Upsert(rule); err != nil {
		h.log.Warn().Err(err).
			Str("axis", string(rule.Axis)).
			Str("category", rule.Category).
			Msg("Rule upsert rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h.log, map[string]string{"status": "saved"})
}

type bulkResponse struct {
	Saved  int                    `json:"saved"`
	Errors []allocation.RuleError `json:"errors"`
}

// HandleBulkUpsert handles PUT /allocation/rules. Invalid rules are
// reported per rule, valid ones in the same batch are still saved.
func (h *Handler) HandleBulkUpsert(w http.ResponseWriter, r *http.Request) {
	var rules []allocation.Rule
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, ruleErrors := h.repo.BulkUpsert(rules)
	if ruleErrors == nil {
		ruleErrors = []allocation.RuleError{}
	}
	writeJSON(w, h.log, bulkResponse{Saved: saved, Errors: ruleErrors})
}

// HandleDeleteRule handles DELETE /allocation/rules/{axis}/{category}
func (h *Handler) HandleDeleteRule(w http.ResponseWriter, r *http.Request) {
	axis := chi.URLParam(r, "axis")
	category := chi.URLParam(r, "category")
	if !domain.ValidAxis(axis) || category == "" {
		http.Error(w, "Axis and category are required", http.StatusBadRequest)
		return
	}

	if err := h.repo.Delete(domain.Axis(axis), category); err != nil {
		h.log.Error().Err(err).Str("axis", axis).Str("category", category).Msg("Failed to delete rule")
		http.Error(w, "Failed to delete rule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.log, map[string]string{"status": "deleted"})
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
