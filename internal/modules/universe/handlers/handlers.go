// Package handlers provides HTTP handlers for the tradable universe.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/avramidis/optsentry/internal/modules/universe"
)

// Handler provides HTTP handlers for universe endpoints
type Handler struct {
	repo    *universe.Repository
	ranking *universe.RankingService
	log     zerolog.Logger
}

// NewHandler creates a new universe handler
func NewHandler(repo *universe.Repository, ranking *universe.RankingService, log zerolog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		ranking: ranking,
		log:     log.With().Str("handler", "universe").Logger(),
	}
}

// HandleGetAll handles GET /universe
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	securities, err := h.repo.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get universe")
		http.Error(w, "Failed to get universe", http.StatusInternalServerError)
		return
	}
	if securities == nil {
		securities = []universe.Security{}
	}
	writeJSON(w, h.log, securities)
}

// HandleUpsert handles POST /universe
func (h *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	var sec universe.Security
	if err := json.NewDecoder(r.Body).Decode(&sec); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if sec.Symbol == "" {
		http.Error(w, "Symbol is required", http.StatusBadRequest)
		return
	}

	if err := h.repo.Upsert(sec); err != nil {
		h.log.Error().Err(err).Str("symbol", sec.Symbol).Msg("Failed to upsert security")
		http.Error(w, "Failed to upsert security", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.log, map[string]string{"status": "saved"})
}

// HandleRefreshRankings handles POST /universe/rankings/refresh
func (h *Handler) HandleRefreshRankings(w http.ResponseWriter, r *http.Request) {
	rankings, err := h.ranking.Refresh()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to refresh sector rankings")
		http.Error(w, "Failed to refresh sector rankings", http.StatusInternalServerError)
		return
	}
	if rankings == nil {
		rankings = []universe.SectorRanking{}
	}
	writeJSON(w, h.log, rankings)
}

func writeJSON(w http.ResponseWriter, log zerolog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
