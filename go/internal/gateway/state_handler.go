package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/oyunlab/quizgrid/go/internal/apperr"
)

// StateHandler serves the reconnect snapshot endpoints.
type StateHandler struct {
	provider *StateProvider
}

func NewStateHandler(provider *StateProvider) *StateHandler {
	return &StateHandler{provider: provider}
}

// HandleMatchState handles GET /state/match?match_id=...
func (h *StateHandler) HandleMatchState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	matchID, err := uuid.Parse(r.URL.Query().Get("match_id"))
	if err != nil {
		http.Error(w, "invalid match_id format", http.StatusBadRequest)
		return
	}

	state, err := h.provider.MatchState(r.Context(), matchID)
	if err != nil {
		code := apperr.CodeOf(err)
		if code == apperr.CodeNotFound {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("match_id", matchID.String()).Msg("failed to get match state")
		http.Error(w, "failed to get match state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode match state response")
	}
}

// HandleActiveMatch handles GET /state/active-match?player_id=...
func (h *StateHandler) HandleActiveMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	playerID, err := uuid.Parse(r.URL.Query().Get("player_id"))
	if err != nil {
		http.Error(w, "invalid player_id format", http.StatusBadRequest)
		return
	}

	resp, err := h.provider.ActiveMatchFor(r.Context(), playerID)
	if err != nil {
		log.Error().Err(err).Str("player_id", playerID.String()).Msg("failed to get active match")
		http.Error(w, "failed to get active match", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode active match response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes.
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/state/match", h.HandleMatchState)
	mux.HandleFunc("/state/active-match", h.HandleActiveMatch)
}
