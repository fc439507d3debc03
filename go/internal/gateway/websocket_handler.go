package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Presence marks players online while they hold a socket.
type Presence interface {
	KeepAlive(ctx context.Context, playerID uuid.UUID, interval time.Duration)
}

// WebSocketHandler upgrades match subscription requests.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	matches           MatchReader
	presence          Presence
}

func NewWebSocketHandler(cm *ConnectionManager, matches MatchReader, presence Presence) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		matches:           matches,
		presence:          presence,
	}
}

// HandleMatchConnection handles WebSocket connections for a specific match.
// Only the two participants may subscribe.
func (h *WebSocketHandler) HandleMatchConnection(w http.ResponseWriter, r *http.Request) {
	matchIDStr := r.URL.Query().Get("match_id")
	if matchIDStr == "" {
		http.Error(w, "match_id is required", http.StatusBadRequest)
		return
	}
	matchID, err := uuid.Parse(matchIDStr)
	if err != nil {
		http.Error(w, "invalid match_id format", http.StatusBadRequest)
		return
	}

	playerIDStr := r.URL.Query().Get("player_id")
	playerID, err := uuid.Parse(playerIDStr)
	if err != nil {
		http.Error(w, "invalid player_id format", http.StatusBadRequest)
		return
	}

	m, err := h.matches.Get(r.Context(), matchID)
	if err != nil {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}
	if _, ok := m.Players.Role(playerID); !ok {
		http.Error(w, "player is not in this match", http.StatusForbidden)
		return
	}

	// The presence beacon lives as long as the socket; the connection
	// manager cancels this context on teardown.
	connCtx, cancel := context.WithCancel(context.Background())
	if h.presence != nil {
		go h.presence.KeepAlive(connCtx, playerID, 0)
	}

	if err := h.connectionManager.UpgradeConnection(w, r, playerID, matchID, cancel); err != nil {
		cancel()
		log.Error().
			Err(err).
			Str("match_id", matchID.String()).
			Str("player_id", playerID.String()).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
}

// HandleConnectionStats returns statistics about active connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := h.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"total_connections": stats["total_connections"],
		"active_matches":    stats["active_matches"],
	}); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/match", h.HandleMatchConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
