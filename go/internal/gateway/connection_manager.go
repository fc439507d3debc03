package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager owns the live WebSocket connections, pooled per match.
type ConnectionManager struct {
	matchConnections map[uuid.UUID]map[*Connection]bool
	mu               sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
}

// Connection is one client socket subscribed to one match.
type Connection struct {
	ID       string
	PlayerID uuid.UUID
	MatchID  uuid.UUID
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time

	// cancel tears down per-connection goroutines (presence keepalive).
	cancel context.CancelFunc
}

// ConnectionConfig holds socket tuning.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage targets a match pool, optionally narrowed to one player.
type BroadcastMessage struct {
	MatchID  uuid.UUID
	Event    *GameEvent
	PlayerID string
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		matchConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes broadcast messages until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket subscribed to
// matchID. onClose runs exactly once when the connection tears down.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, playerID, matchID uuid.UUID, onClose context.CancelFunc) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		MatchID:     matchID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
		cancel:      onClose,
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("player_id", playerID.String()).
		Str("match_id", matchID.String()).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.matchConnections[conn.MatchID] == nil {
		cm.matchConnections[conn.MatchID] = make(map[*Connection]bool)
	}
	cm.matchConnections[conn.MatchID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("match_id", conn.MatchID.String()).
		Int("total_connections", len(cm.matchConnections[conn.MatchID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.matchConnections[conn.MatchID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			close(conn.Send)
			if conn.cancel != nil {
				conn.cancel()
			}

			if len(connections) == 0 {
				delete(cm.matchConnections, conn.MatchID)
			}

			log.Info().
				Str("connection_id", conn.ID).
				Str("player_id", conn.PlayerID.String()).
				Str("match_id", conn.MatchID.String()).
				Msg("connection unregistered")
		}
	}
}

// BroadcastToMatch sends an event to every socket watching the match.
func (cm *ConnectionManager) BroadcastToMatch(matchID uuid.UUID, event *GameEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{MatchID: matchID, Event: event}:
	default:
		log.Warn().Str("match_id", matchID.String()).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastToPlayer narrows delivery to one participant's sockets.
func (cm *ConnectionManager) BroadcastToPlayer(matchID uuid.UUID, playerID string, event *GameEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{MatchID: matchID, Event: event, PlayerID: playerID}:
	default:
		log.Warn().
			Str("match_id", matchID.String()).
			Str("player_id", playerID).
			Msg("broadcast channel full, dropping player message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.matchConnections[message.MatchID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	var targets []*Connection
	for conn := range connections {
		if message.PlayerID != "" && conn.PlayerID.String() != message.PlayerID {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- eventData:
		default:
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Str("player_id", conn.PlayerID.String()).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("match_id", message.MatchID.String()).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// GetConnectionStats reports pool sizes for the health endpoint.
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	total := 0
	matchCounts := make(map[string]int)
	for matchID, connections := range cm.matchConnections {
		total += len(connections)
		matchCounts[matchID.String()] = len(connections)
	}

	return map[string]interface{}{
		"total_connections": total,
		"active_matches":    len(cm.matchConnections),
		"match_connections": matchCounts,
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

func (c *Connection) handleClientMessage(message []byte) {
	// Clients only listen today; log anything they send.
	log.Debug().
		Str("connection_id", c.ID).
		Str("player_id", c.PlayerID.String()).
		RawJSON("message", message).
		Msg("received client message")
}
