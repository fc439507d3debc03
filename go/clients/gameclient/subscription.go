package gameclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/oyunlab/quizgrid/go/internal/events"
	"github.com/oyunlab/quizgrid/go/internal/gateway"
)

// Subscription is a live WebSocket feed for one match. Events arrive on
// Updates; the embedded turn clock tracks the server deadline and, when the
// local player lets their own turn run out, concedes it with a no-answer
// move instead of waiting for the server sweep.
type Subscription struct {
	MatchID  uuid.UUID
	PlayerID uuid.UUID

	client *Client
	ws     *websocket.Conn
	clock  *TurnClock
	logger zerolog.Logger

	updates chan *gateway.GameEvent

	mu          sync.Mutex
	pendingCell int
	closed      bool
	closeOnce   sync.Once
}

// SubscriptionManager opens match subscriptions against the gateway.
type SubscriptionManager struct {
	wsBaseURL string
	client    *Client
	clock     clockwork.Clock
	logger    zerolog.Logger
}

func NewSubscriptionManager(wsBaseURL string, client *Client, clock clockwork.Clock, logger zerolog.Logger) *SubscriptionManager {
	return &SubscriptionManager{
		wsBaseURL: wsBaseURL,
		client:    client,
		clock:     clock,
		logger:    logger.With().Str("component", "gameclient").Logger(),
	}
}

// Subscribe dials the gateway and starts the read loop. The subscription
// stays alive until Close is called or the socket drops.
func (m *SubscriptionManager) Subscribe(ctx context.Context, matchID, playerID uuid.UUID) (*Subscription, error) {
	u, err := url.Parse(m.wsBaseURL + "/ws/match")
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	q := u.Query()
	q.Set("match_id", matchID.String())
	q.Set("player_id", playerID.String())
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	sub := &Subscription{
		MatchID:     matchID,
		PlayerID:    playerID,
		client:      m.client,
		ws:          ws,
		clock:       NewTurnClock(m.clock),
		logger:      m.logger.With().Stringer("match_id", matchID).Logger(),
		updates:     make(chan *gateway.GameEvent, 64),
		pendingCell: -1,
	}
	go sub.readLoop()
	return sub, nil
}

// Updates delivers the match events in arrival order. The channel closes
// when the subscription ends.
func (s *Subscription) Updates() <-chan *gateway.GameEvent {
	return s.updates
}

// Remaining exposes the local countdown for UI display.
func (s *Subscription) Remaining() time.Duration {
	return s.clock.Remaining()
}

// Close tears the subscription down: the socket closes and the turn clock
// stops, so no concede fires after detach.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.clock.Stop()
		_ = s.ws.Close()
	})
	return nil
}

func (s *Subscription) readLoop() {
	defer func() {
		s.Close()
		close(s.updates)
	}()

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.logger.Warn().Err(err).Msg("subscription read failed")
			}
			return
		}

		var event gateway.GameEvent
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.Warn().Err(err).Msg("malformed event frame")
			continue
		}

		s.track(&event)

		select {
		case s.updates <- &event:
		default:
			s.logger.Warn().Str("event_type", string(event.Type)).Msg("updates channel full, dropping event")
		}
	}
}

// track keeps the turn clock and pending-cell bookkeeping in sync with the
// event stream.
func (s *Subscription) track(event *gateway.GameEvent) {
	switch event.Type {
	case gateway.EventTypeMatchCreated:
		var p events.MatchCreatedPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return
		}
		s.armClock(p.FirstTurn, p.TurnDeadline)

	case gateway.EventTypeQuestionAssigned:
		var p events.QuestionAssignedPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return
		}
		s.mu.Lock()
		s.pendingCell = p.CellIndex
		s.mu.Unlock()
		s.armClock(p.AskedPlayer, p.TurnDeadline)

	case gateway.EventTypeMoveApplied:
		var p events.MoveAppliedPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return
		}
		s.mu.Lock()
		s.pendingCell = -1
		s.mu.Unlock()
		if p.Status != "active" || p.TurnDeadline == nil {
			s.clock.Stop()
			return
		}
		s.armClock(p.NextTurn, *p.TurnDeadline)

	case gateway.EventTypeTurnExpired:
		var p events.TurnExpiredPayload
		if err := json.Unmarshal(event.Data, &p); err != nil {
			return
		}
		s.mu.Lock()
		s.pendingCell = -1
		s.mu.Unlock()
		s.armClock(p.NextTurn, p.TurnDeadline)

	case gateway.EventTypeMatchFinished:
		s.clock.Stop()
	}
}

// armClock resets the countdown. Expiry only acts when it is the local
// player's turn with a question on the board.
func (s *Subscription) armClock(turnPlayer string, deadline time.Time) {
	ownTurn := turnPlayer == s.PlayerID.String()
	s.clock.Reset(deadline, func() {
		if !ownTurn {
			return
		}
		s.concedeTurn()
	})
}

// concedeTurn submits a no-answer move for the pending cell so the match
// advances immediately instead of waiting out the server sweep.
func (s *Subscription) concedeTurn() {
	s.mu.Lock()
	cell := s.pendingCell
	closed := s.closed
	s.mu.Unlock()
	if closed || cell < 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.client.SubmitMove(ctx, s.MatchID, cell, -1); err != nil {
		// The server may have expired the turn first; that is fine.
		s.logger.Debug().Err(err).Int("cell", cell).Msg("concede submit rejected")
	}
}
