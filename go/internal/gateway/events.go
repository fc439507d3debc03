package gateway

import (
	"encoding/json"
	"time"

	"github.com/oyunlab/quizgrid/go/internal/events"
)

// GameEvent is the frame delivered over the WebSocket.
type GameEvent struct {
	ID        string          `json:"id"`
	MatchID   string          `json:"match_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType mirrors the outbox event names the engine emits.
type EventType string

const (
	EventTypeMatchCreated     EventType = "MatchCreated"
	EventTypeQuestionAssigned EventType = "QuestionAssigned"
	EventTypeMoveApplied      EventType = "MoveApplied"
	EventTypeTurnExpired      EventType = "TurnExpired"
	EventTypeMatchFinished    EventType = "MatchFinished"
)

// ParseEventPayload decodes the event data into its typed payload.
func ParseEventPayload(event *GameEvent) (interface{}, error) {
	switch event.Type {
	case EventTypeMatchCreated:
		var payload events.MatchCreatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeQuestionAssigned:
		var payload events.QuestionAssignedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeMoveApplied:
		var payload events.MoveAppliedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTurnExpired:
		var payload events.TurnExpiredPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeMatchFinished:
		var payload events.MatchFinishedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil
	}
}
