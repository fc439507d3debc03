package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a persisted outbox row awaiting (or past) publication.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	MatchID   uuid.UUID       `json:"match_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// Pending is an event built by the engine before the identity and row
// bookkeeping are attached inside the writing transaction.
type Pending struct {
	EventType string
	Payload   json.RawMessage
}

// Envelope is the wire format published to the bus and consumed by the
// gateway.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	MatchID   string          `json:"matchId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}
