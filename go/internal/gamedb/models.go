package gamedb

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type MmQueue struct {
	PlayerID uuid.UUID
	Rating   int32
	Mode     string
	JoinedAt time.Time
}

type Match struct {
	ID           uuid.UUID
	PlayerA      uuid.UUID
	PlayerB      uuid.UUID
	Board        json.RawMessage
	TurnPlayer   uuid.UUID
	TurnDeadline sql.NullTime
	Status       string
	Winner       sql.NullString
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserActiveMatch struct {
	PlayerID  uuid.UUID
	MatchID   uuid.UUID
	Role      string
	UpdatedAt time.Time
}

type QuestionBank struct {
	ID           uuid.UUID
	Category     string
	Difficulty   string
	Prompt       string
	Options      json.RawMessage
	CorrectIndex int32
	Metadata     pqtype.NullRawMessage
	CreatedAt    time.Time
}

type MatchOutbox struct {
	ID        uuid.UUID
	MatchID   uuid.UUID
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    sql.NullTime
}
