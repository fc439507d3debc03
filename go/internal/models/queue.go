package models

import (
	"time"

	"github.com/google/uuid"
)

// QueueEntry is a player waiting to be paired. A player has at most one
// entry across all modes at any time.
type QueueEntry struct {
	PlayerID uuid.UUID `json:"player_id"`
	Rating   int       `json:"rating"`
	Mode     string    `json:"mode"`
	JoinedAt time.Time `json:"joined_at"`
}
