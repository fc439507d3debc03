package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/oyunlab/quizgrid/go/internal/models"
	"github.com/oyunlab/quizgrid/go/internal/outbox"
)

// DefaultRating is assumed for players who join without a rating.
const DefaultRating = 1200

// MaxRating bounds what a client may claim as its rating.
const MaxRating = 10000

// Config holds the matchmaking tunables. The rating window starts at
// BaseWindow and grows by WindowStep for every WidenEvery a candidate has
// been waiting, so long waits trade match quality for match speed.
type Config struct {
	BaseWindow  int
	WindowStep  int
	WidenEvery  time.Duration
	MaxWait     time.Duration
	ScanLimit   int
	DefaultMode string
}

// DefaultConfig mirrors the tuning the matchmaker launched with.
func DefaultConfig() Config {
	return Config{
		BaseWindow:  150,
		WindowStep:  50,
		WidenEvery:  10 * time.Second,
		MaxWait:     60 * time.Second,
		ScanLimit:   50,
		DefaultMode: "ranked",
	}
}

// JoinState is the outcome of a join call.
type JoinState string

const (
	// JoinStateQueued means no compatible opponent was waiting; the player
	// is now in the queue.
	JoinStateQueued JoinState = "queued"
	// JoinStateMatched means pairing succeeded and a new match exists.
	JoinStateMatched JoinState = "matched"
	// JoinStateResumed means the player already has an active match and
	// should reconnect to it instead of queueing.
	JoinStateResumed JoinState = "resumed"
)

// JoinResult tells the client what happened and, for matched/resumed, where
// to go.
type JoinResult struct {
	State        JoinState            `json:"state"`
	MatchID      *uuid.UUID           `json:"match_id,omitempty"`
	Role         models.Role          `json:"role,omitempty"`
	OpponentID   *uuid.UUID           `json:"opponent_id,omitempty"`
	TurnPlayer   *uuid.UUID           `json:"turn_player,omitempty"`
	TurnDeadline *time.Time           `json:"turn_deadline,omitempty"`
	Board        *[9]models.BoardCell `json:"board,omitempty"`
}

// PickFunc chooses an opponent from the locked candidate set, oldest first.
// Returning nil means nobody is compatible yet.
type PickFunc func(candidates []models.QueueEntry) *models.QueueEntry

// BuildFunc constructs the match record and its creation events for a
// chosen pair. Seat A is the waiting player, seat B the joiner.
type BuildFunc func(playerA, playerB uuid.UUID) (*models.Match, []outbox.Pending, error)
