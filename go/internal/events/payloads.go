package events

import (
	"time"
)

// Event payload types shared between the match engine, the outbox relay
// and the websocket gateway.

// Event type names as they appear in outbox rows and bus subjects.
const (
	TypeMatchCreated     = "MatchCreated"
	TypeQuestionAssigned = "QuestionAssigned"
	TypeMoveApplied      = "MoveApplied"
	TypeTurnExpired      = "TurnExpired"
	TypeMatchFinished    = "MatchFinished"
)

// FinishReason explains why a match reached its terminal state.
type FinishReason string

const (
	FinishReasonCompleted FinishReason = "completed"
	FinishReasonForfeit   FinishReason = "forfeit"
	FinishReasonTimeout   FinishReason = "timeout"
)

// MatchCreatedPayload is emitted when pairing produces a new match.
type MatchCreatedPayload struct {
	MatchID      string    `json:"match_id"`
	PlayerA      string    `json:"player_a"`
	PlayerB      string    `json:"player_b"`
	FirstTurn    string    `json:"first_turn"`
	TurnDeadline time.Time `json:"turn_deadline"`
	Categories   [9]string `json:"categories"`
	CreatedAt    time.Time `json:"created_at"`
}

// QuestionAssignedPayload is emitted when a cell moves to pending.
type QuestionAssignedPayload struct {
	MatchID      string    `json:"match_id"`
	CellIndex    int       `json:"cell_index"`
	Category     string    `json:"category"`
	QuestionID   string    `json:"question_id"`
	AskedPlayer  string    `json:"asked_player"`
	TurnDeadline time.Time `json:"turn_deadline"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// MoveAppliedPayload is emitted for every graded answer, including the
// auto-wrong answer applied on turn expiry.
type MoveAppliedPayload struct {
	MatchID      string     `json:"match_id"`
	CellIndex    int        `json:"cell_index"`
	Player       string     `json:"player"`
	Role         string     `json:"role"`
	Correct      bool       `json:"correct"`
	NextTurn     string     `json:"next_turn"`
	TurnDeadline *time.Time `json:"turn_deadline,omitempty"`
	Status       string     `json:"status"`
	Winner       string     `json:"winner,omitempty"`
	AppliedAt    time.Time  `json:"applied_at"`
}

// TurnExpiredPayload is emitted when the sweeper times out a turn that had
// no pending question, which simply passes the turn.
type TurnExpiredPayload struct {
	MatchID      string    `json:"match_id"`
	Player       string    `json:"player"`
	NextTurn     string    `json:"next_turn"`
	TurnDeadline time.Time `json:"turn_deadline"`
	ExpiredAt    time.Time `json:"expired_at"`
}

// MatchFinishedPayload is emitted exactly once per match.
type MatchFinishedPayload struct {
	MatchID    string       `json:"match_id"`
	Winner     string       `json:"winner"`
	Reason     FinishReason `json:"reason"`
	ScoreA     int          `json:"score_a"`
	ScoreB     int          `json:"score_b"`
	FinishedAt time.Time    `json:"finished_at"`
}
