package match

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/oyunlab/quizgrid/go/internal/models"
	"github.com/oyunlab/quizgrid/go/internal/outbox"
)

// Repository-level sentinels. The app layer translates these into the
// operation error taxonomy.
var (
	// ErrNotFound means the match or pointer row does not exist.
	ErrNotFound = errors.New("match not found")
	// ErrVersionConflict means a conditional write lost a race; the caller
	// re-reads and retries.
	ErrVersionConflict = errors.New("match version conflict")
)

// Update is one conditional, all-or-nothing match mutation: the new state,
// the version it was computed from, and the outbox events that belong to
// the same transaction. ClearPointers additionally deletes both players'
// active-match pointers (set exactly when the match finishes).
type Update struct {
	MatchID       uuid.UUID
	ExpectVersion int64
	Board         [9]models.BoardCell
	TurnPlayer    uuid.UUID
	TurnDeadline  *time.Time
	Status        models.MatchStatus
	Winner        *models.Winner
	ClearPointers bool
	Events        []outbox.Pending
}

// NextDeadline is the soonest turn deadline across all active matches.
type NextDeadline struct {
	MatchID  uuid.UUID
	Deadline time.Time
}

// MoveResult is the response to a graded answer.
type MoveResult struct {
	Correct            bool               `json:"correct"`
	CorrectAnswerIndex int                `json:"correct_answer_index"`
	Status             models.MatchStatus `json:"game_status"`
	Winner             *models.Winner     `json:"winner,omitempty"`
	NextTurn           uuid.UUID          `json:"next_turn"`
}

// Config holds the engine tunables.
type Config struct {
	// Categories is the fixed set boards are generated from.
	Categories []string
	// AnswerWindow is how long the turn holder has to act after a deadline
	// reset.
	AnswerWindow time.Duration
}

// DefaultCategories is the category set the original question bank ships
// with.
var DefaultCategories = []string{
	"spor", "tarih", "coğrafya", "bilim", "sanat",
	"eğlence", "teknoloji", "edebiyat", "genel kültür", "yabancı dil",
}

// DefaultConfig returns the engine defaults: the stock categories and the
// 30 second answer window.
func DefaultConfig() Config {
	return Config{
		Categories:   DefaultCategories,
		AnswerWindow: 30 * time.Second,
	}
}
