package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies one of the two match seats.
type Role string

const (
	RoleA Role = "A"
	RoleB Role = "B"
)

// Other returns the opposing seat.
func (r Role) Other() Role {
	if r == RoleA {
		return RoleB
	}
	return RoleA
}

// MatchStatus defines the lifecycle state of a match.
type MatchStatus string

const (
	MatchStatusActive   MatchStatus = "active"
	MatchStatusFinished MatchStatus = "finished"
)

// Winner is the terminal result of a finished match.
type Winner string

const (
	WinnerA    Winner = "A"
	WinnerB    Winner = "B"
	WinnerDraw Winner = "draw"
)

// WinnerForRole converts a seat into its winner value.
func WinnerForRole(r Role) Winner {
	if r == RoleA {
		return WinnerA
	}
	return WinnerB
}

// CellPhase is the coarse position of a cell in its state machine.
type CellPhase string

const (
	CellEmpty    CellPhase = "empty"
	CellPending  CellPhase = "pending"
	CellAnswered CellPhase = "answered"
)

// CellOutcome records how an answered cell was resolved.
type CellOutcome string

const (
	OutcomeCorrect CellOutcome = "correct"
	OutcomeWrong   CellOutcome = "wrong"
)

// CellState models a board cell's state as a tagged variant rather than a
// flat string tag. Phase moves forward only: empty -> pending -> answered.
// Role and Outcome are meaningful only when Phase is answered.
type CellState struct {
	Phase   CellPhase
	Role    Role
	Outcome CellOutcome
}

// Answered reports whether the cell has reached its terminal state.
func (s CellState) Answered() bool { return s.Phase == CellAnswered }

// CorrectFor reports whether the cell was answered correctly by role.
func (s CellState) CorrectFor(r Role) bool {
	return s.Phase == CellAnswered && s.Role == r && s.Outcome == OutcomeCorrect
}

// MarshalJSON encodes the state using the wire tags the mobile clients
// already understand: "empty", "pending", "correct_A", "wrong_B", ...
func (s CellState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.wireTag())
}

func (s CellState) wireTag() string {
	switch s.Phase {
	case CellEmpty:
		return "empty"
	case CellPending:
		return "pending"
	default:
		return fmt.Sprintf("%s_%s", s.Outcome, s.Role)
	}
}

// UnmarshalJSON decodes the flat wire tag back into the tagged form.
func (s *CellState) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	switch tag {
	case "empty":
		*s = CellState{Phase: CellEmpty}
	case "pending":
		*s = CellState{Phase: CellPending}
	case "correct_A":
		*s = CellState{Phase: CellAnswered, Role: RoleA, Outcome: OutcomeCorrect}
	case "correct_B":
		*s = CellState{Phase: CellAnswered, Role: RoleB, Outcome: OutcomeCorrect}
	case "wrong_A":
		*s = CellState{Phase: CellAnswered, Role: RoleA, Outcome: OutcomeWrong}
	case "wrong_B":
		*s = CellState{Phase: CellAnswered, Role: RoleB, Outcome: OutcomeWrong}
	default:
		return fmt.Errorf("unknown cell state %q", tag)
	}
	return nil
}

// String returns the wire tag, which doubles as a readable debug form.
func (s CellState) String() string { return s.wireTag() }

// BoardCell is one of the nine quiz-gated squares. The category is fixed at
// match creation; the question is assigned when the cell is first requested.
type BoardCell struct {
	Category   string     `json:"cat"`
	QuestionID *uuid.UUID `json:"qid"`
	State      CellState  `json:"state"`
}

// Players holds the two participants keyed by seat.
type Players struct {
	A uuid.UUID `json:"A"`
	B uuid.UUID `json:"B"`
}

// Role returns the seat occupied by playerID, or false if the player is not
// a participant.
func (p Players) Role(playerID uuid.UUID) (Role, bool) {
	switch playerID {
	case p.A:
		return RoleA, true
	case p.B:
		return RoleB, true
	}
	return "", false
}

// ByRole returns the player occupying the given seat.
func (p Players) ByRole(r Role) uuid.UUID {
	if r == RoleA {
		return p.A
	}
	return p.B
}

// Match is the authoritative aggregate for one game. It is mutated only by
// the match engine; Version backs optimistic concurrency on every write.
type Match struct {
	ID           uuid.UUID    `json:"id"`
	Players      Players      `json:"players"`
	Board        [9]BoardCell `json:"board"`
	TurnPlayer   uuid.UUID    `json:"turn_player"`
	TurnDeadline *time.Time   `json:"turn_deadline,omitempty"`
	Status       MatchStatus  `json:"status"`
	Winner       *Winner      `json:"winner,omitempty"`
	Version      int64        `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TurnRole returns the seat currently on turn.
func (m *Match) TurnRole() Role {
	if m.TurnPlayer == m.Players.A {
		return RoleA
	}
	return RoleB
}

// ActiveMatch is the per-player pointer to their current match. It exists
// exactly while the match is active and enables reconnect/resume.
type ActiveMatch struct {
	PlayerID  uuid.UUID `json:"player_id"`
	MatchID   uuid.UUID `json:"match_id"`
	Role      Role      `json:"role"`
	UpdatedAt time.Time `json:"updated_at"`
}
