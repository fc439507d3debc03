// Package board holds the pure rules of the 3x3 quiz board. Both the
// authoritative match engine and the client-side offline simulator evaluate
// moves through this package, so the two can never drift apart.
package board

import (
	"errors"
	"math/rand"

	"github.com/google/uuid"
	"github.com/oyunlab/quizgrid/go/internal/models"
)

// WinTriples are the eight lines that decide a match, row-major.
var WinTriples = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

var (
	ErrCellOutOfRange = errors.New("cell index out of range")
	ErrCellNotEmpty   = errors.New("cell is not empty")
	ErrCellNotPending = errors.New("cell is not pending")
)

// Generate builds a fresh board, sampling one category per cell
// independently at random (with replacement) from the given set.
func Generate(categories []string, rng *rand.Rand) [9]models.BoardCell {
	var b [9]models.BoardCell
	for i := range b {
		b[i] = models.BoardCell{
			Category: categories[rng.Intn(len(categories))],
			State:    models.CellState{Phase: models.CellEmpty},
		}
	}
	return b
}

// AssignQuestion moves a cell from empty to pending and records the
// question it is gated on.
func AssignQuestion(b *[9]models.BoardCell, cell int, questionID uuid.UUID) error {
	if cell < 0 || cell > 8 {
		return ErrCellOutOfRange
	}
	if b[cell].State.Phase != models.CellEmpty {
		return ErrCellNotEmpty
	}
	qid := questionID
	b[cell].QuestionID = &qid
	b[cell].State = models.CellState{Phase: models.CellPending}
	return nil
}

// Resolve moves a pending cell to its terminal answered state. Terminal
// states never change again.
func Resolve(b *[9]models.BoardCell, cell int, role models.Role, correct bool) error {
	if cell < 0 || cell > 8 {
		return ErrCellOutOfRange
	}
	if b[cell].State.Phase != models.CellPending {
		return ErrCellNotPending
	}
	outcome := models.OutcomeWrong
	if correct {
		outcome = models.OutcomeCorrect
	}
	b[cell].State = models.CellState{Phase: models.CellAnswered, Role: role, Outcome: outcome}
	return nil
}

// WinningRole scans the eight triples and returns the role, if any, that
// owns a fully correct line.
func WinningRole(b [9]models.BoardCell) (models.Role, bool) {
	for _, role := range []models.Role{models.RoleA, models.RoleB} {
		for _, t := range WinTriples {
			if b[t[0]].State.CorrectFor(role) &&
				b[t[1]].State.CorrectFor(role) &&
				b[t[2]].State.CorrectFor(role) {
				return role, true
			}
		}
	}
	return "", false
}

// Full reports whether every cell has reached a terminal state.
func Full(b [9]models.BoardCell) bool {
	for i := range b {
		if !b[i].State.Answered() {
			return false
		}
	}
	return true
}

// Score counts the cells answered correctly by role.
func Score(b [9]models.BoardCell, role models.Role) int {
	n := 0
	for i := range b {
		if b[i].State.CorrectFor(role) {
			n++
		}
	}
	return n
}

// Evaluate applies the end-of-match rules: a completed triple wins even
// with empty cells remaining; a full board with no triple goes to the role
// with strictly more correct cells, else draw.
func Evaluate(b [9]models.BoardCell) (models.MatchStatus, *models.Winner) {
	if role, ok := WinningRole(b); ok {
		w := models.WinnerForRole(role)
		return models.MatchStatusFinished, &w
	}
	if Full(b) {
		scoreA, scoreB := Score(b, models.RoleA), Score(b, models.RoleB)
		var w models.Winner
		switch {
		case scoreA > scoreB:
			w = models.WinnerA
		case scoreB > scoreA:
			w = models.WinnerB
		default:
			w = models.WinnerDraw
		}
		return models.MatchStatusFinished, &w
	}
	return models.MatchStatusActive, nil
}

// NextTurn decides who holds the turn after an answer: a correct answer
// keeps the turn, a wrong one passes it.
func NextTurn(current models.Role, correct bool) models.Role {
	if correct {
		return current
	}
	return current.Other()
}
