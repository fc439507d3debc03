package board

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oyunlab/quizgrid/go/internal/models"
)

var testCategories = []string{"spor", "tarih", "bilim"}

func newTestBoard(t *testing.T) [9]models.BoardCell {
	t.Helper()
	return Generate(testCategories, rand.New(rand.NewSource(1)))
}

// play drives a cell through assign+resolve in one step.
func play(t *testing.T, b *[9]models.BoardCell, cell int, role models.Role, correct bool) {
	t.Helper()
	require.NoError(t, AssignQuestion(b, cell, uuid.New()))
	require.NoError(t, Resolve(b, cell, role, correct))
}

func TestGenerateUsesGivenCategories(t *testing.T) {
	b := newTestBoard(t)
	for i, cell := range b {
		assert.Contains(t, testCategories, cell.Category, "cell %d", i)
		assert.Equal(t, models.CellEmpty, cell.State.Phase)
		assert.Nil(t, cell.QuestionID)
	}
}

func TestAssignQuestionRejectsNonEmptyCell(t *testing.T) {
	b := newTestBoard(t)
	require.NoError(t, AssignQuestion(&b, 4, uuid.New()))
	assert.ErrorIs(t, AssignQuestion(&b, 4, uuid.New()), ErrCellNotEmpty)
	assert.ErrorIs(t, AssignQuestion(&b, 9, uuid.New()), ErrCellOutOfRange)
	assert.ErrorIs(t, AssignQuestion(&b, -1, uuid.New()), ErrCellOutOfRange)
}

func TestResolveRequiresPendingCell(t *testing.T) {
	b := newTestBoard(t)
	assert.ErrorIs(t, Resolve(&b, 0, models.RoleA, true), ErrCellNotPending)

	play(t, &b, 0, models.RoleA, true)
	// Terminal cells never change again.
	assert.ErrorIs(t, Resolve(&b, 0, models.RoleB, false), ErrCellNotPending)
	assert.True(t, b[0].State.CorrectFor(models.RoleA))
}

func TestWrongAnswerLocksCellForBoth(t *testing.T) {
	b := newTestBoard(t)
	play(t, &b, 3, models.RoleA, false)

	st := b[3].State
	assert.True(t, st.Answered())
	assert.False(t, st.CorrectFor(models.RoleA))
	assert.False(t, st.CorrectFor(models.RoleB))
	assert.ErrorIs(t, AssignQuestion(&b, 3, uuid.New()), ErrCellNotEmpty)
}

func TestWinningRoleDetectsAllTriples(t *testing.T) {
	for _, triple := range WinTriples {
		b := newTestBoard(t)
		for _, cell := range triple {
			play(t, &b, cell, models.RoleB, true)
		}
		role, ok := WinningRole(b)
		require.True(t, ok, "triple %v", triple)
		assert.Equal(t, models.RoleB, role)
	}
}

func TestEvaluateTripleWinsWithEmptyCellsLeft(t *testing.T) {
	b := newTestBoard(t)
	play(t, &b, 0, models.RoleA, true)
	play(t, &b, 1, models.RoleA, true)
	play(t, &b, 2, models.RoleA, true)

	status, winner := Evaluate(b)
	assert.Equal(t, models.MatchStatusFinished, status)
	require.NotNil(t, winner)
	assert.Equal(t, models.WinnerA, *winner)
}

func TestEvaluateFullBoardMajority(t *testing.T) {
	// A takes four cells, B takes two, three are wrong for everyone.
	// No triple: A gets 0,1,3,5; B gets 4,8; wrong cells 2,6,7.
	b := newTestBoard(t)
	for _, cell := range []int{0, 1, 3, 5} {
		play(t, &b, cell, models.RoleA, true)
	}
	for _, cell := range []int{4, 8} {
		play(t, &b, cell, models.RoleB, true)
	}
	// Avoid 0,1 + anything completing a row for A.
	play(t, &b, 2, models.RoleA, false)
	play(t, &b, 6, models.RoleB, false)
	play(t, &b, 7, models.RoleA, false)

	require.True(t, Full(b))
	_, tripleExists := WinningRole(b)
	require.False(t, tripleExists)

	status, winner := Evaluate(b)
	assert.Equal(t, models.MatchStatusFinished, status)
	require.NotNil(t, winner)
	assert.Equal(t, models.WinnerA, *winner)
}

func TestEvaluateFullBoardEqualScoresIsDraw(t *testing.T) {
	// Two correct cells each, rest wrong, no triple.
	b := newTestBoard(t)
	play(t, &b, 0, models.RoleA, true)
	play(t, &b, 5, models.RoleA, true)
	play(t, &b, 2, models.RoleB, true)
	play(t, &b, 3, models.RoleB, true)
	for _, cell := range []int{1, 4, 6, 7, 8} {
		play(t, &b, cell, models.RoleA, false)
	}

	require.True(t, Full(b))
	status, winner := Evaluate(b)
	assert.Equal(t, models.MatchStatusFinished, status)
	require.NotNil(t, winner)
	assert.Equal(t, models.WinnerDraw, *winner)
}

func TestEvaluateActiveWhileCellsRemain(t *testing.T) {
	b := newTestBoard(t)
	play(t, &b, 0, models.RoleA, true)

	status, winner := Evaluate(b)
	assert.Equal(t, models.MatchStatusActive, status)
	assert.Nil(t, winner)
}

func TestNextTurnKeepOnCorrectFlipOnWrong(t *testing.T) {
	assert.Equal(t, models.RoleA, NextTurn(models.RoleA, true))
	assert.Equal(t, models.RoleB, NextTurn(models.RoleA, false))
	assert.Equal(t, models.RoleB, NextTurn(models.RoleB, true))
	assert.Equal(t, models.RoleA, NextTurn(models.RoleB, false))
}

func TestScoreCountsOnlyOwnCorrectCells(t *testing.T) {
	b := newTestBoard(t)
	play(t, &b, 0, models.RoleA, true)
	play(t, &b, 1, models.RoleA, false)
	play(t, &b, 2, models.RoleB, true)

	assert.Equal(t, 1, Score(b, models.RoleA))
	assert.Equal(t, 1, Score(b, models.RoleB))
}

// Randomized games must always terminate in a legal state: either a triple
// for the winner or a full board.
func TestRandomGamesReachLegalTerminalStates(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for game := 0; game < 200; game++ {
		b := Generate(testCategories, rng)
		turn := models.RoleA

		for {
			status, winner := Evaluate(b)
			if status == models.MatchStatusFinished {
				require.NotNil(t, winner)
				if *winner != models.WinnerDraw {
					role := models.RoleA
					if *winner == models.WinnerB {
						role = models.RoleB
					}
					_, hasTriple := WinningRole(b)
					assert.True(t, hasTriple || Full(b))
					if hasTriple {
						got, _ := WinningRole(b)
						assert.Equal(t, role, got)
					}
				} else {
					assert.True(t, Full(b))
					assert.Equal(t, Score(b, models.RoleA), Score(b, models.RoleB))
				}
				break
			}

			var empty []int
			for i := range b {
				if b[i].State.Phase == models.CellEmpty {
					empty = append(empty, i)
				}
			}
			require.NotEmpty(t, empty, "active game must have empty cells")

			cell := empty[rng.Intn(len(empty))]
			correct := rng.Intn(2) == 0
			play(t, &b, cell, turn, correct)
			turn = NextTurn(turn, correct)
		}
	}
}
