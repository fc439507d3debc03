package gameclient

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/oyunlab/quizgrid/go/internal/apperr"
	"github.com/oyunlab/quizgrid/go/internal/board"
	"github.com/oyunlab/quizgrid/go/internal/models"
)

// QuestionBank serves questions for offline play, typically from a bundled
// local file.
type QuestionBank interface {
	SampleByCategory(category string) (*models.Question, error)
}

var (
	// ErrNoQuestion means the bank ran out of unused questions for a
	// category.
	ErrNoQuestion = errors.New("no unused question available")
	// ErrGameOver means the practice game already finished.
	ErrGameOver = errors.New("game is over")
)

// OfflineMove is the outcome of one graded offline answer, including the
// synthetic opponent's reply when the turn passed to it.
type OfflineMove struct {
	Correct            bool
	CorrectAnswerIndex int
	Status             models.MatchStatus
	Winner             *models.Winner
	OpponentMoves      []OpponentMove
}

// OpponentMove describes one cell the synthetic opponent played.
type OpponentMove struct {
	CellIndex int
	Correct   bool
}

// Offline is a single-device practice match against a synthetic opponent.
// It runs on the same board rules as the server, so practice behaves
// exactly like ranked play. The local player is seat A.
type Offline struct {
	bank      QuestionBank
	rng       *rand.Rand
	board     [9]models.BoardCell
	turn      models.Role
	status    models.MatchStatus
	winner    *models.Winner
	used      map[uuid.UUID]bool
	pending   int
	pendingQ  *models.Question
	// opponentSkill is the chance the synthetic opponent answers
	// correctly.
	opponentSkill float64
}

func NewOffline(categories []string, bank QuestionBank, rng *rand.Rand) *Offline {
	g := &Offline{
		bank:          bank,
		rng:           rng,
		board:         board.Generate(categories, rng),
		turn:          models.RoleA,
		status:        models.MatchStatusActive,
		used:          make(map[uuid.UUID]bool),
		pending:       -1,
		opponentSkill: 0.6,
	}
	if rng.Intn(2) == 1 {
		g.turn = models.RoleB
	}
	if g.turn == models.RoleB {
		g.playOpponent(nil)
	}
	return g
}

// Board returns the current board.
func (g *Offline) Board() [9]models.BoardCell { return g.board }

// Status returns active or finished.
func (g *Offline) Status() models.MatchStatus { return g.status }

// Winner is set once Status is finished.
func (g *Offline) Winner() *models.Winner { return g.winner }

// DrawQuestion assigns an unused question to an empty cell for the local
// player and returns it with the answer stripped.
func (g *Offline) DrawQuestion(cell int) (*models.QuestionView, error) {
	if g.status != models.MatchStatusActive {
		return nil, ErrGameOver
	}
	if g.turn != models.RoleA {
		return nil, apperr.New(apperr.CodePermissionDenied, "not your turn")
	}
	if cell < 0 || cell > 8 {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "cell index %d out of range", cell)
	}
	if g.board[cell].State.Phase != models.CellEmpty {
		return nil, apperr.Newf(apperr.CodeFailedPrecondition, "cell %d is not empty", cell)
	}

	q, err := g.drawUnused(g.board[cell].Category)
	if err != nil {
		return nil, err
	}
	if err := board.AssignQuestion(&g.board, cell, q.ID); err != nil {
		return nil, err
	}
	g.pending = cell
	g.pendingQ = q
	view := q.View()
	return &view, nil
}

// Answer grades the local player's answer and, if the turn passes, lets
// the synthetic opponent play until the turn comes back or the game ends.
func (g *Offline) Answer(cell, answerIndex int) (*OfflineMove, error) {
	if g.status != models.MatchStatusActive {
		return nil, ErrGameOver
	}
	if g.turn != models.RoleA {
		return nil, apperr.New(apperr.CodePermissionDenied, "not your turn")
	}
	if cell != g.pending || g.pendingQ == nil {
		return nil, apperr.Newf(apperr.CodeFailedPrecondition, "cell %d has no pending question", cell)
	}

	correct := answerIndex == g.pendingQ.CorrectIndex
	result := &OfflineMove{
		Correct:            correct,
		CorrectAnswerIndex: g.pendingQ.CorrectIndex,
	}
	g.applyAnswer(models.RoleA, cell, correct)

	if g.status == models.MatchStatusActive && g.turn == models.RoleB {
		g.playOpponent(result)
	}

	result.Status = g.status
	result.Winner = g.winner
	return result, nil
}

func (g *Offline) applyAnswer(role models.Role, cell int, correct bool) {
	// Cells are pending by the time this runs, so Resolve cannot fail.
	if err := board.Resolve(&g.board, cell, role, correct); err != nil {
		panic(fmt.Sprintf("offline resolve: %v", err))
	}
	g.pending = -1
	g.pendingQ = nil
	g.status, g.winner = board.Evaluate(g.board)
	if g.status == models.MatchStatusActive {
		g.turn = board.NextTurn(role, correct)
	}
}

// playOpponent runs the synthetic opponent until it loses the turn or the
// game ends.
func (g *Offline) playOpponent(result *OfflineMove) {
	for g.status == models.MatchStatusActive && g.turn == models.RoleB {
		cell, ok := g.randomEmptyCell()
		if !ok {
			return
		}
		q, err := g.drawUnused(g.board[cell].Category)
		if err != nil {
			// Bank exhausted: the opponent simply passes.
			g.turn = models.RoleA
			return
		}
		if err := board.AssignQuestion(&g.board, cell, q.ID); err != nil {
			return
		}
		correct := g.rng.Float64() < g.opponentSkill
		g.applyAnswer(models.RoleB, cell, correct)
		if result != nil {
			result.OpponentMoves = append(result.OpponentMoves, OpponentMove{CellIndex: cell, Correct: correct})
		}
	}
}

func (g *Offline) randomEmptyCell() (int, bool) {
	var empty []int
	for i := range g.board {
		if g.board[i].State.Phase == models.CellEmpty {
			empty = append(empty, i)
		}
	}
	if len(empty) == 0 {
		return -1, false
	}
	return empty[g.rng.Intn(len(empty))], true
}

// drawUnused samples until it finds a question not yet seen this game.
func (g *Offline) drawUnused(category string) (*models.Question, error) {
	for attempt := 0; attempt < 10; attempt++ {
		q, err := g.bank.SampleByCategory(category)
		if err != nil {
			return nil, err
		}
		if !g.used[q.ID] {
			g.used[q.ID] = true
			return q, nil
		}
	}
	return nil, ErrNoQuestion
}
