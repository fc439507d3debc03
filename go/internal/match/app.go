package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/oyunlab/quizgrid/go/internal/apperr"
	"github.com/oyunlab/quizgrid/go/internal/board"
	"github.com/oyunlab/quizgrid/go/internal/events"
	"github.com/oyunlab/quizgrid/go/internal/models"
	"github.com/oyunlab/quizgrid/go/internal/outbox"
	"github.com/oyunlab/quizgrid/go/internal/question"
)

// writeAttempts bounds the optimistic-concurrency retry loop. Conflicts are
// rare (two writers racing the same match), so one or two retries suffice.
const writeAttempts = 3

// Repository defines the persistence the engine needs. Every state change
// goes through ApplyUpdate, which must persist the new state, the events
// and the pointer cleanup in one transaction, conditional on
// Update.ExpectVersion.
type Repository interface {
	GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error)
	GetActiveMatch(ctx context.Context, playerID uuid.UUID) (*models.ActiveMatch, error)
	ApplyUpdate(ctx context.Context, u Update) error
	NextDeadline(ctx context.Context) (*NextDeadline, error)
	ListDue(ctx context.Context, now time.Time, limit int32) ([]uuid.UUID, error)
}

// QuestionSource is the slice of the question app the engine uses.
type QuestionSource interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Question, error)
	SampleByCategory(ctx context.Context, category string) (*models.Question, error)
}

// App is the authoritative match engine. All game-state transitions happen
// here; everything else (gateway, sweeper, clients) only reads or asks.
type App struct {
	repo      Repository
	questions QuestionSource
	clock     clockwork.Clock
	cfg       Config

	mu  sync.Mutex
	rng *rand.Rand
}

func NewApp(repo Repository, questions QuestionSource, clock clockwork.Clock, cfg Config) *App {
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories
	}
	if cfg.AnswerWindow <= 0 {
		cfg.AnswerWindow = 30 * time.Second
	}
	return &App{
		repo:      repo,
		questions: questions,
		clock:     clock,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// NewMatch builds a fresh match between two players together with its
// MatchCreated event. It does not persist anything: the queue pairing
// transaction writes the match, the pointers and the event atomically.
func (a *App) NewMatch(playerA, playerB uuid.UUID) (*models.Match, []outbox.Pending, error) {
	now := a.clock.Now().UTC()
	deadline := now.Add(a.cfg.AnswerWindow)

	a.mu.Lock()
	b := board.Generate(a.cfg.Categories, a.rng)
	first := playerA
	if a.rng.Intn(2) == 1 {
		first = playerB
	}
	a.mu.Unlock()

	m := &models.Match{
		ID:           uuid.New(),
		Players:      models.Players{A: playerA, B: playerB},
		Board:        b,
		TurnPlayer:   first,
		TurnDeadline: &deadline,
		Status:       models.MatchStatusActive,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var cats [9]string
	for i := range b {
		cats[i] = b[i].Category
	}
	created, err := pending(events.TypeMatchCreated, events.MatchCreatedPayload{
		MatchID:      m.ID.String(),
		PlayerA:      playerA.String(),
		PlayerB:      playerB.String(),
		FirstTurn:    first.String(),
		TurnDeadline: deadline,
		Categories:   cats,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, nil, err
	}
	return m, []outbox.Pending{created}, nil
}

// Get returns the match as stored. Reads never mutate: an expired deadline
// is enforced by the sweeper, not by observers.
func (a *App) Get(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	m, err := a.repo.GetMatch(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "match not found")
		}
		return nil, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

// ActiveMatch returns the player's current-match pointer, or nil if the
// player is not in a match.
func (a *App) ActiveMatch(ctx context.Context, playerID uuid.UUID) (*models.ActiveMatch, error) {
	am, err := a.repo.GetActiveMatch(ctx, playerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active match: %w", err)
	}
	return am, nil
}

// QuestionResult is what GetQuestion hands back to the asking player: the
// question with the answer stripped, and the deadline the answer is due by.
type QuestionResult struct {
	CellIndex    int                 `json:"cell_index"`
	Question     models.QuestionView `json:"question"`
	TurnDeadline time.Time           `json:"turn_deadline"`
}

// GetQuestion assigns a question to an empty cell for the player on turn.
// The cell moves to pending and the answer window restarts. Only the turn
// holder may call this, and only for an empty cell.
func (a *App) GetQuestion(ctx context.Context, matchID, playerID uuid.UUID, cell int) (*QuestionResult, error) {
	if cell < 0 || cell > 8 {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "cell index %d out of range", cell)
	}

	var result *QuestionResult
	err := a.withRetry(ctx, matchID, func(m *models.Match) (*Update, error) {
		if _, err := a.requireTurn(m, playerID); err != nil {
			return nil, err
		}
		if m.Board[cell].State.Phase != models.CellEmpty {
			return nil, apperr.Newf(apperr.CodeFailedPrecondition, "cell %d is not empty", cell)
		}

		q, err := a.questions.SampleByCategory(ctx, m.Board[cell].Category)
		if errors.Is(err, question.ErrNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, "no questions for category %q", m.Board[cell].Category)
		}
		if err != nil {
			return nil, fmt.Errorf("sample question for %q: %w", m.Board[cell].Category, err)
		}

		b := m.Board
		if err := board.AssignQuestion(&b, cell, q.ID); err != nil {
			return nil, fmt.Errorf("assign question: %w", err)
		}
		now := a.clock.Now().UTC()
		deadline := now.Add(a.cfg.AnswerWindow)

		assigned, err := pending(events.TypeQuestionAssigned, events.QuestionAssignedPayload{
			MatchID:      m.ID.String(),
			CellIndex:    cell,
			Category:     m.Board[cell].Category,
			QuestionID:   q.ID.String(),
			AskedPlayer:  playerID.String(),
			TurnDeadline: deadline,
			AssignedAt:   now,
		})
		if err != nil {
			return nil, err
		}

		result = &QuestionResult{
			CellIndex:    cell,
			Question:     q.View(),
			TurnDeadline: deadline,
		}
		return &Update{
			MatchID:       m.ID,
			ExpectVersion: m.Version,
			Board:         b,
			TurnPlayer:    m.TurnPlayer,
			TurnDeadline:  &deadline,
			Status:        models.MatchStatusActive,
			Events:        []outbox.Pending{assigned},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SubmitMove grades the player's answer for a pending cell and advances the
// match. answerIndex -1 means "no answer" and always grades wrong; clients
// use it to concede an expired turn without waiting for the sweeper.
func (a *App) SubmitMove(ctx context.Context, matchID, playerID uuid.UUID, cell, answerIndex int) (*MoveResult, error) {
	if cell < 0 || cell > 8 {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "cell index %d out of range", cell)
	}
	if answerIndex < -1 || answerIndex > 3 {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "answer index %d out of range", answerIndex)
	}

	var result *MoveResult
	err := a.withRetry(ctx, matchID, func(m *models.Match) (*Update, error) {
		role, err := a.requireTurn(m, playerID)
		if err != nil {
			return nil, err
		}
		cellState := m.Board[cell].State
		if cellState.Phase != models.CellPending {
			return nil, apperr.Newf(apperr.CodeFailedPrecondition, "cell %d has no pending question", cell)
		}

		q, err := a.questions.Get(ctx, *m.Board[cell].QuestionID)
		if err != nil {
			return nil, fmt.Errorf("load question: %w", err)
		}
		correct := answerIndex == q.CorrectIndex

		u, mr, err := a.advance(m, role, cell, correct, events.FinishReasonCompleted)
		if err != nil {
			return nil, err
		}
		mr.CorrectAnswerIndex = q.CorrectIndex
		result = mr
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Forfeit ends the match immediately with the opponent as winner. Any
// participant may forfeit at any point while the match is active.
func (a *App) Forfeit(ctx context.Context, matchID, playerID uuid.UUID) error {
	return a.withRetry(ctx, matchID, func(m *models.Match) (*Update, error) {
		role, ok := m.Players.Role(playerID)
		if !ok {
			return nil, apperr.New(apperr.CodePermissionDenied, "player is not in this match")
		}
		if m.Status != models.MatchStatusActive {
			return nil, apperr.New(apperr.CodeFailedPrecondition, "match already finished")
		}

		winner := models.WinnerForRole(role.Other())
		finished, err := a.finishedEvent(m, winner, events.FinishReasonForfeit)
		if err != nil {
			return nil, err
		}
		return &Update{
			MatchID:       m.ID,
			ExpectVersion: m.Version,
			Board:         m.Board,
			TurnPlayer:    m.TurnPlayer,
			TurnDeadline:  nil,
			Status:        models.MatchStatusFinished,
			Winner:        &winner,
			ClearPointers: true,
			Events:        []outbox.Pending{finished},
		}, nil
	})
}

// ExpireTurn is invoked by the deadline sweeper. If the turn holder has a
// pending question, it is graded as an automatic wrong answer; otherwise
// the turn simply passes. A deadline that was pushed forward since the
// sweeper scheduled the wake is left alone.
func (a *App) ExpireTurn(ctx context.Context, matchID uuid.UUID) error {
	err := a.withRetry(ctx, matchID, func(m *models.Match) (*Update, error) {
		if m.Status != models.MatchStatusActive {
			return nil, nil
		}
		now := a.clock.Now().UTC()
		if m.TurnDeadline == nil || m.TurnDeadline.After(now) {
			return nil, nil
		}
		role := m.TurnRole()

		if cell, ok := firstPendingCell(m.Board); ok {
			u, _, err := a.advance(m, role, cell, false, events.FinishReasonTimeout)
			return u, err
		}

		// No question was ever requested this turn: pass it.
		next := m.Players.ByRole(role.Other())
		deadline := now.Add(a.cfg.AnswerWindow)
		expired, err := pending(events.TypeTurnExpired, events.TurnExpiredPayload{
			MatchID:      m.ID.String(),
			Player:       m.TurnPlayer.String(),
			NextTurn:     next.String(),
			TurnDeadline: deadline,
			ExpiredAt:    now,
		})
		if err != nil {
			return nil, err
		}
		return &Update{
			MatchID:       m.ID,
			ExpectVersion: m.Version,
			Board:         m.Board,
			TurnPlayer:    next,
			TurnDeadline:  &deadline,
			Status:        models.MatchStatusActive,
			Events:        []outbox.Pending{expired},
		}, nil
	})
	if err != nil && apperr.CodeOf(err) == apperr.CodeNotFound {
		return nil
	}
	return err
}

// NextDeadline exposes the soonest active deadline for the sweeper.
func (a *App) NextDeadline(ctx context.Context) (*NextDeadline, error) {
	return a.repo.NextDeadline(ctx)
}

// ListDue returns matches whose deadline has passed, oldest first.
func (a *App) ListDue(ctx context.Context, now time.Time, limit int32) ([]uuid.UUID, error) {
	return a.repo.ListDue(ctx, now, limit)
}

// advance applies one graded answer: resolves the cell, evaluates the
// board and builds the update and events. reason labels a finish caused by
// this answer; a forced wrong from the sweeper reports timeout.
func (a *App) advance(m *models.Match, role models.Role, cell int, correct bool, reason events.FinishReason) (*Update, *MoveResult, error) {
	b := m.Board
	if err := board.Resolve(&b, cell, role, correct); err != nil {
		return nil, nil, fmt.Errorf("resolve cell: %w", err)
	}
	status, winner := board.Evaluate(b)
	now := a.clock.Now().UTC()

	nextPlayer := m.Players.ByRole(board.NextTurn(role, correct))
	var deadline *time.Time
	if status == models.MatchStatusActive {
		d := now.Add(a.cfg.AnswerWindow)
		deadline = &d
	}

	movePayload := events.MoveAppliedPayload{
		MatchID:      m.ID.String(),
		CellIndex:    cell,
		Player:       m.Players.ByRole(role).String(),
		Role:         string(role),
		Correct:      correct,
		NextTurn:     nextPlayer.String(),
		TurnDeadline: deadline,
		Status:       string(status),
		AppliedAt:    now,
	}
	if winner != nil {
		movePayload.Winner = string(*winner)
	}
	move, err := pending(events.TypeMoveApplied, movePayload)
	if err != nil {
		return nil, nil, err
	}
	evs := []outbox.Pending{move}

	if status == models.MatchStatusFinished {
		mCopy := *m
		mCopy.Board = b
		finished, err := a.finishedEvent(&mCopy, *winner, reason)
		if err != nil {
			return nil, nil, err
		}
		evs = append(evs, finished)
	}

	u := &Update{
		MatchID:       m.ID,
		ExpectVersion: m.Version,
		Board:         b,
		TurnPlayer:    nextPlayer,
		TurnDeadline:  deadline,
		Status:        status,
		Winner:        winner,
		ClearPointers: status == models.MatchStatusFinished,
		Events:        evs,
	}
	mr := &MoveResult{
		Correct:  correct,
		Status:   status,
		Winner:   winner,
		NextTurn: nextPlayer,
	}
	return u, mr, nil
}

func (a *App) finishedEvent(m *models.Match, winner models.Winner, reason events.FinishReason) (outbox.Pending, error) {
	return pending(events.TypeMatchFinished, events.MatchFinishedPayload{
		MatchID:    m.ID.String(),
		Winner:     string(winner),
		Reason:     reason,
		ScoreA:     board.Score(m.Board, models.RoleA),
		ScoreB:     board.Score(m.Board, models.RoleB),
		FinishedAt: a.clock.Now().UTC(),
	})
}

// withRetry runs read-decide-write against the match, retrying when the
// conditional write loses a version race. fn returning a nil update means
// there is nothing to change.
func (a *App) withRetry(ctx context.Context, matchID uuid.UUID, fn func(*models.Match) (*Update, error)) error {
	var lastErr error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		m, err := a.repo.GetMatch(ctx, matchID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return apperr.New(apperr.CodeNotFound, "match not found")
			}
			return fmt.Errorf("get match: %w", err)
		}

		u, err := fn(m)
		if err != nil {
			return err
		}
		if u == nil {
			return nil
		}

		err = a.repo.ApplyUpdate(ctx, *u)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return fmt.Errorf("apply update: %w", err)
		}
		lastErr = err
	}
	return apperr.Wrap(apperr.CodeUnavailable, "match is contended, retry", lastErr)
}

func (a *App) requireTurn(m *models.Match, playerID uuid.UUID) (models.Role, error) {
	role, ok := m.Players.Role(playerID)
	if !ok {
		return "", apperr.New(apperr.CodePermissionDenied, "player is not in this match")
	}
	if m.Status != models.MatchStatusActive {
		return "", apperr.New(apperr.CodeFailedPrecondition, "match already finished")
	}
	if m.TurnPlayer != playerID {
		return "", apperr.New(apperr.CodePermissionDenied, "not your turn")
	}
	return role, nil
}

func firstPendingCell(b [9]models.BoardCell) (int, bool) {
	for i := range b {
		if b[i].State.Phase == models.CellPending {
			return i, true
		}
	}
	return -1, false
}

func pending(eventType string, payload any) (outbox.Pending, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return outbox.Pending{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return outbox.Pending{EventType: eventType, Payload: raw}, nil
}
