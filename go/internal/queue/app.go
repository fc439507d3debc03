package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/oyunlab/quizgrid/go/internal/apperr"
	"github.com/oyunlab/quizgrid/go/internal/models"
	"github.com/oyunlab/quizgrid/go/internal/outbox"
)

// Repository is the transactional boundary of the matchmaker. PairOrEnqueue
// runs the whole pairing decision in one transaction: candidates are
// row-locked, the pick is made, and either a match (plus pointers and
// events) or a queue entry is written.
type Repository interface {
	// PairOrEnqueue returns the created match, or nil if the player was
	// enqueued instead.
	PairOrEnqueue(ctx context.Context, entry models.QueueEntry, pick PickFunc, build BuildFunc) (*models.Match, error)
	// Remove deletes the player's queue entry, reporting whether one existed.
	Remove(ctx context.Context, playerID uuid.UUID) (bool, error)
	// RemoveExpired deletes entries older than cutoff and returns the count.
	RemoveExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// MatchSource is the slice of the match engine the matchmaker uses: the
// resume lookup and the pure match builder.
type MatchSource interface {
	ActiveMatch(ctx context.Context, playerID uuid.UUID) (*models.ActiveMatch, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Match, error)
	NewMatch(playerA, playerB uuid.UUID) (*models.Match, []outbox.Pending, error)
}

type App struct {
	repo    Repository
	matches MatchSource
	clock   clockwork.Clock
	cfg     Config
	logger  zerolog.Logger
}

func NewApp(repo Repository, matches MatchSource, clock clockwork.Clock, cfg Config, logger zerolog.Logger) *App {
	if cfg.BaseWindow <= 0 {
		cfg = DefaultConfig()
	}
	return &App{
		repo:    repo,
		matches: matches,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.With().Str("component", "queue").Logger(),
	}
}

// Join puts the player into matchmaking. A player with an active match is
// pointed back at it instead of queueing; otherwise the oldest compatible
// waiter is paired immediately, and if none qualifies the player waits.
// Re-joining while already queued is a no-op.
func (a *App) Join(ctx context.Context, playerID uuid.UUID, rating int, mode string) (*JoinResult, error) {
	if mode == "" {
		mode = a.cfg.DefaultMode
	}
	if len(mode) > 50 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "mode name too long")
	}
	if rating == 0 {
		rating = DefaultRating
	}
	if rating < 0 || rating > MaxRating {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "rating %d out of range", rating)
	}

	if res, err := a.resume(ctx, playerID); err != nil || res != nil {
		return res, err
	}

	now := a.clock.Now().UTC()
	entry := models.QueueEntry{PlayerID: playerID, Rating: rating, Mode: mode, JoinedAt: now}

	m, err := a.repo.PairOrEnqueue(ctx, entry, a.pick(now, rating), a.matches.NewMatch)
	if err != nil {
		return nil, fmt.Errorf("pair or enqueue: %w", err)
	}
	if m == nil {
		a.logger.Debug().Stringer("player_id", playerID).Str("mode", mode).Msg("player queued")
		return &JoinResult{State: JoinStateQueued}, nil
	}

	a.logger.Info().
		Stringer("match_id", m.ID).
		Stringer("player_a", m.Players.A).
		Stringer("player_b", m.Players.B).
		Msg("match created")

	opponent := m.Players.A
	role := models.RoleB
	if opponent == playerID {
		opponent, role = m.Players.B, models.RoleA
	}
	board := m.Board
	return &JoinResult{
		State:        JoinStateMatched,
		MatchID:      &m.ID,
		Role:         role,
		OpponentID:   &opponent,
		TurnPlayer:   &m.TurnPlayer,
		TurnDeadline: m.TurnDeadline,
		Board:        &board,
	}, nil
}

// Leave removes the player from the queue. Leaving when not queued is not
// an error.
func (a *App) Leave(ctx context.Context, playerID uuid.UUID) error {
	removed, err := a.repo.Remove(ctx, playerID)
	if err != nil {
		return fmt.Errorf("remove queue entry: %w", err)
	}
	if removed {
		a.logger.Debug().Stringer("player_id", playerID).Msg("player left queue")
	}
	return nil
}

// Cleanup drops entries that have waited past MaxWait. Clients whose entry
// expires re-join on their next poll.
func (a *App) Cleanup(ctx context.Context) (int64, error) {
	cutoff := a.clock.Now().UTC().Add(-a.cfg.MaxWait)
	n, err := a.repo.RemoveExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("remove expired queue entries: %w", err)
	}
	if n > 0 {
		a.logger.Info().Int64("removed", n).Msg("expired queue entries removed")
	}
	return n, nil
}

func (a *App) resume(ctx context.Context, playerID uuid.UUID) (*JoinResult, error) {
	am, err := a.matches.ActiveMatch(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("check active match: %w", err)
	}
	if am == nil {
		return nil, nil
	}
	m, err := a.matches.Get(ctx, am.MatchID)
	if err != nil {
		return nil, err
	}
	opponent := m.Players.ByRole(am.Role.Other())
	board := m.Board
	return &JoinResult{
		State:        JoinStateResumed,
		MatchID:      &am.MatchID,
		Role:         am.Role,
		OpponentID:   &opponent,
		TurnPlayer:   &m.TurnPlayer,
		TurnDeadline: m.TurnDeadline,
		Board:        &board,
	}, nil
}

// pick selects the oldest candidate within the rating window. The window
// widens with the candidate's own wait, so a long-waiting player becomes
// reachable to more of the pool.
func (a *App) pick(now time.Time, rating int) PickFunc {
	return func(candidates []models.QueueEntry) *models.QueueEntry {
		for i := range candidates {
			if i >= a.cfg.ScanLimit {
				break
			}
			c := candidates[i]
			diff := rating - c.Rating
			if diff < 0 {
				diff = -diff
			}
			if diff <= a.windowFor(now.Sub(c.JoinedAt)) {
				return &c
			}
		}
		return nil
	}
}

// windowFor returns the acceptable rating distance for a candidate that
// has been waiting the given duration.
func (a *App) windowFor(waited time.Duration) int {
	if waited < 0 {
		waited = 0
	}
	steps := int(waited / a.cfg.WidenEvery)
	return a.cfg.BaseWindow + steps*a.cfg.WindowStep
}
