package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/oyunlab/quizgrid/go/internal/board"
	"github.com/oyunlab/quizgrid/go/internal/models"
)

// MatchReader is the read-only slice of the match engine the gateway uses.
type MatchReader interface {
	Get(ctx context.Context, matchID uuid.UUID) (*models.Match, error)
	ActiveMatch(ctx context.Context, playerID uuid.UUID) (*models.ActiveMatch, error)
}

// MatchStateResponse is the reconnect snapshot: everything a client needs
// to redraw the board and restart its local countdown.
type MatchStateResponse struct {
	MatchID          string               `json:"match_id"`
	Players          models.Players       `json:"players"`
	Board            [9]models.BoardCell  `json:"board"`
	TurnPlayer       string               `json:"turn_player"`
	TurnDeadline     *time.Time           `json:"turn_deadline,omitempty"`
	TimeRemainingSec *int                 `json:"time_remaining_sec,omitempty"`
	Status           string               `json:"status"`
	Winner           string               `json:"winner,omitempty"`
	ScoreA           int                  `json:"score_a"`
	ScoreB           int                  `json:"score_b"`
	Version          int64                `json:"version"`
}

// ActiveMatchResponse answers "am I in a match right now".
type ActiveMatchResponse struct {
	InMatch bool   `json:"in_match"`
	MatchID string `json:"match_id,omitempty"`
	Role    string `json:"role,omitempty"`
}

// StateProvider builds state snapshots from the match engine.
type StateProvider struct {
	matches MatchReader
	clock   clockwork.Clock
}

func NewStateProvider(matches MatchReader, clock clockwork.Clock) *StateProvider {
	return &StateProvider{matches: matches, clock: clock}
}

// MatchState returns the snapshot of one match. Expired deadlines are
// reported as zero remaining seconds; only the sweeper acts on them.
func (p *StateProvider) MatchState(ctx context.Context, matchID uuid.UUID) (*MatchStateResponse, error) {
	m, err := p.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	resp := &MatchStateResponse{
		MatchID:      m.ID.String(),
		Players:      m.Players,
		Board:        m.Board,
		TurnPlayer:   m.TurnPlayer.String(),
		TurnDeadline: m.TurnDeadline,
		Status:       string(m.Status),
		ScoreA:       board.Score(m.Board, models.RoleA),
		ScoreB:       board.Score(m.Board, models.RoleB),
		Version:      m.Version,
	}
	if m.Winner != nil {
		resp.Winner = string(*m.Winner)
	}
	if m.TurnDeadline != nil && m.Status == models.MatchStatusActive {
		remaining := int(m.TurnDeadline.Sub(p.clock.Now()).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		resp.TimeRemainingSec = &remaining
	}
	return resp, nil
}

// ActiveMatchFor resolves the player's current-match pointer.
func (p *StateProvider) ActiveMatchFor(ctx context.Context, playerID uuid.UUID) (*ActiveMatchResponse, error) {
	am, err := p.matches.ActiveMatch(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if am == nil {
		return &ActiveMatchResponse{InMatch: false}, nil
	}
	return &ActiveMatchResponse{
		InMatch: true,
		MatchID: am.MatchID.String(),
		Role:    string(am.Role),
	}, nil
}
