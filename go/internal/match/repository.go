package match

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/oyunlab/quizgrid/go/internal/gamedb"
	"github.com/oyunlab/quizgrid/go/internal/models"
	"github.com/oyunlab/quizgrid/go/internal/sqlutil"
)

// SQLRepository persists matches through the gamedb query layer. Writes go
// through a single transaction so state, events and pointer cleanup land
// together or not at all.
type SQLRepository struct {
	db      *sql.DB
	queries *gamedb.Queries
	clock   clockwork.Clock
}

func NewSQLRepository(db *sql.DB, clock clockwork.Clock) *SQLRepository {
	return &SQLRepository{db: db, queries: gamedb.New(db), clock: clock}
}

func (r *SQLRepository) GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	row, err := r.queries.GetMatch(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rowToMatch(row)
}

func (r *SQLRepository) GetActiveMatch(ctx context.Context, playerID uuid.UUID) (*models.ActiveMatch, error) {
	row, err := r.queries.GetActiveMatch(ctx, playerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &models.ActiveMatch{
		PlayerID:  row.PlayerID,
		MatchID:   row.MatchID,
		Role:      models.Role(row.Role),
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// ApplyUpdate performs the conditional write. The UPDATE matches only when
// the stored version equals ExpectVersion and the match is still active;
// losing that race surfaces as ErrVersionConflict and the engine retries
// from a fresh read.
func (r *SQLRepository) ApplyUpdate(ctx context.Context, u Update) error {
	boardJSON, err := json.Marshal(u.Board)
	if err != nil {
		return fmt.Errorf("marshal board: %w", err)
	}
	now := r.clock.Now().UTC()

	return sqlutil.Run(ctx, r.db, gamedb.New(r.db).WithTx, func(q *gamedb.Queries) error {
		params := gamedb.UpdateMatchStateParams{
			ID:         u.MatchID,
			Version:    u.ExpectVersion,
			Board:      boardJSON,
			TurnPlayer: u.TurnPlayer,
			Status:     string(u.Status),
			UpdatedAt:  now,
		}
		if u.TurnDeadline != nil {
			d := u.TurnDeadline.UTC()
			params.TurnDeadline = sqlutil.ToSqlTime(&d)
		}
		if u.Winner != nil {
			w := string(*u.Winner)
			params.Winner = sqlutil.ToSqlString(&w)
		}
		if _, err := q.UpdateMatchState(ctx, params); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrVersionConflict
			}
			return fmt.Errorf("update match state: %w", err)
		}

		if u.ClearPointers {
			if err := q.DeleteActiveMatchesByMatch(ctx, u.MatchID); err != nil {
				return fmt.Errorf("clear active-match pointers: %w", err)
			}
		}

		for _, ev := range u.Events {
			err := q.InsertOutboxEvent(ctx, gamedb.InsertOutboxEventParams{
				ID:        uuid.New(),
				MatchID:   u.MatchID,
				EventType: ev.EventType,
				Payload:   ev.Payload,
				CreatedAt: now,
			})
			if err != nil {
				return fmt.Errorf("insert outbox event %s: %w", ev.EventType, err)
			}
		}
		return nil
	})
}

func (r *SQLRepository) NextDeadline(ctx context.Context) (*NextDeadline, error) {
	row, err := r.queries.FetchNextMatchDeadline(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if !row.TurnDeadline.Valid {
		return nil, nil
	}
	return &NextDeadline{MatchID: row.ID, Deadline: row.TurnDeadline.Time}, nil
}

func (r *SQLRepository) ListDue(ctx context.Context, now time.Time, limit int32) ([]uuid.UUID, error) {
	return r.queries.FetchMatchesDue(ctx, gamedb.FetchMatchesDueParams{Now: now, Limit: limit})
}

// PruneFinishedBefore deletes finished matches last touched before cutoff.
// Used by housekeeping to enforce the retention window.
func (r *SQLRepository) PruneFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.queries.DeleteFinishedMatchesBefore(ctx, cutoff)
}

func rowToMatch(row gamedb.Match) (*models.Match, error) {
	var b [9]models.BoardCell
	if err := json.Unmarshal(row.Board, &b); err != nil {
		return nil, fmt.Errorf("decode board for match %s: %w", row.ID, err)
	}
	m := &models.Match{
		ID:         row.ID,
		Players:    models.Players{A: row.PlayerA, B: row.PlayerB},
		Board:      b,
		TurnPlayer: row.TurnPlayer,
		Status:     models.MatchStatus(row.Status),
		Version:    row.Version,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	m.TurnDeadline = sqlutil.FromSqlTime(row.TurnDeadline)
	if w := sqlutil.FromSqlStringPtr(row.Winner); w != nil {
		winner := models.Winner(*w)
		m.Winner = &winner
	}
	return m, nil
}
