package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/oyunlab/quizgrid/go/internal/gamedb"
	"github.com/oyunlab/quizgrid/go/internal/models"
	"github.com/oyunlab/quizgrid/go/internal/sqlutil"
)

// SQLRepository runs matchmaking against Postgres. The pairing decision is
// one transaction end to end, so two concurrent joins can never both claim
// the same waiting player: candidate rows are locked with SKIP LOCKED, and
// everything a pairing produces commits atomically.
type SQLRepository struct {
	db      *sql.DB
	queries *gamedb.Queries
	clock   clockwork.Clock
}

func NewSQLRepository(db *sql.DB, clock clockwork.Clock) *SQLRepository {
	return &SQLRepository{db: db, queries: gamedb.New(db), clock: clock}
}

func (r *SQLRepository) PairOrEnqueue(ctx context.Context, entry models.QueueEntry, pick PickFunc, build BuildFunc) (*models.Match, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	q := r.queries.WithTx(tx)

	rows, err := q.ListQueueCandidates(ctx, gamedb.ListQueueCandidatesParams{
		Mode:     entry.Mode,
		PlayerID: entry.PlayerID,
	})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	candidates := make([]models.QueueEntry, len(rows))
	for i, row := range rows {
		candidates[i] = models.QueueEntry{
			PlayerID: row.PlayerID,
			Rating:   int(row.Rating),
			Mode:     row.Mode,
			JoinedAt: row.JoinedAt,
		}
	}

	opponent := pick(candidates)
	if opponent == nil {
		_, err := q.InsertQueueEntry(ctx, gamedb.InsertQueueEntryParams{
			PlayerID: entry.PlayerID,
			Rating:   int32(entry.Rating),
			Mode:     entry.Mode,
			JoinedAt: entry.JoinedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("insert queue entry: %w", err)
		}
		return nil, tx.Commit()
	}

	// Seat A is the player who waited, seat B the joiner.
	m, events, err := build(opponent.PlayerID, entry.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("build match: %w", err)
	}

	for _, pid := range []uuid.UUID{opponent.PlayerID, entry.PlayerID} {
		if _, err := q.DeleteQueueEntry(ctx, pid); err != nil {
			return nil, fmt.Errorf("dequeue %s: %w", pid, err)
		}
	}

	boardJSON, err := json.Marshal(m.Board)
	if err != nil {
		return nil, fmt.Errorf("marshal board: %w", err)
	}
	err = q.InsertMatch(ctx, gamedb.InsertMatchParams{
		ID:           m.ID,
		PlayerA:      m.Players.A,
		PlayerB:      m.Players.B,
		Board:        boardJSON,
		TurnPlayer:   m.TurnPlayer,
		TurnDeadline: sqlutil.ToSqlTime(m.TurnDeadline),
		Status:       string(m.Status),
		CreatedAt:    m.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("insert match: %w", err)
	}

	for _, p := range []struct {
		playerID uuid.UUID
		role     models.Role
	}{
		{m.Players.A, models.RoleA},
		{m.Players.B, models.RoleB},
	} {
		err := q.InsertActiveMatch(ctx, gamedb.InsertActiveMatchParams{
			PlayerID:  p.playerID,
			MatchID:   m.ID,
			Role:      string(p.role),
			UpdatedAt: m.CreatedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("insert active match pointer: %w", err)
		}
	}

	for _, ev := range events {
		err := q.InsertOutboxEvent(ctx, gamedb.InsertOutboxEventParams{
			ID:        uuid.New(),
			MatchID:   m.ID,
			EventType: ev.EventType,
			Payload:   ev.Payload,
			CreatedAt: m.CreatedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("insert outbox event %s: %w", ev.EventType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit pairing: %w", err)
	}
	return m, nil
}

func (r *SQLRepository) Remove(ctx context.Context, playerID uuid.UUID) (bool, error) {
	n, err := r.queries.DeleteQueueEntry(ctx, playerID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLRepository) RemoveExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.queries.DeleteExpiredQueueEntries(ctx, cutoff)
}
