package gamedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const insertMatch = `
INSERT INTO matches (id, player_a, player_b, board, turn_player, turn_deadline, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
`

type InsertMatchParams struct {
	ID           uuid.UUID
	PlayerA      uuid.UUID
	PlayerB      uuid.UUID
	Board        json.RawMessage
	TurnPlayer   uuid.UUID
	TurnDeadline sql.NullTime
	Status       string
	CreatedAt    time.Time
}

func (q *Queries) InsertMatch(ctx context.Context, arg InsertMatchParams) error {
	_, err := q.db.ExecContext(ctx, insertMatch,
		arg.ID, arg.PlayerA, arg.PlayerB, arg.Board, arg.TurnPlayer,
		arg.TurnDeadline, arg.Status, arg.CreatedAt)
	return err
}

const getMatch = `
SELECT id, player_a, player_b, board, turn_player, turn_deadline, status, winner, version, created_at, updated_at
FROM matches
WHERE id = $1
`

func (q *Queries) GetMatch(ctx context.Context, id uuid.UUID) (Match, error) {
	row := q.db.QueryRowContext(ctx, getMatch, id)
	var i Match
	err := row.Scan(&i.ID, &i.PlayerA, &i.PlayerB, &i.Board, &i.TurnPlayer,
		&i.TurnDeadline, &i.Status, &i.Winner, &i.Version, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const updateMatchState = `
UPDATE matches
SET board = $3,
    turn_player = $4,
    turn_deadline = $5,
    status = $6,
    winner = $7,
    version = version + 1,
    updated_at = $8
WHERE id = $1 AND version = $2 AND status = 'active'
RETURNING id, player_a, player_b, board, turn_player, turn_deadline, status, winner, version, created_at, updated_at
`

type UpdateMatchStateParams struct {
	ID           uuid.UUID
	Version      int64
	Board        json.RawMessage
	TurnPlayer   uuid.UUID
	TurnDeadline sql.NullTime
	Status       string
	Winner       sql.NullString
	UpdatedAt    time.Time
}

// UpdateMatchState applies a match mutation conditionally on the version the
// caller read and on the match still being active. sql.ErrNoRows signals a
// lost race (stale version or already finished), never a partial write.
func (q *Queries) UpdateMatchState(ctx context.Context, arg UpdateMatchStateParams) (Match, error) {
	row := q.db.QueryRowContext(ctx, updateMatchState,
		arg.ID, arg.Version, arg.Board, arg.TurnPlayer, arg.TurnDeadline,
		arg.Status, arg.Winner, arg.UpdatedAt)
	var i Match
	err := row.Scan(&i.ID, &i.PlayerA, &i.PlayerB, &i.Board, &i.TurnPlayer,
		&i.TurnDeadline, &i.Status, &i.Winner, &i.Version, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const fetchNextMatchDeadline = `
SELECT id, turn_deadline
FROM matches
WHERE status = 'active' AND turn_deadline IS NOT NULL
ORDER BY turn_deadline ASC
LIMIT 1
`

type FetchNextMatchDeadlineRow struct {
	ID           uuid.UUID
	TurnDeadline sql.NullTime
}

func (q *Queries) FetchNextMatchDeadline(ctx context.Context) (FetchNextMatchDeadlineRow, error) {
	row := q.db.QueryRowContext(ctx, fetchNextMatchDeadline)
	var i FetchNextMatchDeadlineRow
	err := row.Scan(&i.ID, &i.TurnDeadline)
	return i, err
}

const fetchMatchesDue = `
SELECT id
FROM matches
WHERE status = 'active' AND turn_deadline IS NOT NULL AND turn_deadline <= $1
ORDER BY turn_deadline ASC
LIMIT $2
`

type FetchMatchesDueParams struct {
	Now   time.Time
	Limit int32
}

func (q *Queries) FetchMatchesDue(ctx context.Context, arg FetchMatchesDueParams) ([]uuid.UUID, error) {
	rows, err := q.db.QueryContext(ctx, fetchMatchesDue, arg.Now, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}

const deleteFinishedMatchesBefore = `
DELETE FROM matches
WHERE status = 'finished' AND updated_at < $1
`

func (q *Queries) DeleteFinishedMatchesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteFinishedMatchesBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertActiveMatch = `
INSERT INTO user_active_match (player_id, match_id, role, updated_at)
VALUES ($1, $2, $3, $4)
`

type InsertActiveMatchParams struct {
	PlayerID  uuid.UUID
	MatchID   uuid.UUID
	Role      string
	UpdatedAt time.Time
}

func (q *Queries) InsertActiveMatch(ctx context.Context, arg InsertActiveMatchParams) error {
	_, err := q.db.ExecContext(ctx, insertActiveMatch, arg.PlayerID, arg.MatchID, arg.Role, arg.UpdatedAt)
	return err
}

const getActiveMatch = `
SELECT player_id, match_id, role, updated_at
FROM user_active_match
WHERE player_id = $1
`

func (q *Queries) GetActiveMatch(ctx context.Context, playerID uuid.UUID) (UserActiveMatch, error) {
	row := q.db.QueryRowContext(ctx, getActiveMatch, playerID)
	var i UserActiveMatch
	err := row.Scan(&i.PlayerID, &i.MatchID, &i.Role, &i.UpdatedAt)
	return i, err
}

const deleteActiveMatchesByMatch = `
DELETE FROM user_active_match WHERE match_id = $1
`

func (q *Queries) DeleteActiveMatchesByMatch(ctx context.Context, matchID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteActiveMatchesByMatch, matchID)
	return err
}
