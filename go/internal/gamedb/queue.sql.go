package gamedb

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const insertQueueEntry = `
INSERT INTO mm_queue (player_id, rating, mode, joined_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (player_id) DO NOTHING
`

type InsertQueueEntryParams struct {
	PlayerID uuid.UUID
	Rating   int32
	Mode     string
	JoinedAt time.Time
}

// InsertQueueEntry enqueues a waiting player. The conflict clause makes a
// repeated join by the same unmatched player a no-op.
func (q *Queries) InsertQueueEntry(ctx context.Context, arg InsertQueueEntryParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertQueueEntry, arg.PlayerID, arg.Rating, arg.Mode, arg.JoinedAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listQueueCandidates = `
SELECT player_id, rating, mode, joined_at
FROM mm_queue
WHERE mode = $1 AND player_id <> $2
ORDER BY joined_at ASC
FOR UPDATE SKIP LOCKED
`

type ListQueueCandidatesParams struct {
	Mode     string
	PlayerID uuid.UUID
}

// ListQueueCandidates returns the waiting entries for a mode, oldest first,
// row-locking what it returns. SKIP LOCKED keeps two concurrent pairings
// from selecting the same candidate.
func (q *Queries) ListQueueCandidates(ctx context.Context, arg ListQueueCandidatesParams) ([]MmQueue, error) {
	rows, err := q.db.QueryContext(ctx, listQueueCandidates, arg.Mode, arg.PlayerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MmQueue
	for rows.Next() {
		var i MmQueue
		if err := rows.Scan(&i.PlayerID, &i.Rating, &i.Mode, &i.JoinedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteQueueEntry = `
DELETE FROM mm_queue WHERE player_id = $1
`

func (q *Queries) DeleteQueueEntry(ctx context.Context, playerID uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteQueueEntry, playerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteExpiredQueueEntries = `
DELETE FROM mm_queue WHERE joined_at < $1
`

func (q *Queries) DeleteExpiredQueueEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredQueueEntries, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
