package gamedb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const insertOutboxEvent = `
INSERT INTO match_outbox (id, match_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4, $5)
`

type InsertOutboxEventParams struct {
	ID        uuid.UUID
	MatchID   uuid.UUID
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
}

func (q *Queries) InsertOutboxEvent(ctx context.Context, arg InsertOutboxEventParams) error {
	_, err := q.db.ExecContext(ctx, insertOutboxEvent,
		arg.ID, arg.MatchID, arg.EventType, arg.Payload, arg.CreatedAt)
	return err
}

const fetchUnsentOutbox = `
SELECT id, match_id, event_type, payload, created_at, sent_at
FROM match_outbox
WHERE sent_at IS NULL
ORDER BY created_at ASC
LIMIT $1
FOR UPDATE SKIP LOCKED
`

func (q *Queries) FetchUnsentOutbox(ctx context.Context, limit int32) ([]MatchOutbox, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MatchOutbox
	for rows.Next() {
		var i MatchOutbox
		if err := rows.Scan(&i.ID, &i.MatchID, &i.EventType, &i.Payload, &i.CreatedAt, &i.SentAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const markOutboxSent = `
UPDATE match_outbox
SET sent_at = $2
WHERE id = ANY($1::uuid[])
`

type MarkOutboxSentParams struct {
	IDs    []uuid.UUID
	SentAt time.Time
}

func (q *Queries) MarkOutboxSent(ctx context.Context, arg MarkOutboxSentParams) error {
	ids := make([]string, len(arg.IDs))
	for i, id := range arg.IDs {
		ids[i] = id.String()
	}
	_, err := q.db.ExecContext(ctx, markOutboxSent, pq.Array(ids), arg.SentAt)
	return err
}
