package gamedb

import (
	"context"

	"github.com/google/uuid"
)

const getQuestion = `
SELECT id, category, difficulty, prompt, options, correct_index, metadata, created_at
FROM question_bank
WHERE id = $1
`

func (q *Queries) GetQuestion(ctx context.Context, id uuid.UUID) (QuestionBank, error) {
	row := q.db.QueryRowContext(ctx, getQuestion, id)
	var i QuestionBank
	err := row.Scan(&i.ID, &i.Category, &i.Difficulty, &i.Prompt, &i.Options,
		&i.CorrectIndex, &i.Metadata, &i.CreatedAt)
	return i, err
}

const listQuestionsByCategory = `
SELECT id, category, difficulty, prompt, options, correct_index, metadata, created_at
FROM question_bank
WHERE category = $1
LIMIT $2
`

type ListQuestionsByCategoryParams struct {
	Category string
	Limit    int32
}

// ListQuestionsByCategory returns a bounded candidate pool; the caller
// samples uniformly from it.
func (q *Queries) ListQuestionsByCategory(ctx context.Context, arg ListQuestionsByCategoryParams) ([]QuestionBank, error) {
	rows, err := q.db.QueryContext(ctx, listQuestionsByCategory, arg.Category, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QuestionBank
	for rows.Next() {
		var i QuestionBank
		if err := rows.Scan(&i.ID, &i.Category, &i.Difficulty, &i.Prompt, &i.Options,
			&i.CorrectIndex, &i.Metadata, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
