package question

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/oyunlab/quizgrid/go/internal/gamedb"
	"github.com/oyunlab/quizgrid/go/internal/models"
)

// ErrNotFound is returned when a question id or category has no rows.
var ErrNotFound = errors.New("question not found")

type Repository struct {
	queries *gamedb.Queries
}

func NewRepository(queries *gamedb.Queries) *Repository {
	return &Repository{queries: queries}
}

func (r *Repository) GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	row, err := r.queries.GetQuestion(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return rowToModel(row)
}

func (r *Repository) ListByCategory(ctx context.Context, category string, limit int32) ([]models.Question, error) {
	rows, err := r.queries.ListQuestionsByCategory(ctx, gamedb.ListQuestionsByCategoryParams{
		Category: category,
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list questions for category %s: %w", category, err)
	}
	questions := make([]models.Question, 0, len(rows))
	for _, row := range rows {
		q, err := rowToModel(row)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, nil
}

func rowToModel(row gamedb.QuestionBank) (*models.Question, error) {
	var options [4]string
	if err := json.Unmarshal(row.Options, &options); err != nil {
		return nil, fmt.Errorf("failed to decode question options: %w", err)
	}
	q := &models.Question{
		ID:           row.ID,
		Category:     row.Category,
		Difficulty:   row.Difficulty,
		Prompt:       row.Prompt,
		Options:      options,
		CorrectIndex: int(row.CorrectIndex),
	}
	if row.Metadata.Valid {
		q.Metadata = row.Metadata.RawMessage
	}
	return q, nil
}
