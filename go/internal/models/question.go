package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Question is a read-only record from the question bank. The bank itself is
// an external collaborator; this service only samples and grades against it.
type Question struct {
	ID           uuid.UUID       `json:"id"`
	Category     string          `json:"category"`
	Difficulty   string          `json:"difficulty"`
	Prompt       string          `json:"prompt"`
	Options      [4]string       `json:"options"`
	CorrectIndex int             `json:"correct"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// QuestionView is the client-facing projection of a question. It never
// carries the correct index.
type QuestionView struct {
	ID         uuid.UUID `json:"id"`
	Category   string    `json:"category"`
	Difficulty string    `json:"difficulty"`
	Prompt     string    `json:"prompt"`
	Options    [4]string `json:"options"`
}

// View strips the answer from a question.
func (q *Question) View() QuestionView {
	return QuestionView{
		ID:         q.ID,
		Category:   q.Category,
		Difficulty: q.Difficulty,
		Prompt:     q.Prompt,
		Options:    q.Options,
	}
}
