package service

import (
	"github.com/oyunlab/quizgrid/go/internal/apperr"
)

// Request bodies for the callable endpoints. The caller's identity always
// comes from the bearer token, never from the body.

type joinQueueRequest struct {
	Rating int    `json:"rating"`
	Mode   string `json:"mode"`
}

type getQuestionRequest struct {
	MatchID   string `json:"match_id"`
	CellIndex int    `json:"cell_index"`
}

type submitMoveRequest struct {
	MatchID     string `json:"match_id"`
	CellIndex   int    `json:"cell_index"`
	AnswerIndex int    `json:"answer_index"`
}

type forfeitRequest struct {
	MatchID string `json:"match_id"`
}

type cleanupResponse struct {
	Removed int64 `json:"removed"`
}

// errorBody is the uniform failure envelope.
type errorBody struct {
	Success bool        `json:"success"`
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}
