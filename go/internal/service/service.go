// Package service exposes the callable game API over JSON POST endpoints.
// Mutations are authenticated, validated, then delegated to the queue and
// match apps; failures map onto a small HTTP error taxonomy.
package service

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oyunlab/quizgrid/go/internal/apperr"
	"github.com/oyunlab/quizgrid/go/internal/match"
	"github.com/oyunlab/quizgrid/go/internal/queue"
)

// QueueApp is the matchmaking surface the service exposes.
type QueueApp interface {
	Join(ctx context.Context, playerID uuid.UUID, rating int, mode string) (*queue.JoinResult, error)
	Leave(ctx context.Context, playerID uuid.UUID) error
	Cleanup(ctx context.Context) (int64, error)
}

// MatchApp is the gameplay surface the service exposes.
type MatchApp interface {
	GetQuestion(ctx context.Context, matchID, playerID uuid.UUID, cell int) (*match.QuestionResult, error)
	SubmitMove(ctx context.Context, matchID, playerID uuid.UUID, cell, answerIndex int) (*match.MoveResult, error)
	Forfeit(ctx context.Context, matchID, playerID uuid.UUID) error
}

// Notifier is poked after writes that may move a deadline forward.
type Notifier interface {
	Wake()
}

type Service struct {
	queue    QueueApp
	matches  MatchApp
	verifier Verifier
	notifier Notifier
	logger   zerolog.Logger
}

func NewService(queueApp QueueApp, matchApp MatchApp, verifier Verifier, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		queue:    queueApp,
		matches:  matchApp,
		verifier: verifier,
		notifier: notifier,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// RegisterRoutes mounts the callable endpoints on mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/queue.join", s.authenticate(s.handleJoinQueue))
	mux.HandleFunc("/v1/queue.leave", s.authenticate(s.handleLeaveQueue))
	mux.HandleFunc("/v1/queue.cleanup", s.authenticate(s.handleCleanupQueue))
	mux.HandleFunc("/v1/match.getQuestion", s.authenticate(s.handleGetQuestion))
	mux.HandleFunc("/v1/match.submitMove", s.authenticate(s.handleSubmitMove))
	mux.HandleFunc("/v1/match.forfeit", s.authenticate(s.handleForfeit))
	mux.HandleFunc("/health", s.handleHealth)
}

func (s *Service) handleJoinQueue(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requirePost(w, r)
	if !ok {
		return
	}
	var req joinQueueRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.queue.Join(r.Context(), playerID, req.Rating, req.Mode)
	if err != nil {
		s.fail(w, err, "join queue failed")
		return
	}
	if result.State != queue.JoinStateQueued && s.notifier != nil {
		// A fresh match carries a fresh deadline.
		s.notifier.Wake()
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleLeaveQueue(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requirePost(w, r)
	if !ok {
		return
	}
	if err := s.queue.Leave(r.Context(), playerID); err != nil {
		s.fail(w, err, "leave queue failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleCleanupQueue removes stale queue entries. The in-process scheduler
// calls the queue app directly; this endpoint exists for ops tooling and
// requires a valid token like every other callable.
func (s *Service) handleCleanupQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apperr.New(apperr.CodeInvalidArgument, "POST required"))
		return
	}
	removed, err := s.queue.Cleanup(r.Context())
	if err != nil {
		s.fail(w, err, "queue cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{Removed: removed})
}

func (s *Service) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requirePost(w, r)
	if !ok {
		return
	}
	var req getQuestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	matchID, err := uuid.Parse(req.MatchID)
	if err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidArgument, "invalid match_id"))
		return
	}

	result, err := s.matches.GetQuestion(r.Context(), matchID, playerID, req.CellIndex)
	if err != nil {
		s.fail(w, err, "get question failed")
		return
	}
	if s.notifier != nil {
		s.notifier.Wake()
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleSubmitMove(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requirePost(w, r)
	if !ok {
		return
	}
	var req submitMoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	matchID, err := uuid.Parse(req.MatchID)
	if err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidArgument, "invalid match_id"))
		return
	}

	result, err := s.matches.SubmitMove(r.Context(), matchID, playerID, req.CellIndex, req.AnswerIndex)
	if err != nil {
		s.fail(w, err, "submit move failed")
		return
	}
	if s.notifier != nil {
		s.notifier.Wake()
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleForfeit(w http.ResponseWriter, r *http.Request) {
	playerID, ok := requirePost(w, r)
	if !ok {
		return
	}
	var req forfeitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	matchID, err := uuid.Parse(req.MatchID)
	if err != nil {
		writeError(w, apperr.New(apperr.CodeInvalidArgument, "invalid match_id"))
		return
	}

	if err := s.matches.Forfeit(r.Context(), matchID, playerID); err != nil {
		s.fail(w, err, "forfeit failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail logs server-side faults and writes the error envelope. Client errors
// (bad arguments, precondition failures) are expected traffic and only
// logged at debug.
func (s *Service) fail(w http.ResponseWriter, err error, msg string) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeInternal || code == apperr.CodeUnavailable {
		s.logger.Error().Err(err).Msg(msg)
	} else {
		s.logger.Debug().Err(err).Msg(msg)
	}
	writeError(w, err)
}

func requirePost(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if r.Method != http.MethodPost {
		writeError(w, apperr.New(apperr.CodeInvalidArgument, "POST required"))
		return uuid.Nil, false
	}
	playerID, ok := PlayerFromContext(r.Context())
	if !ok {
		writeError(w, apperr.New(apperr.CodeUnauthenticated, "no authenticated player"))
		return uuid.Nil, false
	}
	return playerID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, apperr.Wrap(apperr.CodeInvalidArgument, "malformed request body", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	writeJSON(w, apperr.HTTPStatus(code), errorBody{
		Success: false,
		Code:    code,
		Message: apperr.MessageOf(err),
	})
}
