package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oyunlab/quizgrid/go/internal/apperr"
	"github.com/oyunlab/quizgrid/go/internal/match"
	"github.com/oyunlab/quizgrid/go/internal/models"
	"github.com/oyunlab/quizgrid/go/internal/queue"
)

type fakeQueue struct {
	joinResult *queue.JoinResult
	joinErr    error
	leftPlayer uuid.UUID
	cleaned    int64
}

func (f *fakeQueue) Join(_ context.Context, _ uuid.UUID, _ int, _ string) (*queue.JoinResult, error) {
	return f.joinResult, f.joinErr
}

func (f *fakeQueue) Leave(_ context.Context, playerID uuid.UUID) error {
	f.leftPlayer = playerID
	return nil
}

func (f *fakeQueue) Cleanup(context.Context) (int64, error) {
	return f.cleaned, nil
}

type fakeMatches struct {
	questionResult *match.QuestionResult
	moveResult     *match.MoveResult
	forfeitErr     error
	err            error

	lastMatchID uuid.UUID
	lastCell    int
	lastAnswer  int
}

func (f *fakeMatches) GetQuestion(_ context.Context, matchID, _ uuid.UUID, cell int) (*match.QuestionResult, error) {
	f.lastMatchID, f.lastCell = matchID, cell
	return f.questionResult, f.err
}

func (f *fakeMatches) SubmitMove(_ context.Context, matchID, _ uuid.UUID, cell, answerIndex int) (*match.MoveResult, error) {
	f.lastMatchID, f.lastCell, f.lastAnswer = matchID, cell, answerIndex
	return f.moveResult, f.err
}

func (f *fakeMatches) Forfeit(_ context.Context, matchID, _ uuid.UUID) error {
	f.lastMatchID = matchID
	return f.forfeitErr
}

type countingNotifier struct{ wakes int }

func (n *countingNotifier) Wake() { n.wakes++ }

// tokenVerifier accepts tokens of the form "token:<uuid>".
func tokenVerifier(t *testing.T, player uuid.UUID) Verifier {
	t.Helper()
	return VerifierFunc(func(_ context.Context, token string) (uuid.UUID, error) {
		if token != "token:"+player.String() {
			return uuid.Nil, apperr.New(apperr.CodeUnauthenticated, "unknown token")
		}
		return player, nil
	})
}

type harness struct {
	mux      *http.ServeMux
	queue    *fakeQueue
	matches  *fakeMatches
	notifier *countingNotifier
	player   uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		queue:    &fakeQueue{},
		matches:  &fakeMatches{},
		notifier: &countingNotifier{},
		player:   uuid.New(),
	}
	svc := NewService(h.queue, h.matches, tokenVerifier(t, h.player), h.notifier, zerolog.Nop())
	h.mux = http.NewServeMux()
	svc.RegisterRoutes(h.mux)
	return h
}

func (h *harness) post(t *testing.T, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	if authed {
		req.Header.Set("Authorization", "Bearer token:"+h.player.String())
	}
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	return rec
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestJoinQueueQueued(t *testing.T) {
	h := newHarness(t)
	h.queue.joinResult = &queue.JoinResult{State: queue.JoinStateQueued}

	rec := h.post(t, "/v1/queue.join", joinQueueRequest{Rating: 1200}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var res queue.JoinResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, queue.JoinStateQueued, res.State)
	assert.Zero(t, h.notifier.wakes, "queueing must not wake the sweeper")
}

func TestJoinQueueMatchedWakesSweeper(t *testing.T) {
	h := newHarness(t)
	matchID := uuid.New()
	h.queue.joinResult = &queue.JoinResult{
		State:   queue.JoinStateMatched,
		MatchID: &matchID,
		Role:    models.RoleB,
	}

	rec := h.post(t, "/v1/queue.join", joinQueueRequest{Rating: 1200}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.notifier.wakes)
}

func TestJoinQueueRequiresAuth(t *testing.T) {
	h := newHarness(t)

	rec := h.post(t, "/v1/queue.join", joinQueueRequest{}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperr.CodeUnauthenticated, decodeErrorBody(t, rec).Code)
}

func TestJoinQueueRejectsBadToken(t *testing.T) {
	h := newHarness(t)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(joinQueueRequest{}))
	req := httptest.NewRequest(http.MethodPost, "/v1/queue.join", &buf)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJoinQueueRejectsGet(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/queue.join", nil)
	req.Header.Set("Authorization", "Bearer token:"+h.player.String())
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaveQueue(t *testing.T) {
	h := newHarness(t)

	rec := h.post(t, "/v1/queue.leave", struct{}{}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, h.player, h.queue.leftPlayer)
}

func TestCleanupQueueRequiresAuth(t *testing.T) {
	h := newHarness(t)

	rec := h.post(t, "/v1/queue.cleanup", struct{}{}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperr.CodeUnauthenticated, decodeErrorBody(t, rec).Code)
}

func TestCleanupQueue(t *testing.T) {
	h := newHarness(t)
	h.queue.cleaned = 3

	rec := h.post(t, "/v1/queue.cleanup", struct{}{}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var res cleanupResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, int64(3), res.Removed)
}

func TestGetQuestion(t *testing.T) {
	h := newHarness(t)
	matchID := uuid.New()
	h.matches.questionResult = &match.QuestionResult{CellIndex: 4}

	rec := h.post(t, "/v1/match.getQuestion", getQuestionRequest{
		MatchID:   matchID.String(),
		CellIndex: 4,
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, matchID, h.matches.lastMatchID)
	assert.Equal(t, 4, h.matches.lastCell)
	assert.Equal(t, 1, h.notifier.wakes)
}

func TestGetQuestionRejectsBadMatchID(t *testing.T) {
	h := newHarness(t)

	rec := h.post(t, "/v1/match.getQuestion", getQuestionRequest{MatchID: "nope"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.CodeInvalidArgument, decodeErrorBody(t, rec).Code)
	assert.Zero(t, h.notifier.wakes)
}

func TestSubmitMove(t *testing.T) {
	h := newHarness(t)
	matchID := uuid.New()
	h.matches.moveResult = &match.MoveResult{Correct: true, Status: models.MatchStatusActive}

	rec := h.post(t, "/v1/match.submitMove", submitMoveRequest{
		MatchID:     matchID.String(),
		CellIndex:   2,
		AnswerIndex: 3,
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, h.matches.lastCell)
	assert.Equal(t, 3, h.matches.lastAnswer)
	assert.Equal(t, 1, h.notifier.wakes)
}

func TestSubmitMoveErrorMapping(t *testing.T) {
	h := newHarness(t)
	h.matches.err = apperr.New(apperr.CodePermissionDenied, "not your turn")

	rec := h.post(t, "/v1/match.submitMove", submitMoveRequest{
		MatchID: uuid.New().String(),
	}, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	body := decodeErrorBody(t, rec)
	assert.Equal(t, apperr.CodePermissionDenied, body.Code)
	assert.Equal(t, "not your turn", body.Message)
	assert.Zero(t, h.notifier.wakes, "failed moves must not wake the sweeper")
}

func TestForfeit(t *testing.T) {
	h := newHarness(t)
	matchID := uuid.New()

	rec := h.post(t, "/v1/match.forfeit", forfeitRequest{MatchID: matchID.String()}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, matchID, h.matches.lastMatchID)
}

func TestForfeitAfterFinish(t *testing.T) {
	h := newHarness(t)
	h.matches.forfeitErr = apperr.New(apperr.CodeFailedPrecondition, "match already finished")

	rec := h.post(t, "/v1/match.forfeit", forfeitRequest{MatchID: uuid.New().String()}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/queue.join", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer token:"+h.player.String())
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
