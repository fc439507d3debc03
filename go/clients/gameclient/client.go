// Package gameclient is the Go client for the quizgrid service: the HTTP
// callable API, the per-match WebSocket subscription, the local turn clock
// and an offline practice mode that reuses the server's board rules.
package gameclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/oyunlab/quizgrid/go/internal/apperr"
	"github.com/oyunlab/quizgrid/go/internal/gateway"
	"github.com/oyunlab/quizgrid/go/internal/match"
	"github.com/oyunlab/quizgrid/go/internal/queue"
)

// Client calls the service's JSON endpoints with a bearer token.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetTimeout adjusts the underlying HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// JoinQueue enters matchmaking.
func (c *Client) JoinQueue(ctx context.Context, rating int, mode string) (*queue.JoinResult, error) {
	var result queue.JoinResult
	err := c.post(ctx, "/v1/queue.join", map[string]any{
		"rating": rating,
		"mode":   mode,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// LeaveQueue exits matchmaking.
func (c *Client) LeaveQueue(ctx context.Context) error {
	return c.post(ctx, "/v1/queue.leave", map[string]any{}, nil)
}

// GetQuestion asks for a question on an empty cell.
func (c *Client) GetQuestion(ctx context.Context, matchID uuid.UUID, cell int) (*match.QuestionResult, error) {
	var result match.QuestionResult
	err := c.post(ctx, "/v1/match.getQuestion", map[string]any{
		"match_id":   matchID.String(),
		"cell_index": cell,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitMove submits an answer. answerIndex -1 concedes the turn.
func (c *Client) SubmitMove(ctx context.Context, matchID uuid.UUID, cell, answerIndex int) (*match.MoveResult, error) {
	var result match.MoveResult
	err := c.post(ctx, "/v1/match.submitMove", map[string]any{
		"match_id":     matchID.String(),
		"cell_index":   cell,
		"answer_index": answerIndex,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Forfeit concedes the match.
func (c *Client) Forfeit(ctx context.Context, matchID uuid.UUID) error {
	return c.post(ctx, "/v1/match.forfeit", map[string]any{
		"match_id": matchID.String(),
	}, nil)
}

// MatchState fetches the reconnect snapshot for a match.
func (c *Client) MatchState(ctx context.Context, matchID uuid.UUID) (*gateway.MatchStateResponse, error) {
	var result gateway.MatchStateResponse
	if err := c.get(ctx, "/state/match?match_id="+matchID.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ActiveMatch asks whether the player is currently in a match.
func (c *Client) ActiveMatch(ctx context.Context, playerID uuid.UUID) (*gateway.ActiveMatchResponse, error) {
	var result gateway.ActiveMatchResponse
	if err := c.get(ctx, "/state/active-match?player_id="+playerID.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &unreachableError{cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, body any, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return &unreachableError{cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	var body struct {
		Code    apperr.Code `json:"code"`
		Message string      `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Code != "" {
		return apperr.New(body.Code, body.Message)
	}
	return apperr.Newf(apperr.FromHTTPStatus(resp.StatusCode), "server returned status %d", resp.StatusCode)
}

type unreachableError struct {
	cause error
}

func (e *unreachableError) Error() string { return fmt.Sprintf("server unreachable: %v", e.cause) }
func (e *unreachableError) Unwrap() error { return e.cause }

// IsUnreachable reports whether err means the server could not be reached
// at all, as opposed to rejecting the request. Clients switch to offline
// practice mode on it.
func IsUnreachable(err error) bool {
	var ue *unreachableError
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
