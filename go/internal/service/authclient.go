package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/oyunlab/quizgrid/go/internal/apperr"
)

// RemoteVerifier validates player tokens against the auth service.
type RemoteVerifier struct {
	baseURL      string
	serviceToken string
	client       *http.Client
}

type validateResponse struct {
	UserID string `json:"user_id"`
}

func NewRemoteVerifier(baseURL, serviceToken string) *RemoteVerifier {
	return &RemoteVerifier{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify calls /auth/validate and returns the player the token belongs to.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	body, err := json.Marshal(map[string]string{"access_token": token})
	if err != nil {
		return uuid.Nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/auth/validate", bytes.NewBuffer(body))
	if err != nil {
		return uuid.Nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.serviceToken)

	resp, err := v.client.Do(req)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.CodeUnavailable, "auth service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return uuid.Nil, apperr.Newf(apperr.CodeUnauthenticated, "auth service rejected token (%d)", resp.StatusCode)
	}

	var vr validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return uuid.Nil, fmt.Errorf("decode validate response: %w", err)
	}
	playerID, err := uuid.Parse(vr.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("auth service returned malformed user id: %w", err)
	}
	return playerID, nil
}

// InsecureVerifier treats the token itself as the player UUID. Local
// development only.
func InsecureVerifier() Verifier {
	return VerifierFunc(func(_ context.Context, token string) (uuid.UUID, error) {
		id, err := uuid.Parse(token)
		if err != nil {
			return uuid.Nil, apperr.New(apperr.CodeUnauthenticated, "token is not a player id")
		}
		return id, nil
	})
}
