package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/oyunlab/quizgrid/go/internal/apperr"
)

// Verifier resolves a bearer token into the calling player. Production
// wires a real token verifier; tests use a static map.
type Verifier interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (uuid.UUID, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (uuid.UUID, error) {
	return f(ctx, token)
}

type playerKey struct{}

// PlayerFromContext returns the authenticated player set by the middleware.
func PlayerFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(playerKey{}).(uuid.UUID)
	return id, ok
}

// WithPlayer injects a player identity, bypassing the middleware in tests.
func WithPlayer(ctx context.Context, playerID uuid.UUID) context.Context {
	return context.WithValue(ctx, playerKey{}, playerID)
}

// authenticate wraps a handler with bearer-token verification.
func (s *Service) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, apperr.New(apperr.CodeUnauthenticated, "missing bearer token"))
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		playerID, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, apperr.Wrap(apperr.CodeUnauthenticated, "invalid token", err))
			return
		}
		next(w, r.WithContext(WithPlayer(r.Context(), playerID)))
	}
}
