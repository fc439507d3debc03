package question

import (
	"context"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/oyunlab/quizgrid/go/internal/models"
)

// CandidatePoolSize bounds how many rows a category sample may touch, so
// sampling cost stays independent of bank size.
const CandidatePoolSize = 50

// QuestionRepository defines what the app layer needs from the repository.
type QuestionRepository interface {
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.Question, error)
	ListByCategory(ctx context.Context, category string, limit int32) ([]models.Question, error)
}

// App samples and resolves questions from the bank.
type App struct {
	repo QuestionRepository

	mu  sync.Mutex
	rng *rand.Rand
}

// NewApp creates a new question App. rng may be seeded deterministically in
// tests.
func NewApp(repo QuestionRepository, rng *rand.Rand) *App {
	return &App{repo: repo, rng: rng}
}

// Get resolves a question by id.
func (a *App) Get(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	return a.repo.GetQuestion(ctx, id)
}

// SampleByCategory picks one question uniformly from a bounded candidate
// pool for the category. Returns ErrNotFound when the category is empty.
func (a *App) SampleByCategory(ctx context.Context, category string) (*models.Question, error) {
	pool, err := a.repo.ListByCategory(ctx, category, CandidatePoolSize)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrNotFound
	}
	a.mu.Lock()
	idx := a.rng.Intn(len(pool))
	a.mu.Unlock()
	q := pool[idx]
	return &q, nil
}
