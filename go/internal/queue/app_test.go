package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oyunlab/quizgrid/go/internal/apperr"
	"github.com/oyunlab/quizgrid/go/internal/models"
	"github.com/oyunlab/quizgrid/go/internal/outbox"
	"github.com/oyunlab/quizgrid/go/internal/queue"
)

// memQueueRepo keeps queue entries in insertion order and runs the pick
// against them, mirroring the oldest-first SQL scan. The mutex serializes
// PairOrEnqueue the way the row locks serialize the pairing transaction.
type memQueueRepo struct {
	mu      sync.Mutex
	entries []models.QueueEntry
}

func (r *memQueueRepo) PairOrEnqueue(_ context.Context, entry models.QueueEntry, pick queue.PickFunc, build queue.BuildFunc) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.PlayerID == entry.PlayerID {
			return nil, nil
		}
	}
	if opponent := pick(r.entries); opponent != nil {
		m, _, err := build(opponent.PlayerID, entry.PlayerID)
		if err != nil {
			return nil, err
		}
		r.removeEntry(opponent.PlayerID)
		return m, nil
	}
	r.entries = append(r.entries, entry)
	return nil, nil
}

func (r *memQueueRepo) Remove(_ context.Context, playerID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	r.removeEntry(playerID)
	return len(r.entries) < n, nil
}

func (r *memQueueRepo) RemoveExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []models.QueueEntry
	var removed int64
	for _, e := range r.entries {
		if e.JoinedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}

func (r *memQueueRepo) removeEntry(playerID uuid.UUID) {
	for i, e := range r.entries {
		if e.PlayerID == playerID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// memMatchSource stands in for the match engine: NewMatch builds a minimal
// active match and active pointers can be preloaded for resume tests.
type memMatchSource struct {
	clock    clockwork.Clock
	matches  map[uuid.UUID]*models.Match
	pointers map[uuid.UUID]*models.ActiveMatch
}

func newMemMatchSource(clock clockwork.Clock) *memMatchSource {
	return &memMatchSource{
		clock:    clock,
		matches:  make(map[uuid.UUID]*models.Match),
		pointers: make(map[uuid.UUID]*models.ActiveMatch),
	}
}

func (s *memMatchSource) ActiveMatch(_ context.Context, playerID uuid.UUID) (*models.ActiveMatch, error) {
	return s.pointers[playerID], nil
}

func (s *memMatchSource) Get(_ context.Context, id uuid.UUID) (*models.Match, error) {
	m, ok := s.matches[id]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "match not found")
	}
	return m, nil
}

func (s *memMatchSource) NewMatch(playerA, playerB uuid.UUID) (*models.Match, []outbox.Pending, error) {
	now := s.clock.Now().UTC()
	deadline := now.Add(30 * time.Second)
	m := &models.Match{
		ID:           uuid.New(),
		Players:      models.Players{A: playerA, B: playerB},
		TurnPlayer:   playerA,
		TurnDeadline: &deadline,
		Status:       models.MatchStatusActive,
		Version:      1,
		CreatedAt:    now,
	}
	s.matches[m.ID] = m
	return m, nil, nil
}

// preload registers an active match with pointers for both players.
func (s *memMatchSource) preload(playerA, playerB uuid.UUID) *models.Match {
	m, _, _ := s.NewMatch(playerA, playerB)
	s.pointers[playerA] = &models.ActiveMatch{PlayerID: playerA, MatchID: m.ID, Role: models.RoleA}
	s.pointers[playerB] = &models.ActiveMatch{PlayerID: playerB, MatchID: m.ID, Role: models.RoleB}
	return m
}

func newQueueApp(t *testing.T) (*queue.App, *memQueueRepo, *memMatchSource, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	repo := &memQueueRepo{}
	matches := newMemMatchSource(clock)
	app := queue.NewApp(repo, matches, clock, queue.DefaultConfig(), zerolog.Nop())
	return app, repo, matches, clock
}

func TestJoinQueuesWhenNobodyCompatible(t *testing.T) {
	app, repo, _, _ := newQueueApp(t)
	ctx := context.Background()

	res, err := app.Join(ctx, uuid.New(), 1000, "")
	require.NoError(t, err)
	assert.Equal(t, queue.JoinStateQueued, res.State)
	require.Len(t, repo.entries, 1)
	assert.Equal(t, "ranked", repo.entries[0].Mode)
}

func TestJoinPairsWithinBaseWindow(t *testing.T) {
	app, repo, _, _ := newQueueApp(t)
	ctx := context.Background()
	waiter, joiner := uuid.New(), uuid.New()

	_, err := app.Join(ctx, waiter, 1000, "ranked")
	require.NoError(t, err)

	res, err := app.Join(ctx, joiner, 1150, "ranked")
	require.NoError(t, err)
	assert.Equal(t, queue.JoinStateMatched, res.State)
	require.NotNil(t, res.MatchID)
	assert.Equal(t, models.RoleB, res.Role)
	require.NotNil(t, res.OpponentID)
	assert.Equal(t, waiter, *res.OpponentID)
	assert.Empty(t, repo.entries)
}

func TestConcurrentJoinsProduceOneMatch(t *testing.T) {
	app, repo, matches, _ := newQueueApp(t)
	ctx := context.Background()
	players := [2]uuid.UUID{uuid.New(), uuid.New()}

	var wg sync.WaitGroup
	var results [2]*queue.JoinResult
	var errs [2]error
	for i := range players {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = app.Join(ctx, players[i], 1000, "ranked")
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// Whichever call lost the race queued; the other paired with it.
	var matched, queued int
	for _, res := range results {
		switch res.State {
		case queue.JoinStateMatched:
			matched++
			require.NotNil(t, res.MatchID)
		case queue.JoinStateQueued:
			queued++
		}
	}
	assert.Equal(t, 1, matched)
	assert.Equal(t, 1, queued)
	assert.Len(t, matches.matches, 1)
	assert.Empty(t, repo.entries)
}

func TestJoinSkipsCandidateOutsideWindow(t *testing.T) {
	app, repo, _, _ := newQueueApp(t)
	ctx := context.Background()

	_, err := app.Join(ctx, uuid.New(), 1000, "ranked")
	require.NoError(t, err)

	res, err := app.Join(ctx, uuid.New(), 1151, "ranked")
	require.NoError(t, err)
	assert.Equal(t, queue.JoinStateQueued, res.State)
	assert.Len(t, repo.entries, 2)
}

func TestWindowWidensWithCandidateWait(t *testing.T) {
	app, _, _, clock := newQueueApp(t)
	ctx := context.Background()
	waiter := uuid.New()

	_, err := app.Join(ctx, waiter, 1000, "ranked")
	require.NoError(t, err)

	// After 20s the waiter's window is 150 + 2*50 = 250.
	clock.Advance(20 * time.Second)
	res, err := app.Join(ctx, uuid.New(), 1250, "ranked")
	require.NoError(t, err)
	assert.Equal(t, queue.JoinStateMatched, res.State)
	assert.Equal(t, waiter, *res.OpponentID)
}

func TestJoinPicksOldestCompatibleWaiter(t *testing.T) {
	app, _, _, clock := newQueueApp(t)
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	_, err := app.Join(ctx, first, 1000, "ranked")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = app.Join(ctx, second, 1000, "ranked")
	require.NoError(t, err)

	res, err := app.Join(ctx, uuid.New(), 1000, "ranked")
	require.NoError(t, err)
	assert.Equal(t, queue.JoinStateMatched, res.State)
	assert.Equal(t, first, *res.OpponentID)
}

func TestJoinWhileQueuedIsIdempotent(t *testing.T) {
	app, repo, _, _ := newQueueApp(t)
	ctx := context.Background()
	player := uuid.New()

	_, err := app.Join(ctx, player, 1000, "ranked")
	require.NoError(t, err)
	res, err := app.Join(ctx, player, 1000, "ranked")
	require.NoError(t, err)
	assert.Equal(t, queue.JoinStateQueued, res.State)
	assert.Len(t, repo.entries, 1)
}

func TestJoinResumesActiveMatch(t *testing.T) {
	app, repo, matches, _ := newQueueApp(t)
	ctx := context.Background()
	playerA, playerB := uuid.New(), uuid.New()
	m := matches.preload(playerA, playerB)

	res, err := app.Join(ctx, playerB, 1000, "ranked")
	require.NoError(t, err)
	assert.Equal(t, queue.JoinStateResumed, res.State)
	assert.Equal(t, m.ID, *res.MatchID)
	assert.Equal(t, models.RoleB, res.Role)
	assert.Equal(t, playerA, *res.OpponentID)
	require.NotNil(t, res.Board)
	assert.Empty(t, repo.entries)
}

func TestJoinDefaultsAndBoundsRating(t *testing.T) {
	app, repo, _, _ := newQueueApp(t)
	ctx := context.Background()

	_, err := app.Join(ctx, uuid.New(), 0, "ranked")
	require.NoError(t, err)
	require.Len(t, repo.entries, 1)
	assert.Equal(t, queue.DefaultRating, repo.entries[0].Rating)

	_, err = app.Join(ctx, uuid.New(), -5, "ranked")
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	_, err = app.Join(ctx, uuid.New(), queue.MaxRating+1, "ranked")
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestJoinRejectsOversizedMode(t *testing.T) {
	app, _, _, _ := newQueueApp(t)

	long := make([]byte, 51)
	for i := range long {
		long[i] = 'x'
	}
	_, err := app.Join(context.Background(), uuid.New(), 1000, string(long))
	assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
}

func TestLeaveIsIdempotent(t *testing.T) {
	app, repo, _, _ := newQueueApp(t)
	ctx := context.Background()
	player := uuid.New()

	_, err := app.Join(ctx, player, 1000, "ranked")
	require.NoError(t, err)
	require.NoError(t, app.Leave(ctx, player))
	assert.Empty(t, repo.entries)
	require.NoError(t, app.Leave(ctx, player))
}

func TestCleanupDropsStaleEntries(t *testing.T) {
	app, repo, _, clock := newQueueApp(t)
	ctx := context.Background()

	_, err := app.Join(ctx, uuid.New(), 1000, "ranked")
	require.NoError(t, err)
	clock.Advance(61 * time.Second)
	_, err = app.Join(ctx, uuid.New(), 5000, "ranked")
	require.NoError(t, err)

	removed, err := app.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Len(t, repo.entries, 1)
}
