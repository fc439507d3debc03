package sweeper

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

	"github.com/oyunlab/quizgrid/go/internal/match"
)

// fakeEngine holds deadlines in memory; ExpireTurn removes the deadline and
// reports the call on expired.
type fakeEngine struct {
	mu           sync.Mutex
	deadlines    map[uuid.UUID]time.Time
	expired      chan uuid.UUID
	listDueCalls int

	// holdExpire, when non-nil, blocks ExpireTurn until the channel is
	// closed, keeping the match in flight.
	holdExpire chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		deadlines: make(map[uuid.UUID]time.Time),
		expired:   make(chan uuid.UUID, 16),
	}
}

func (e *fakeEngine) add(matchID uuid.UUID, deadline time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deadlines[matchID] = deadline
}

func (e *fakeEngine) NextDeadline(context.Context) (*match.NextDeadline, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var nd *match.NextDeadline
	for id, d := range e.deadlines {
		if nd == nil || d.Before(nd.Deadline) {
			nd = &match.NextDeadline{MatchID: id, Deadline: d}
		}
	}
	return nd, nil
}

func (e *fakeEngine) ListDue(_ context.Context, now time.Time, limit int32) ([]uuid.UUID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listDueCalls++
	var due []uuid.UUID
	for id, d := range e.deadlines {
		if !d.After(now) && int32(len(due)) < limit {
			due = append(due, id)
		}
	}
	return due, nil
}

func (e *fakeEngine) ExpireTurn(_ context.Context, matchID uuid.UUID) error {
	e.mu.Lock()
	hold := e.holdExpire
	e.mu.Unlock()
	if hold != nil {
		<-hold
	}
	e.mu.Lock()
	delete(e.deadlines, matchID)
	e.mu.Unlock()
	e.expired <- matchID
	return nil
}

func (e *fakeEngine) listDueCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listDueCalls
}

func startSweeper(t *testing.T, engine *fakeEngine, clock clockwork.Clock) (*Sweeper, context.CancelFunc) {
	t.Helper()
	s := New(engine, clock, DefaultConfig(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("sweeper did not shut down")
		}
	})
	return s, cancel
}

func waitExpired(t *testing.T, engine *fakeEngine, want uuid.UUID) {
	t.Helper()
	select {
	case got := <-engine.expired:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the sweeper to expire the match")
	}
}

// waitExpiredWhileAdvancing drives the fake clock forward in small steps
// until the expiry lands, so the test does not depend on whether the sweep
// loop armed its timer before or after an advance.
func waitExpiredWhileAdvancing(t *testing.T, engine *fakeEngine, clock *clockwork.FakeClock, want uuid.UUID) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-engine.expired:
			assert.Equal(t, want, got)
			return
		case <-deadline:
			t.Fatal("expected the sweeper to expire the match")
		default:
			clock.Advance(time.Second)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestSweeperExpiresOverdueMatch(t *testing.T) {
	engine := newFakeEngine()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	matchID := uuid.New()
	engine.add(matchID, clock.Now().Add(-time.Second))

	startSweeper(t, engine, clock)
	waitExpired(t, engine, matchID)
}

func TestSweeperWaitsForFutureDeadline(t *testing.T) {
	engine := newFakeEngine()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	matchID := uuid.New()
	engine.add(matchID, clock.Now().Add(30*time.Second))

	startSweeper(t, engine, clock)

	select {
	case <-engine.expired:
		t.Fatal("match expired before its deadline")
	case <-time.After(50 * time.Millisecond):
	}

	waitExpiredWhileAdvancing(t, engine, clock, matchID)
}

func TestSweeperWakePicksUpNewDeadline(t *testing.T) {
	engine := newFakeEngine()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	s, _ := startSweeper(t, engine, clock)

	// The queue was empty at startup; a write lands an already-due
	// deadline and pokes the sweeper.
	matchID := uuid.New()
	engine.add(matchID, clock.Now().Add(-time.Second))
	s.Wake()

	waitExpired(t, engine, matchID)
}

func TestSweeperBacksOffWhileExpiryInFlight(t *testing.T) {
	engine := newFakeEngine()
	engine.holdExpire = make(chan struct{})
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	matchID := uuid.New()
	engine.add(matchID, clock.Now().Add(-time.Second))

	startSweeper(t, engine, clock)

	// Let the loop dispatch the match and settle; the worker is stuck in
	// ExpireTurn, so the deadline stays visible the whole time.
	time.Sleep(150 * time.Millisecond)
	before := engine.listDueCount()
	time.Sleep(150 * time.Millisecond)
	after := engine.listDueCount()
	assert.LessOrEqual(t, after-before, 1, "loop must not re-scan while the match is in flight")

	close(engine.holdExpire)
	waitExpired(t, engine, matchID)
}

func TestSweeperHandlesBatchOfDueMatches(t *testing.T) {
	engine := newFakeEngine()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	want := make(map[uuid.UUID]bool)
	for i := 0; i < 5; i++ {
		id := uuid.New()
		want[id] = true
		engine.add(id, clock.Now().Add(-time.Second))
	}

	startSweeper(t, engine, clock)

	for i := 0; i < 5; i++ {
		select {
		case got := <-engine.expired:
			require.True(t, want[got], "unexpected match expired")
			delete(want, got)
		case <-time.After(2 * time.Second):
			t.Fatal("not all due matches expired")
		}
	}
	assert.Empty(t, want)
}
