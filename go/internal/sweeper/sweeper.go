// Package sweeper enforces turn deadlines. It sleeps until the soonest
// active deadline, then hands every due match to a worker pool that asks
// the match engine to expire the turn. The sweeper is the only component
// that acts on a missed deadline; reads never do.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/oyunlab/quizgrid/go/internal/match"
)

// Engine is the slice of the match app the sweeper drives.
type Engine interface {
	NextDeadline(ctx context.Context) (*match.NextDeadline, error)
	ListDue(ctx context.Context, now time.Time, limit int32) ([]uuid.UUID, error)
	ExpireTurn(ctx context.Context, matchID uuid.UUID) error
}

// Config tunes the sweep loop.
type Config struct {
	// BatchSize caps how many due matches one sweep claims.
	BatchSize int32
	// Workers is the size of the expiry worker pool.
	Workers int
	// IdlePoll is how long to sleep when no deadline exists.
	IdlePoll time.Duration
}

func DefaultConfig() Config {
	return Config{BatchSize: 100, Workers: 10, IdlePoll: 5 * time.Second}
}

// workerSettle is how long the loop backs off when every due match is
// already claimed by a worker.
const workerSettle = 100 * time.Millisecond

type Sweeper struct {
	engine     Engine
	clock      clockwork.Clock
	cfg        Config
	logger     zerolog.Logger
	instanceID string

	wakeCh chan struct{}
	workCh chan uuid.UUID

	inFlight   map[uuid.UUID]bool
	inFlightMu sync.Mutex
}

func New(engine Engine, clock clockwork.Clock, cfg Config, logger zerolog.Logger) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg = DefaultConfig()
	}
	instance := uuid.New().String()[:8]
	return &Sweeper{
		engine:     engine,
		clock:      clock,
		cfg:        cfg,
		logger:     logger.With().Str("component", "sweeper").Str("instance", instance).Logger(),
		instanceID: instance,
		wakeCh:     make(chan struct{}, 1),
		workCh:     make(chan uuid.UUID, cfg.Workers*2),
		inFlight:   make(map[uuid.UUID]bool),
	}
}

// Wake nudges the loop to re-read the next deadline. Called after any write
// that may have produced a sooner deadline than the one being slept on.
func (s *Sweeper) Wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled: sleep until the soonest deadline, claim
// the due matches, fan them out to workers.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info().Int("workers", s.cfg.Workers).Msg("sweeper started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer func() {
		cancelWorkers()
		close(s.workCh)
		wg.Wait()
	}()

	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go s.worker(workerCtx, &wg, i)
	}

	timer := s.clock.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		// Drain a stale wake so the next wait starts clean.
		select {
		case <-s.wakeCh:
		default:
		}

		nd, err := s.engine.NextDeadline(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("fetch next deadline failed")
			if !s.sleep(ctx, timer, time.Second) {
				return nil
			}
			continue
		}

		if nd == nil {
			if !s.sleep(ctx, timer, s.cfg.IdlePoll) {
				return nil
			}
			continue
		}

		if wait := nd.Deadline.Sub(s.clock.Now()); wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.Chan():
			case <-s.wakeCh:
				// A sooner deadline may exist now.
				stopAndDrain(timer)
				continue
			case <-ctx.Done():
				return nil
			}
		}

		due, err := s.engine.ListDue(ctx, s.clock.Now().UTC(), s.cfg.BatchSize)
		if err != nil {
			s.logger.Error().Err(err).Msg("fetch due matches failed")
			if !s.sleep(ctx, timer, time.Second) {
				return nil
			}
			continue
		}
		if len(due) == 0 {
			continue
		}
		s.logger.Debug().Int("count", len(due)).Msg("expiring due matches")

		dispatched := 0
		for _, matchID := range due {
			s.inFlightMu.Lock()
			if s.inFlight[matchID] {
				s.inFlightMu.Unlock()
				continue
			}
			s.inFlight[matchID] = true
			s.inFlightMu.Unlock()

			select {
			case s.workCh <- matchID:
				dispatched++
			case <-ctx.Done():
				s.inFlightMu.Lock()
				delete(s.inFlight, matchID)
				s.inFlightMu.Unlock()
				return nil
			}
		}

		if dispatched == 0 {
			// Everything due is already with a worker. Back off until the
			// workers commit rather than re-reading the same rows.
			if !s.sleep(ctx, timer, workerSettle) {
				return nil
			}
		}
	}
}

func (s *Sweeper) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case matchID, ok := <-s.workCh:
			if !ok {
				return
			}
			if err := s.engine.ExpireTurn(ctx, matchID); err != nil {
				s.logger.Error().
					Err(err).
					Stringer("match_id", matchID).
					Int("worker_id", id).
					Msg("expire turn failed")
			}
			s.inFlightMu.Lock()
			delete(s.inFlight, matchID)
			s.inFlightMu.Unlock()
		}
	}
}

// sleep waits for d, a wake, or cancellation; false means shut down.
func (s *Sweeper) sleep(ctx context.Context, timer clockwork.Timer, d time.Duration) bool {
	timer.Reset(d)
	select {
	case <-timer.Chan():
		return true
	case <-s.wakeCh:
		stopAndDrain(timer)
		return true
	case <-ctx.Done():
		return false
	}
}

func stopAndDrain(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
