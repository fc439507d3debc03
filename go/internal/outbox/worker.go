package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oyunlab/quizgrid/go/internal/gamedb"
	"github.com/rs/zerolog/log"
)

// WorkerConfig tunes the outbox relay.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int32
	MaxRetries   int
	RetryDelay   time.Duration
}

// DefaultWorkerConfig returns the default relay configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: 2 * time.Second,
		BatchSize:    100,
		MaxRetries:   3,
		RetryDelay:   time.Second,
	}
}

// Worker relays unsent outbox rows to the bus. Rows are fetched with row
// locks inside a transaction so multiple relay instances never double-send.
type Worker struct {
	db        *sql.DB
	queries   *gamedb.Queries
	publisher EventPublisher
	config    WorkerConfig

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWorker(database *sql.DB, publisher EventPublisher, cfg WorkerConfig) *Worker {
	return &Worker{
		db:        database,
		queries:   gamedb.New(database),
		publisher: publisher,
		config:    cfg,
		stopChan:  make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Dur("poll_interval", w.config.PollInterval).
		Int32("batch_size", w.config.BatchSize).
		Msg("outbox worker started")
	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Info().Msg("outbox worker stopped")
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.processOutbox(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processOutbox(ctx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	txn, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("outbox: failed to begin transaction")
		return
	}
	committed := false
	defer func() {
		if !committed {
			_ = txn.Rollback()
		}
	}()

	qtx := w.queries.WithTx(txn)

	rows, err := qtx.FetchUnsentOutbox(ctx, w.config.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("outbox: failed to fetch unsent events")
		return
	}
	if len(rows) == 0 {
		return
	}

	var sentIDs []uuid.UUID
	for _, row := range rows {
		event := Event{
			ID:        row.ID,
			MatchID:   row.MatchID,
			EventType: row.EventType,
			Payload:   row.Payload,
			CreatedAt: row.CreatedAt,
		}
		if err := w.publishWithRetry(ctx, event); err != nil {
			log.Error().
				Err(err).
				Str("event_id", row.ID.String()).
				Str("event_type", row.EventType).
				Msg("outbox: failed to publish event")
			continue
		}
		sentIDs = append(sentIDs, row.ID)
	}

	if len(sentIDs) > 0 {
		if err := qtx.MarkOutboxSent(ctx, gamedb.MarkOutboxSentParams{
			IDs:    sentIDs,
			SentAt: time.Now(),
		}); err != nil {
			log.Error().Err(err).Msg("outbox: failed to mark events sent")
			return
		}
	}

	if err := txn.Commit(); err != nil {
		log.Error().Err(err).Msg("outbox: failed to commit")
		return
	}
	committed = true

	log.Debug().
		Int("total", len(rows)).
		Int("sent", len(sentIDs)).
		Msg("outbox: processed events")
}

func (w *Worker) publishWithRetry(ctx context.Context, event Event) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}
		if err := w.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}
