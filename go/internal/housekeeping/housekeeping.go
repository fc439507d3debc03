// Package housekeeping runs the periodic maintenance jobs: pruning stale
// queue entries and deleting finished matches past their retention window.
package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// QueueJanitor removes queue entries that waited too long.
type QueueJanitor interface {
	Cleanup(ctx context.Context) (int64, error)
}

// MatchJanitor prunes finished matches older than cutoff.
type MatchJanitor interface {
	PruneFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	// QueueInterval is how often stale queue entries are swept.
	QueueInterval time.Duration
	// RetentionInterval is how often finished matches are pruned.
	RetentionInterval time.Duration
	// Retention is how long finished matches are kept for post-game reads.
	Retention time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueInterval:     30 * time.Second,
		RetentionInterval: 1 * time.Hour,
		Retention:         24 * time.Hour,
	}
}

type Runner struct {
	scheduler gocron.Scheduler
	queue     QueueJanitor
	matches   MatchJanitor
	cfg       Config
	logger    zerolog.Logger
}

func NewRunner(queue QueueJanitor, matches MatchJanitor, cfg Config, logger zerolog.Logger) (*Runner, error) {
	if cfg.QueueInterval <= 0 {
		cfg = DefaultConfig()
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Runner{
		scheduler: scheduler,
		queue:     queue,
		matches:   matches,
		cfg:       cfg,
		logger:    logger.With().Str("component", "housekeeping").Logger(),
	}, nil
}

// Start registers the jobs and begins running them.
func (r *Runner) Start(ctx context.Context) error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.cfg.QueueInterval),
		gocron.NewTask(func() {
			if _, err := r.queue.Cleanup(ctx); err != nil {
				r.logger.Error().Err(err).Msg("queue cleanup job failed")
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("register queue cleanup job: %w", err)
	}

	_, err = r.scheduler.NewJob(
		gocron.DurationJob(r.cfg.RetentionInterval),
		gocron.NewTask(func() {
			cutoff := time.Now().UTC().Add(-r.cfg.Retention)
			n, err := r.matches.PruneFinishedBefore(ctx, cutoff)
			if err != nil {
				r.logger.Error().Err(err).Msg("match retention job failed")
				return
			}
			if n > 0 {
				r.logger.Info().Int64("pruned", n).Msg("finished matches pruned")
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("register match retention job: %w", err)
	}

	r.scheduler.Start()
	r.logger.Info().
		Dur("queue_interval", r.cfg.QueueInterval).
		Dur("retention", r.cfg.Retention).
		Msg("housekeeping started")
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs.
func (r *Runner) Stop() error {
	return r.scheduler.Shutdown()
}
