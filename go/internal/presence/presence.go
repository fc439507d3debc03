// Package presence tracks which players currently hold a live gateway
// connection. Each connection refreshes a TTL key in Redis; a key expiring
// means the player dropped without a clean disconnect.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyPrefix  = "presence:"
	defaultTTL = 30 * time.Second
)

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Tracker maintains the per-player presence keys.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Tracker{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "presence").Logger(),
	}
}

// Heartbeat marks the player online and extends the TTL.
func (t *Tracker) Heartbeat(ctx context.Context, playerID uuid.UUID) error {
	if err := t.client.Set(ctx, key(playerID), time.Now().UTC().Format(time.RFC3339), t.ttl).Err(); err != nil {
		return fmt.Errorf("presence heartbeat: %w", err)
	}
	return nil
}

// Clear drops the player's presence key on clean disconnect.
func (t *Tracker) Clear(ctx context.Context, playerID uuid.UUID) error {
	if err := t.client.Del(ctx, key(playerID)).Err(); err != nil {
		return fmt.Errorf("presence clear: %w", err)
	}
	return nil
}

// Online reports whether the player has a live presence key.
func (t *Tracker) Online(ctx context.Context, playerID uuid.UUID) (bool, error) {
	n, err := t.client.Exists(ctx, key(playerID)).Result()
	if err != nil {
		return false, fmt.Errorf("presence lookup: %w", err)
	}
	return n > 0, nil
}

// KeepAlive refreshes the player's key every interval until ctx ends, then
// clears it. Run it per connection.
func (t *Tracker) KeepAlive(ctx context.Context, playerID uuid.UUID, interval time.Duration) {
	if interval <= 0 {
		interval = t.ttl / 3
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := t.Heartbeat(ctx, playerID); err != nil {
		t.logger.Warn().Err(err).Stringer("player_id", playerID).Msg("initial heartbeat failed")
	}
	for {
		select {
		case <-ctx.Done():
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := t.Clear(cleanupCtx, playerID); err != nil {
				t.logger.Warn().Err(err).Stringer("player_id", playerID).Msg("presence cleanup failed")
			}
			return
		case <-ticker.C:
			if err := t.Heartbeat(ctx, playerID); err != nil {
				t.logger.Warn().Err(err).Stringer("player_id", playerID).Msg("heartbeat failed")
			}
		}
	}
}

// Watch polls the player's presence and reports transitions on the
// returned channel until ctx ends. The first observation is always sent.
func (t *Tracker) Watch(ctx context.Context, playerID uuid.UUID, interval time.Duration) <-chan bool {
	if interval <= 0 {
		interval = t.ttl / 3
	}
	out := make(chan bool, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last *bool
		for {
			online, err := t.Online(ctx, playerID)
			if err != nil {
				t.logger.Warn().Err(err).Stringer("player_id", playerID).Msg("presence watch lookup failed")
			} else if last == nil || *last != online {
				select {
				case out <- online:
				case <-ctx.Done():
					return
				}
				v := online
				last = &v
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

// Close releases the Redis client.
func (t *Tracker) Close() error { return t.client.Close() }

func key(playerID uuid.UUID) string { return keyPrefix + playerID.String() }
