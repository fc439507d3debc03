package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// EventPublisher pushes one outbox event to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// JetStreamConfig holds publisher configuration.
type JetStreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
}

// DefaultJetStreamConfig returns the default publisher configuration.
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "QUIZGRID_EVENTS",
		SubjectPrefix: "quizgrid.match",
	}
}

// JetStreamPublisher publishes outbox events to NATS JetStream, one subject
// per event type.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

// NewJetStreamPublisher connects to NATS and ensures the event stream
// exists.
func NewJetStreamPublisher(ctx context.Context, config JetStreamConfig) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(config.URL,
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     config.StreamName,
		Subjects: []string{config.SubjectPrefix + ".>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", config.StreamName, err)
	}

	return &JetStreamPublisher{nc: nc, js: js, config: config}, nil
}

// Publish sends the event envelope to its per-type subject.
func (p *JetStreamPublisher) Publish(ctx context.Context, event Event) error {
	subject := fmt.Sprintf("%s.%s", p.config.SubjectPrefix, event.EventType)

	envelope := Envelope{
		EventID:   event.ID.String(),
		EventType: event.EventType,
		MatchID:   event.MatchID.String(),
		Timestamp: event.CreatedAt,
		Payload:   event.Payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Close releases the NATS connection.
func (p *JetStreamPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
