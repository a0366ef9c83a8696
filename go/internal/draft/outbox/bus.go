package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration

	// Stream limits, applied when the relay creates or updates the stream.
	MaxAge          time.Duration
	MaxMsgs         int64
	Replicas        int
	DuplicateWindow time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "DRAFTROOM_EVENTS",
		SubjectPrefix:   "draftroom.events",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// Subject returns the subject an event type is published on.
func (c JetStreamConfig) Subject(eventType string) string {
	return c.SubjectPrefix + "." + eventType
}

// Wildcard matches every draft room event subject.
func (c JetStreamConfig) Wildcard() string {
	return c.SubjectPrefix + ".>"
}

// ConsumerSpec describes a durable, explicitly acked consumer over every event subject.
type ConsumerSpec struct {
	Name          string
	Description   string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
}

// Bus is a NATS connection and its JetStream context, shared by the relay and the
// services that consume the event stream.
type Bus struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	cfg JetStreamConfig
}

// DialBus connects to NATS. The connection reconnects forever unless cfg caps it.
func DialBus(cfg JetStreamConfig) (*Bus, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			ev := log.Error().Err(err)
			if sub != nil {
				ev = ev.Str("subject", sub.Subject)
			}
			ev.Msg("NATS async error")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return &Bus{nc: nc, js: js, cfg: cfg}, nil
}

// EnsureStream creates the event stream or brings its limits in line with the config.
func (b *Bus) EnsureStream(ctx context.Context) error {
	stream, err := b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        b.cfg.StreamName,
		Description: "Draft room events relayed from the outbox",
		Subjects:    []string{b.cfg.Wildcard()},
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
		MaxAge:      b.cfg.MaxAge,
		MaxMsgs:     b.cfg.MaxMsgs,
		Replicas:    b.cfg.Replicas,
		Duplicates:  b.cfg.DuplicateWindow,
	})
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", b.cfg.StreamName, err)
	}
	log.Info().
		Str("stream", b.cfg.StreamName).
		Uint64("messages", stream.CachedInfo().State.Msgs).
		Msg("JetStream stream ready")
	return nil
}

// DurableConsumer creates or updates a consumer that only sees events published after it
// first attaches. Consumers rebuild their state from the database on startup.
func (b *Bus) DurableConsumer(ctx context.Context, spec ConsumerSpec) (jetstream.Consumer, error) {
	consumer, err := b.js.CreateOrUpdateConsumer(ctx, b.cfg.StreamName, jetstream.ConsumerConfig{
		Name:          spec.Name,
		Durable:       spec.Name,
		Description:   spec.Description,
		FilterSubject: b.cfg.Wildcard(),
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
		MaxDeliver:    spec.MaxDeliver,
		AckWait:       spec.AckWait,
		MaxAckPending: spec.MaxAckPending,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure consumer %s: %w", spec.Name, err)
	}
	log.Info().Str("stream", b.cfg.StreamName).Str("consumer", spec.Name).Msg("JetStream consumer ready")
	return consumer, nil
}

func (b *Bus) Close() {
	if b != nil && b.nc != nil {
		b.nc.Close()
	}
}
