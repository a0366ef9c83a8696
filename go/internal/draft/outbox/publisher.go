package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Message headers set on every published event.
const (
	HeaderEventType = "Event-Type"
	HeaderLeagueID  = "League-ID"
)

// JetStreamPublisher publishes outbox events to the event stream. The event id doubles as
// the JetStream message id, so a relay that retries after a lost ack is deduplicated.
type JetStreamPublisher struct {
	bus   *Bus
	clock clockwork.Clock
}

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	bus, err := DialBus(cfg)
	if err != nil {
		return nil, err
	}
	if err := bus.EnsureStream(ctx); err != nil {
		bus.Close()
		return nil, err
	}
	return &JetStreamPublisher{bus: bus, clock: clockwork.NewRealClock()}, nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	msg, err := p.message(event)
	if err != nil {
		return err
	}

	ack, err := p.bus.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(event.ID.String()),
		jetstream.WithExpectStream(p.bus.cfg.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish %s to JetStream: %w", event.EventType, err)
	}

	log.Debug().
		Str("subject", msg.Subject).
		Str("event_id", event.ID.String()).
		Uint64("seq", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("event published")
	return nil
}

func (p *JetStreamPublisher) message(event OutboxEvent) (*nats.Msg, error) {
	data, err := json.Marshal(NewEnvelope(event, p.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	msg := nats.NewMsg(p.bus.cfg.Subject(event.EventType))
	msg.Data = data
	msg.Header.Set(HeaderEventType, event.EventType)
	msg.Header.Set(HeaderLeagueID, event.LeagueID.String())
	return msg, nil
}

func (p *JetStreamPublisher) Close() error {
	p.bus.Close()
	return nil
}

// LogPublisher writes events to the log. It stands in for the bus when none is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, event OutboxEvent) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Str("league_id", event.LeagueID.String()).
		RawJSON("payload", event.Payload).
		Msg("draft event")
	return nil
}
