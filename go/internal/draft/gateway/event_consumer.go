package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draft/outbox"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConsumerConfig struct {
	Connection outbox.JetStreamConfig
	Consumer   outbox.ConsumerSpec
}

func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		Connection: outbox.DefaultJetStreamConfig(),
		Consumer: outbox.ConsumerSpec{
			Name:          "draftroom-gateway",
			Description:   "Draft room WebSocket gateway",
			MaxDeliver:    5,
			AckWait:       30 * time.Second,
			MaxAckPending: 100,
		},
	}
}

// Broadcaster fans an event out to the sockets watching a league.
type Broadcaster interface {
	BroadcastToLeague(leagueID uuid.UUID, event *LeagueEvent)
}

// EventConsumer forwards events from the stream to league rooms.
type EventConsumer struct {
	broadcaster Broadcaster
	clock       clockwork.Clock
	bus         *outbox.Bus
	consumer    jetstream.Consumer
}

func NewEventConsumer(ctx context.Context, b Broadcaster, config JetStreamConsumerConfig) (*EventConsumer, error) {
	bus, err := outbox.DialBus(config.Connection)
	if err != nil {
		return nil, err
	}
	consumer, err := bus.DurableConsumer(ctx, config.Consumer)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return &EventConsumer{
		broadcaster: b,
		clock:       clockwork.NewRealClock(),
		bus:         bus,
		consumer:    consumer,
	}, nil
}

// Start consumes until ctx is cancelled. Envelopes that cannot be decoded are terminated
// rather than redelivered.
func (ec *EventConsumer) Start(ctx context.Context) error {
	cc, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		if err := ec.handleMessage(msg.Data()); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject()).Msg("dropping undeliverable event")
			if err := msg.Term(); err != nil {
				log.Error().Err(err).Msg("failed to terminate message")
			}
			return
		}
		if err := msg.Ack(); err != nil {
			log.Error().Err(err).Msg("failed to ack message")
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer cc.Stop()

	<-ctx.Done()
	return nil
}

func (ec *EventConsumer) handleMessage(data []byte) error {
	var envelope outbox.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	leagueID, err := uuid.Parse(envelope.LeagueID)
	if err != nil {
		return fmt.Errorf("parse league ID: %w", err)
	}

	event, err := toLeagueEvent(envelope.EventID, envelope.EventType, envelope.LeagueID, envelope.Payload, ec.clock.Now())
	if err != nil {
		return err
	}
	if !envelope.Timestamp.IsZero() {
		event.Timestamp = envelope.Timestamp
	}
	ec.broadcaster.BroadcastToLeague(leagueID, event)
	return nil
}

func (ec *EventConsumer) Stop() error {
	ec.bus.Close()
	return nil
}
