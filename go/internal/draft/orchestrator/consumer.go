package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/outbox"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// EventFeedConfig configures the JetStream consumer a standalone arbiter uses to follow
// leagues changed by other processes.
type EventFeedConfig struct {
	Connection outbox.JetStreamConfig
	Consumer   outbox.ConsumerSpec
}

func DefaultEventFeedConfig() EventFeedConfig {
	return EventFeedConfig{
		Connection: outbox.DefaultJetStreamConfig(),
		Consumer: outbox.ConsumerSpec{
			Name:          "draftroom-arbiter",
			Description:   "Draft room timeout arbiter",
			MaxDeliver:    5,
			AckWait:       30 * time.Second,
			MaxAckPending: 100,
		},
	}
}

// EventFeed delivers domain events from JetStream to the orchestrator.
type EventFeed struct {
	orch     *Orchestrator
	bus      *outbox.Bus
	consumer jetstream.Consumer
	cfg      EventFeedConfig
}

// NewEventFeed connects to NATS and attaches the durable consumer. Startup recovery reads
// active leagues from the database, so the feed only needs events from now on.
func NewEventFeed(ctx context.Context, orch *Orchestrator, cfg EventFeedConfig) (*EventFeed, error) {
	bus, err := outbox.DialBus(cfg.Connection)
	if err != nil {
		return nil, err
	}
	consumer, err := bus.DurableConsumer(ctx, cfg.Consumer)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return &EventFeed{orch: orch, bus: bus, consumer: consumer, cfg: cfg}, nil
}

// Run consumes events until ctx is cancelled.
func (f *EventFeed) Run(ctx context.Context) error {
	cc, err := f.consumer.Consume(func(msg jetstream.Msg) {
		if err := f.processEvent(ctx, msg.Data()); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process arbiter event")
			if nakErr := msg.Nak(); nakErr != nil {
				log.Error().Err(nakErr).Msg("failed to NAK message")
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer cc.Stop()

	<-ctx.Done()
	return nil
}

// processEvent decodes an outbox envelope and hands it to the orchestrator.
func (f *EventFeed) processEvent(ctx context.Context, data []byte) error {
	var envelope outbox.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	leagueID, err := uuid.Parse(envelope.LeagueID)
	if err != nil {
		return fmt.Errorf("parse league ID: %w", err)
	}
	return f.orch.HandleDomainEvent(ctx, envelope.EventType, leagueID)
}

// Close closes the NATS connection.
func (f *EventFeed) Close() error {
	f.bus.Close()
	return nil
}
