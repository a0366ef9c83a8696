package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// OutboxRepository defines what the app layer needs to write events
type OutboxRepository interface {
	InsertOutboxEvent(ctx context.Context, event OutboxEvent) error
}

// App writes domain events to the outbox
type App struct {
	repo  OutboxRepository
	clock clockwork.Clock
}

// NewApp creates a new outbox App
func NewApp(repo OutboxRepository, clock clockwork.Clock) *App {
	return &App{
		repo:  repo,
		clock: clock,
	}
}

// Publish marshals payload and inserts it into the outbox for the relay to pick up.
func (a *App) Publish(ctx context.Context, leagueID uuid.UUID, eventType string, payload any) error {
	event, err := newEvent(leagueID, eventType, payload, a.clock)
	if err != nil {
		return err
	}

	if err := a.repo.InsertOutboxEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to insert %s event: %w", eventType, err)
	}

	log.Debug().
		Str("league_id", leagueID.String()).
		Str("event_type", eventType).
		Str("event_id", event.ID.String()).
		Msg("outbox event inserted")
	return nil
}

// Direct publishes events straight to a Publisher, bypassing the outbox table. It is used
// when the draft room runs without a database.
type Direct struct {
	publisher Publisher
	clock     clockwork.Clock
}

func NewDirect(publisher Publisher, clock clockwork.Clock) *Direct {
	return &Direct{
		publisher: publisher,
		clock:     clock,
	}
}

func (d *Direct) Publish(ctx context.Context, leagueID uuid.UUID, eventType string, payload any) error {
	event, err := newEvent(leagueID, eventType, payload, d.clock)
	if err != nil {
		return err
	}
	return d.publisher.Publish(ctx, event)
}

func newEvent(leagueID uuid.UUID, eventType string, payload any, clock clockwork.Clock) (OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("invalid %s payload: %w", eventType, err)
	}
	if len(data) == 0 || string(data) == "null" {
		return OutboxEvent{}, fmt.Errorf("invalid %s payload: event payload cannot be empty", eventType)
	}
	return OutboxEvent{
		ID:        uuid.New(),
		LeagueID:  leagueID,
		EventType: eventType,
		Payload:   data,
		CreatedAt: clock.Now(),
	}, nil
}

// ProcessUnsentEvents publishes one batch of unsent events inside a transaction and marks the
// successful ones as sent.
func ProcessUnsentEvents(ctx context.Context, db *sql.DB, batchSize int, processor func(event OutboxEvent) error) (int, error) {
	processed := 0
	err := sqlutil.Run(ctx, db, func(tx *sql.Tx) *Queries { return New(tx) }, func(q *Queries) error {
		events, err := q.FetchUnsentOutbox(ctx, batchSize)
		if err != nil {
			return err
		}

		var sent []uuid.UUID
		for _, event := range events {
			if err := processor(event); err != nil {
				log.Error().
					Err(err).
					Str("event_id", event.ID.String()).
					Str("event_type", event.EventType).
					Msg("failed to process event")
				continue
			}
			sent = append(sent, event.ID)
		}
		processed = len(sent)

		if len(events) > 0 {
			log.Info().
				Int("processed", len(sent)).
				Int("errors", len(events)-len(sent)).
				Int("total", len(events)).
				Msg("processed unsent events batch")
		}
		return q.MarkOutboxSent(ctx, sent)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to process unsent events: %w", err)
	}
	return processed, nil
}
