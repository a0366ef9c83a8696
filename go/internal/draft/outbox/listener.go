package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/mcdev12/draftroom/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL   string
	NotifyChannel string
	// SweepInterval bounds how long a row can sit unsent when a notification is lost.
	SweepInterval time.Duration
	PingInterval  time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	BatchSize     int
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel: "draft_outbox_events",
		SweepInterval: 30 * time.Second,
		PingInterval:  90 * time.Second,
		MaxRetries:    5,
		RetryDelay:    200 * time.Millisecond,
		BatchSize:     100,
	}
}

// RelayStats counts what the relay has done since it started.
type RelayStats struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
	Sweeps    int64 `json:"sweeps"`
}

// Listener relays draft_outbox rows to a Publisher. Rows arrive through LISTEN/NOTIFY;
// a periodic sweep catches anything written while the relay was down or disconnected.
type Listener struct {
	db        *sql.DB
	pql       *pq.Listener
	publisher Publisher
	cfg       ListenerConfig
	clock     clockwork.Clock

	published atomic.Int64
	failed    atomic.Int64
	sweeps    atomic.Int64
}

func newListener(db *sql.DB, publisher Publisher, cfg ListenerConfig, clock clockwork.Clock) *Listener {
	return &Listener{
		db:        db,
		publisher: publisher,
		cfg:       cfg,
		clock:     clock,
	}
}

// NewListener subscribes to cfg.NotifyChannel. The connection reconnects on its own
// between 10s and 1m after a failure.
func NewListener(db *sql.DB, publisher Publisher, cfg ListenerConfig, clock clockwork.Clock) (*Listener, error) {
	l := newListener(db, publisher, cfg, clock)
	l.pql = pq.NewListener(cfg.DatabaseURL, 10*time.Second, time.Minute, l.onConnEvent)
	if err := l.pql.Listen(cfg.NotifyChannel); err != nil {
		_ = l.pql.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.NotifyChannel, err)
	}
	return l, nil
}

func (l *Listener) onConnEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
		log.Warn().Err(err).Str("channel", l.cfg.NotifyChannel).Msg("outbox listener lost connection")
	case pq.ListenerEventReconnected:
		log.Info().Str("channel", l.cfg.NotifyChannel).Msg("outbox listener reconnected")
	}
}

// Start blocks until ctx is cancelled, then closes the LISTEN connection.
func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("sweep_interval", l.cfg.SweepInterval).
		Msg("outbox relay started")

	sweep := l.clock.NewTicker(l.cfg.SweepInterval)
	ping := l.clock.NewTicker(l.cfg.PingInterval)
	defer sweep.Stop()
	defer ping.Stop()

	l.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox relay stopping")
			return l.Stop()
		case note := <-l.pql.Notify:
			if note == nil {
				// nil after a reconnect: anything sent while disconnected was lost
				l.sweep(ctx)
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Str("payload", note.Extra).Msg("failed to relay notified event")
			}
		case <-sweep.Chan():
			l.sweep(ctx)
		case <-ping.Chan():
			if err := l.pql.Ping(); err != nil {
				log.Warn().Err(err).Msg("outbox listener ping failed")
			}
		}
	}
}

func (l *Listener) Stop() error {
	if l.pql == nil {
		return nil
	}
	return l.pql.Close()
}

func (l *Listener) Stats() RelayStats {
	return RelayStats{
		Published: l.published.Load(),
		Failed:    l.failed.Load(),
		Sweeps:    l.sweeps.Load(),
	}
}

// handleNotification relays the single event named by the notification payload. The row
// is locked for the duration, so a concurrent sweep or second relay never double-sends it.
func (l *Listener) handleNotification(ctx context.Context, payload string) error {
	id, err := uuid.Parse(payload)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	err = sqlutil.Run(ctx, l.db, func(tx *sql.Tx) *Queries { return New(tx) }, func(q *Queries) error {
		event, err := q.FetchOutboxByID(ctx, id)
		if err != nil {
			return err
		}
		if err := l.publishWithRetry(ctx, *event); err != nil {
			return err
		}
		return q.MarkOutboxSent(ctx, []uuid.UUID{id})
	})
	switch {
	case errors.Is(err, ErrEventNotFound):
		log.Debug().Str("event_id", id.String()).Msg("outbox event already relayed")
		return nil
	case err != nil:
		return err
	}

	log.Debug().Str("event_id", id.String()).Msg("relayed outbox event")
	return nil
}

func (l *Listener) sweep(ctx context.Context) {
	l.sweeps.Add(1)
	n, err := ProcessUnsentEvents(ctx, l.db, l.cfg.BatchSize, func(event OutboxEvent) error {
		return l.publishWithRetry(ctx, event)
	})
	if err != nil {
		log.Error().Err(err).Msg("outbox sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int("relayed", n).Msg("outbox sweep relayed missed events")
	}
}

// publishWithRetry backs off linearly between attempts on the relay's clock.
func (l *Listener) publishWithRetry(ctx context.Context, event OutboxEvent) error {
	var lastErr error
	attempts := l.cfg.MaxRetries + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				l.failed.Add(1)
				return ctx.Err()
			case <-l.clock.After(l.cfg.RetryDelay * time.Duration(attempt-1)):
			}
		}

		lastErr = l.publisher.Publish(ctx, event)
		if lastErr == nil {
			l.published.Add(1)
			return nil
		}
		log.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Str("event_id", event.ID.String()).
			Str("event_type", event.EventType).
			Msg("publish attempt failed")
	}

	l.failed.Add(1)
	return fmt.Errorf("publish failed after %d attempts: %w", attempts, lastErr)
}
