package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRepo struct {
	events []OutboxEvent
	err    error
}

func (r *recordingRepo) InsertOutboxEvent(_ context.Context, event OutboxEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

// flakyPublisher fails the first failures calls.
type flakyPublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	events   []OutboxEvent
}

func (p *flakyPublisher) Publish(_ context.Context, event OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("bus unavailable")
	}
	p.events = append(p.events, event)
	return nil
}

type turnPayload struct {
	LeagueID    string `json:"league_id"`
	OverallPick int    `json:"overall_pick"`
}

func TestApp_Publish(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC))
	repo := &recordingRepo{}
	app := NewApp(repo, clock)
	leagueID := uuid.New()

	require.NoError(t, app.Publish(context.Background(), leagueID, "PickMade", turnPayload{LeagueID: leagueID.String(), OverallPick: 3}))
	require.Len(t, repo.events, 1)

	event := repo.events[0]
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, leagueID, event.LeagueID)
	assert.Equal(t, "PickMade", event.EventType)
	assert.True(t, event.CreatedAt.Equal(clock.Now()))
	assert.Nil(t, event.SentAt)
	assert.JSONEq(t, `{"league_id":"`+leagueID.String()+`","overall_pick":3}`, string(event.Payload))
}

func TestApp_PublishErrors(t *testing.T) {
	clock := clockwork.NewFakeClock()

	repo := &recordingRepo{}
	err := NewApp(repo, clock).Publish(context.Background(), uuid.New(), "PickMade", nil)
	assert.ErrorContains(t, err, "cannot be empty")
	assert.Empty(t, repo.events)

	err = NewApp(repo, clock).Publish(context.Background(), uuid.New(), "PickMade", make(chan int))
	assert.ErrorContains(t, err, "invalid PickMade payload")

	failing := &recordingRepo{err: errors.New("insert failed")}
	err = NewApp(failing, clock).Publish(context.Background(), uuid.New(), "PickMade", turnPayload{})
	assert.ErrorContains(t, err, "failed to insert PickMade event")
}

func TestDirect_Publish(t *testing.T) {
	pub := &flakyPublisher{}
	direct := NewDirect(pub, clockwork.NewFakeClock())
	leagueID := uuid.New()

	require.NoError(t, direct.Publish(context.Background(), leagueID, "DraftStarted", map[string]string{"league_id": leagueID.String()}))
	require.Len(t, pub.events, 1)
	assert.Equal(t, "DraftStarted", pub.events[0].EventType)
	assert.Equal(t, leagueID, pub.events[0].LeagueID)

	failing := NewDirect(&flakyPublisher{failures: 1}, clockwork.NewFakeClock())
	assert.Error(t, failing.Publish(context.Background(), leagueID, "DraftStarted", map[string]string{}))
}

func TestNewEnvelope(t *testing.T) {
	event := OutboxEvent{
		ID:        uuid.New(),
		LeagueID:  uuid.New(),
		EventType: "PickSkipped",
		Payload:   json.RawMessage(`{"overall_pick":4}`),
	}
	now := time.Date(2026, 9, 1, 20, 0, 0, 0, time.FixedZone("EDT", -4*3600))

	data, err := json.Marshal(NewEnvelope(event, now))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event.ID.String(), decoded["eventId"])
	assert.Equal(t, "PickSkipped", decoded["eventType"])
	assert.Equal(t, event.LeagueID.String(), decoded["leagueId"])
	assert.Equal(t, "2026-09-02T00:00:00Z", decoded["timestamp"])
	assert.Equal(t, map[string]any{"overall_pick": float64(4)}, decoded["payload"])
}

func TestJetStreamConfig_Subject(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	assert.Equal(t, "DRAFTROOM_EVENTS", cfg.StreamName)
	assert.Equal(t, "draftroom.events.PickMade", cfg.Subject("PickMade"))
	assert.Equal(t, "draftroom.events.>", cfg.Wildcard())
}

func TestJetStreamPublisher_Message(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC))
	p := &JetStreamPublisher{bus: &Bus{cfg: DefaultJetStreamConfig()}, clock: clock}
	event := OutboxEvent{
		ID:        uuid.New(),
		LeagueID:  uuid.New(),
		EventType: "DraftPaused",
		Payload:   json.RawMessage(`{"reason":"timeout"}`),
	}

	msg, err := p.message(event)
	require.NoError(t, err)
	assert.Equal(t, "draftroom.events.DraftPaused", msg.Subject)
	assert.Equal(t, "DraftPaused", msg.Header.Get(HeaderEventType))
	assert.Equal(t, event.LeagueID.String(), msg.Header.Get(HeaderLeagueID))

	var envelope Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &envelope))
	assert.Equal(t, event.ID.String(), envelope.EventID)
	assert.True(t, envelope.Timestamp.Equal(clock.Now()))
	assert.JSONEq(t, `{"reason":"timeout"}`, string(envelope.Payload))
}

func TestListener_PublishWithRetry(t *testing.T) {
	event := OutboxEvent{ID: uuid.New(), EventType: "PickMade", Payload: json.RawMessage(`{}`)}
	cfg := ListenerConfig{MaxRetries: 2, RetryDelay: time.Millisecond}

	t.Run("recovers after transient failures", func(t *testing.T) {
		pub := &flakyPublisher{failures: 2}
		l := newListener(nil, pub, cfg, clockwork.NewRealClock())
		require.NoError(t, l.publishWithRetry(context.Background(), event))
		assert.Equal(t, 3, pub.calls)
		assert.Len(t, pub.events, 1)
		assert.Equal(t, RelayStats{Published: 1}, l.Stats())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		pub := &flakyPublisher{failures: 10}
		l := newListener(nil, pub, cfg, clockwork.NewRealClock())
		err := l.publishWithRetry(context.Background(), event)
		assert.ErrorContains(t, err, "publish failed after 3 attempts")
		assert.Equal(t, 3, pub.calls)
		assert.Equal(t, RelayStats{Failed: 1}, l.Stats())
	})

	t.Run("stops when cancelled", func(t *testing.T) {
		pub := &flakyPublisher{failures: 10}
		l := newListener(nil, pub, ListenerConfig{MaxRetries: 5, RetryDelay: time.Hour}, clockwork.NewFakeClock())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := l.publishWithRetry(ctx, event)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, pub.calls)
	})
}

func TestListener_BackoffFollowsClock(t *testing.T) {
	event := OutboxEvent{ID: uuid.New(), EventType: "PickMade", Payload: json.RawMessage(`{}`)}
	clock := clockwork.NewFakeClock()
	pub := &flakyPublisher{failures: 1}
	l := newListener(nil, pub, ListenerConfig{MaxRetries: 3, RetryDelay: time.Minute}, clock)

	done := make(chan error, 1)
	go func() { done <- l.publishWithRetry(context.Background(), event) }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	select {
	case <-done:
		t.Fatal("retried before the backoff elapsed")
	default:
	}

	clock.Advance(time.Minute)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("retry never ran")
	}
	assert.Equal(t, 2, pub.calls)
}

func TestListener_HandleNotificationRejectsBadID(t *testing.T) {
	l := newListener(nil, &flakyPublisher{}, DefaultListenerConfig(), clockwork.NewRealClock())
	err := l.handleNotification(context.Background(), "not-a-uuid")
	assert.ErrorContains(t, err, "invalid event ID")
}
