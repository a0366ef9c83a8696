package orchestrator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFeed_ProcessEvent(t *testing.T) {
	f := newArbiterFixture(t, fixtureOptions{players: 2})
	feed := &EventFeed{orch: f.orch, cfg: DefaultEventFeedConfig()}

	envelope := func(eventType, leagueID string) []byte {
		data, err := json.Marshal(outbox.Envelope{
			EventID:   uuid.NewString(),
			EventType: eventType,
			LeagueID:  leagueID,
			Timestamp: time.Now(),
			Payload:   json.RawMessage(`{}`),
		})
		require.NoError(t, err)
		return data
	}

	assert.Error(t, feed.processEvent(context.Background(), []byte("{not json")))
	assert.Error(t, feed.processEvent(context.Background(), envelope(events.TypePickMade, "league-7")))

	require.NoError(t, feed.processEvent(context.Background(), envelope(events.TypePickStarted, f.leagueID.String())))
	assert.Equal(t, 1, f.orch.pendingTimers())
	assert.Equal(t, StateOnTheClock, f.orch.State(f.leagueID))
}
