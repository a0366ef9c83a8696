package league_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/league"
	"github.com/mcdev12/draftroom/go/internal/draft/memstore"
	"github.com/mcdev12/draftroom/go/internal/draft/pick"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureAudit struct {
	mu      sync.Mutex
	actions []string
}

func (c *captureAudit) Record(entry models.AuditLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, entry.Action)
}

type captureEvents struct {
	mu    sync.Mutex
	types []string
}

func (c *captureEvents) Publish(_ context.Context, _ uuid.UUID, eventType string, _ any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, eventType)
	return nil
}

var manager = models.Actor{Type: models.ActorManager}

type leagueFixture struct {
	ctx    context.Context
	store  *memstore.Store
	clock  *clockwork.FakeClock
	audit  *captureAudit
	events *captureEvents
	picks  *pick.App
	app    *league.App
}

func newLeagueFixture() *leagueFixture {
	f := &leagueFixture{
		ctx:    context.Background(),
		store:  memstore.New(),
		clock:  clockwork.NewFakeClockAt(time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)),
		audit:  &captureAudit{},
		events: &captureEvents{},
	}
	f.picks = pick.NewApp(f.store, f.audit, f.events, f.clock)
	f.app = league.NewApp(f.store, f.picks, f.audit, f.events, f.clock)
	return f
}

func validRequest() league.CreateLeagueRequest {
	return league.CreateLeagueRequest{
		Name:               "Thursday league",
		DraftOrderType:     models.DraftOrderSnake,
		ThirdRoundReversal: true,
		Rounds:             3,
		TimeLimitSeconds:   90,
		Captains: []models.Captain{
			{Name: "Casey", DraftPosition: 2},
			{Name: "Jordan", DraftPosition: 1},
			{Name: "Riley", DraftPosition: 3},
		},
		Players: []models.Player{
			{FullName: "Player One", Rank: 1},
			{FullName: "Player Two", Rank: 2},
		},
	}
}

func (f *leagueFixture) create(t *testing.T) *models.League {
	t.Helper()
	l, err := f.app.CreateLeague(f.ctx, validRequest())
	require.NoError(t, err)
	return l
}

func TestCreateLeague(t *testing.T) {
	f := newLeagueFixture()
	l := f.create(t)

	assert.NotEqual(t, uuid.Nil, l.ID)
	assert.Equal(t, models.LeagueStatusNotStarted, l.Status)
	assert.Equal(t, 0, l.CurrentPickIndex)
	assert.Nil(t, l.CurrentPickStartedAt)
	assert.True(t, l.CreatedAt.Equal(f.clock.Now()))

	captains, err := f.store.ListCaptains(f.ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, captains, 3)
	assert.Equal(t, "Jordan", captains[0].Name)
	assert.Equal(t, []uuid.UUID{captains[0].ID, captains[1].ID, captains[2].ID}, l.DraftOrder)

	players, err := f.store.ListAvailablePlayers(f.ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, players, 2)
	for _, p := range players {
		assert.Equal(t, l.ID, p.LeagueID)
		assert.False(t, p.IsDrafted())
	}
}

func TestCreateLeague_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *league.CreateLeagueRequest)
	}{
		{"missing name", func(r *league.CreateLeagueRequest) { r.Name = "" }},
		{"unknown order type", func(r *league.CreateLeagueRequest) { r.DraftOrderType = "auction" }},
		{"reversal on linear", func(r *league.CreateLeagueRequest) { r.DraftOrderType = models.DraftOrderLinear }},
		{"zero rounds", func(r *league.CreateLeagueRequest) { r.Rounds = 0 }},
		{"zero time limit", func(r *league.CreateLeagueRequest) { r.TimeLimitSeconds = 0 }},
		{"no captains", func(r *league.CreateLeagueRequest) { r.Captains = nil }},
		{"zero draft position", func(r *league.CreateLeagueRequest) { r.Captains[0].DraftPosition = 0 }},
		{"duplicate draft position", func(r *league.CreateLeagueRequest) { r.Captains[2].DraftPosition = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLeagueFixture()
			req := validRequest()
			tt.mutate(&req)

			_, err := f.app.CreateLeague(f.ctx, req)
			assert.ErrorIs(t, err, league.ErrInvalidSettings)
		})
	}
}

func TestStartDraft(t *testing.T) {
	f := newLeagueFixture()
	l := f.create(t)

	started, err := f.app.StartDraft(f.ctx, l.ID, manager)
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusInProgress, started.Status)
	assert.Equal(t, 0, started.CurrentPickIndex)
	require.NotNil(t, started.CurrentPickStartedAt)
	assert.True(t, started.CurrentPickStartedAt.Equal(f.clock.Now()))

	stored, err := f.store.GetLeague(f.ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusInProgress, stored.Status)

	assert.Equal(t, []string{events.TypeDraftStarted, events.TypePickStarted}, f.events.types)
	assert.Contains(t, f.audit.actions, models.AuditDraftStarted)

	_, err = f.app.StartDraft(f.ctx, l.ID, manager)
	assert.ErrorIs(t, err, league.ErrInvalidTransition)

	_, err = f.app.StartDraft(f.ctx, uuid.New(), manager)
	assert.ErrorIs(t, err, pick.ErrNotFound)
}

func TestPauseResume(t *testing.T) {
	f := newLeagueFixture()
	l := f.create(t)

	_, err := f.app.PauseDraft(f.ctx, l.ID, "", manager)
	assert.ErrorIs(t, err, league.ErrInvalidTransition)
	_, err = f.app.ResumeDraft(f.ctx, l.ID, manager)
	assert.ErrorIs(t, err, league.ErrInvalidTransition)

	_, err = f.app.StartDraft(f.ctx, l.ID, manager)
	require.NoError(t, err)

	_, err = f.app.ResumeDraft(f.ctx, l.ID, manager)
	assert.ErrorIs(t, err, league.ErrInvalidTransition)

	f.clock.Advance(45 * time.Second)
	paused, err := f.app.PauseDraft(f.ctx, l.ID, "bathroom break", manager)
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusPaused, paused.Status)
	assert.Nil(t, paused.CurrentPickStartedAt)

	_, err = f.app.PauseDraft(f.ctx, l.ID, "", manager)
	assert.ErrorIs(t, err, league.ErrInvalidTransition)

	f.clock.Advance(10 * time.Minute)
	resumed, err := f.app.ResumeDraft(f.ctx, l.ID, manager)
	require.NoError(t, err)
	assert.Equal(t, models.LeagueStatusInProgress, resumed.Status)
	require.NotNil(t, resumed.CurrentPickStartedAt)
	assert.True(t, resumed.CurrentPickStartedAt.Equal(f.clock.Now()))
	assert.True(t, resumed.Deadline().Equal(f.clock.Now().Add(90*time.Second)))

	assert.Contains(t, f.events.types, events.TypeDraftPaused)
	assert.Contains(t, f.events.types, events.TypeDraftResumed)
}

func TestCompletedDraftCannotRestart(t *testing.T) {
	f := newLeagueFixture()
	l := f.create(t)
	l.Status = models.LeagueStatusCompleted
	f.store.SetLeague(*l)

	_, err := f.app.StartDraft(f.ctx, l.ID, manager)
	assert.ErrorIs(t, err, league.ErrInvalidTransition)
	_, err = f.app.PauseDraft(f.ctx, l.ID, "", manager)
	assert.ErrorIs(t, err, league.ErrInvalidTransition)
	_, err = f.app.ResumeDraft(f.ctx, l.ID, manager)
	assert.ErrorIs(t, err, league.ErrInvalidTransition)
}

func TestStartDraft_LostRace(t *testing.T) {
	f := newLeagueFixture()
	l := f.create(t)

	var once sync.Once
	f.store.Before(memstore.OpUpdateTurn, func() {
		once.Do(func() {
			moved := *l
			moved.Status = models.LeagueStatusInProgress
			f.store.SetLeague(moved)
		})
	})

	_, err := f.app.StartDraft(f.ctx, l.ID, manager)
	assert.ErrorIs(t, err, league.ErrInvalidTransition)
}
