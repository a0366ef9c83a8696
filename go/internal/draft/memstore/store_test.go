package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/pick"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) (*Store, uuid.UUID, []uuid.UUID, uuid.UUID) {
	t.Helper()
	s := New()
	leagueID := uuid.New()
	a, b := uuid.New(), uuid.New()
	playerID := uuid.New()
	require.NoError(t, s.CreateLeague(context.Background(), models.League{ID: leagueID, Rounds: 1, Status: models.LeagueStatusInProgress},
		[]models.Captain{{ID: b, DraftPosition: 2}, {ID: a, DraftPosition: 1}},
		[]models.Player{{ID: playerID, FullName: "only player", Rank: 1}}))
	return s, leagueID, []uuid.UUID{a, b}, playerID
}

func TestStore_DraftOrderFollowsPosition(t *testing.T) {
	s, leagueID, captains, _ := seeded(t)
	l, err := s.GetLeague(context.Background(), leagueID)
	require.NoError(t, err)
	assert.Equal(t, captains, l.DraftOrder)
}

func TestStore_UpdateTurnIsConditional(t *testing.T) {
	s, leagueID, _, _ := seeded(t)
	ctx := context.Background()
	now := time.Now()

	ok, err := s.UpdateTurn(ctx, pick.TurnUpdate{LeagueID: leagueID, ExpectedIndex: 1, ExpectedStatus: models.LeagueStatusInProgress, NextIndex: 2})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.UpdateTurn(ctx, pick.TurnUpdate{LeagueID: leagueID, ExpectedIndex: 0, ExpectedStatus: models.LeagueStatusPaused, NextIndex: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.UpdateTurn(ctx, pick.TurnUpdate{
		LeagueID:       leagueID,
		ExpectedIndex:  0,
		ExpectedStatus: models.LeagueStatusInProgress,
		NextIndex:      1,
		NextStatus:     models.LeagueStatusInProgress,
		PickStartedAt:  &now,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	l, err := s.GetLeague(ctx, leagueID)
	require.NoError(t, err)
	assert.Equal(t, 1, l.CurrentPickIndex)
}

func TestStore_PickAndPlayerGuards(t *testing.T) {
	s, leagueID, captains, playerID := seeded(t)
	ctx := context.Background()

	p := models.DraftPick{LeagueID: leagueID, PickNumber: 0, CaptainID: captains[0], PlayerID: playerID}
	require.NoError(t, s.InsertPick(ctx, p))
	assert.ErrorIs(t, s.InsertPick(ctx, p), pick.ErrPickExists)

	marked, err := s.MarkPlayerDrafted(ctx, leagueID, playerID, captains[0], 0)
	require.NoError(t, err)
	assert.True(t, marked)
	marked, err = s.MarkPlayerDrafted(ctx, leagueID, playerID, captains[1], 1)
	require.NoError(t, err)
	assert.False(t, marked)

	// only the pick that drafted the player may clear it
	require.NoError(t, s.ClearPlayerDrafted(ctx, playerID, captains[1], 1))
	player, err := s.GetPlayer(ctx, playerID)
	require.NoError(t, err)
	assert.True(t, player.IsDrafted())

	require.NoError(t, s.ClearPlayerDrafted(ctx, playerID, captains[0], 0))
	player, err = s.GetPlayer(ctx, playerID)
	require.NoError(t, err)
	assert.False(t, player.IsDrafted())
}

func TestStore_Faults(t *testing.T) {
	s, leagueID, _, _ := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	s.FailOnce(OpGetLeague, boom)
	_, err := s.GetLeague(ctx, leagueID)
	assert.ErrorIs(t, err, boom)
	_, err = s.GetLeague(ctx, leagueID)
	assert.NoError(t, err)

	s.Fail(OpGetLeague, boom)
	_, err = s.GetLeague(ctx, leagueID)
	assert.ErrorIs(t, err, boom)
	_, err = s.GetLeague(ctx, leagueID)
	assert.ErrorIs(t, err, boom)

	s.ClearFaults()
	_, err = s.GetLeague(ctx, leagueID)
	assert.NoError(t, err)

	_, err = s.GetLeague(ctx, uuid.New())
	assert.ErrorIs(t, err, pick.ErrNotFound)
}
