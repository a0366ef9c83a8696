package pick

import (
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestValidator_Validate(t *testing.T) {
	leagueID := uuid.New()
	a, b := uuid.New(), uuid.New()
	playerID := uuid.New()

	baseSnapshot := func() *Snapshot {
		return &Snapshot{
			League: &models.League{
				ID:             leagueID,
				DraftOrderType: models.DraftOrderLinear,
				Rounds:         2,
				Status:         models.LeagueStatusInProgress,
				DraftOrder:     []uuid.UUID{a, b},
			},
			Captains: []models.Captain{
				{ID: a, LeagueID: leagueID, DraftPosition: 1},
				{ID: b, LeagueID: leagueID, DraftPosition: 2},
			},
			Player: &models.Player{ID: playerID, LeagueID: leagueID, Rank: 1},
		}
	}
	drafted := a
	pickNumber := 0
	expect := func(n int) *int { return &n }
	// a is back on the clock at index 2 and b's slot at index 1 has closed
	secondRound := func(s *Snapshot) {
		s.League.CurrentPickIndex = 2
		s.ExpectedPick = expect(1)
	}

	tests := []struct {
		name    string
		mutate  func(s *Snapshot)
		captain uuid.UUID
		actor   models.ActorType
		want    RejectionReason
	}{
		{
			name:    "valid pick",
			captain: a,
			actor:   models.ActorCaptain,
		},
		{
			name:    "league not started",
			mutate:  func(s *Snapshot) { s.League.Status = models.LeagueStatusNotStarted },
			captain: a,
			actor:   models.ActorCaptain,
			want:    ReasonLeagueNotActive,
		},
		{
			name:    "league paused",
			mutate:  func(s *Snapshot) { s.League.Status = models.LeagueStatusPaused },
			captain: a,
			actor:   models.ActorCaptain,
			want:    ReasonLeagueNotActive,
		},
		{
			name:    "league completed",
			mutate:  func(s *Snapshot) { s.League.Status = models.LeagueStatusCompleted },
			captain: a,
			actor:   models.ActorCaptain,
			want:    ReasonLeagueNotActive,
		},
		{
			name:    "captain from another league",
			captain: uuid.New(),
			actor:   models.ActorCaptain,
			want:    ReasonCaptainNotFound,
		},
		{
			name:    "captain not on the clock",
			captain: b,
			actor:   models.ActorCaptain,
			want:    ReasonWrongTurn,
		},
		{
			name:    "sequence exhausted",
			mutate:  func(s *Snapshot) { s.League.CurrentPickIndex = 4 },
			captain: a,
			actor:   models.ActorCaptain,
			want:    ReasonLeagueNotActive,
		},
		{
			name:    "unknown player",
			mutate:  func(s *Snapshot) { s.Player = nil },
			captain: a,
			actor:   models.ActorCaptain,
			want:    ReasonPlayerNotFound,
		},
		{
			name:    "player from another league",
			mutate:  func(s *Snapshot) { s.Player.LeagueID = uuid.New() },
			captain: a,
			actor:   models.ActorCaptain,
			want:    ReasonPlayerWrongLeague,
		},
		{
			name: "player already drafted",
			mutate: func(s *Snapshot) {
				s.Player.DraftedByCaptainID = &drafted
				s.Player.DraftPickNumber = &pickNumber
			},
			captain: a,
			actor:   models.ActorCaptain,
			want:    ReasonAlreadyDrafted,
		},
		{
			name:    "manual pick after auto-pick claimed the slot",
			mutate:  func(s *Snapshot) { s.SlotTaken = true },
			captain: a,
			actor:   models.ActorCaptain,
			want:    ReasonTimeBarred,
		},
		{
			name:    "system actor is not time barred",
			mutate:  func(s *Snapshot) { s.SlotTaken = true },
			captain: a,
			actor:   models.ActorSystem,
		},
		{
			name:    "expected pick is on the clock",
			mutate:  func(s *Snapshot) { s.ExpectedPick = expect(0) },
			captain: a,
			actor:   models.ActorCaptain,
		},
		{
			name:    "expected pick not on the clock yet",
			mutate:  func(s *Snapshot) { s.ExpectedPick = expect(1) },
			captain: a,
			actor:   models.ActorCaptain,
			want:    ReasonWrongTurn,
		},
		{
			name: "late pick after the slot was auto-picked",
			mutate: func(s *Snapshot) {
				secondRound(s)
				s.ExpectedSlot = &models.DraftPick{PickNumber: 1, CaptainID: b, AutoPick: true}
			},
			captain: a,
			actor:   models.ActorCaptain,
			want:    ReasonTimeBarred,
		},
		{
			name:    "late pick after the slot was skipped",
			mutate:  secondRound,
			captain: a,
			actor:   models.ActorCaptain,
			want:    ReasonTimeBarred,
		},
		{
			name: "late pick after a manual pick",
			mutate: func(s *Snapshot) {
				secondRound(s)
				s.ExpectedSlot = &models.DraftPick{PickNumber: 1, CaptainID: b}
			},
			captain: a,
			actor:   models.ActorCaptain,
			want:    ReasonWrongTurn,
		},
		{
			name:    "stale auto-pick",
			mutate:  secondRound,
			captain: a,
			actor:   models.ActorSystem,
			want:    ReasonWrongTurn,
		},
		{
			name: "status is checked before turn",
			mutate: func(s *Snapshot) {
				s.League.Status = models.LeagueStatusPaused
				s.Player = nil
			},
			captain: b,
			actor:   models.ActorCaptain,
			want:    ReasonLeagueNotActive,
		},
		{
			name:    "turn is checked before player",
			mutate:  func(s *Snapshot) { s.Player = nil },
			captain: b,
			actor:   models.ActorCaptain,
			want:    ReasonWrongTurn,
		},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := baseSnapshot()
			if tt.mutate != nil {
				tt.mutate(snap)
			}

			rej := v.Validate(snap, tt.captain, playerID, tt.actor)
			if tt.want == "" {
				assert.Nil(t, rej)
				return
			}
			if assert.NotNil(t, rej) {
				assert.Equal(t, tt.want, rej.Reason)
				assert.NotEmpty(t, rej.Detail)
			}
		})
	}
}

func TestRejection_Error(t *testing.T) {
	assert.Equal(t, "pick rejected: wrong_turn", (&Rejection{Reason: ReasonWrongTurn}).Error())
	assert.Equal(t, "pick rejected: race_lost: late", reject(ReasonRaceLost, "late").Error())
}
