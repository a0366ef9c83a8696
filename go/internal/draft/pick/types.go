package pick

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// ProposePickRequest represents a request to claim a player for the captain on the clock
type ProposePickRequest struct {
	LeagueID  uuid.UUID    `json:"league_id"`
	CaptainID uuid.UUID    `json:"captain_id"`
	PlayerID  uuid.UUID    `json:"player_id"`
	Actor     models.Actor `json:"actor"`
	// ExpectedPickNumber is the pick the caller believes is on the clock (Turn.PickNumber).
	// When set, a pick aimed at a slot that has since closed is rejected instead of landing
	// on a later slot.
	ExpectedPickNumber *int `json:"expected_pick_number,omitempty"`
}

// ProposePickResult is the outcome of a proposal. Rejections are results, not errors.
type ProposePickResult struct {
	Accepted        bool              `json:"accepted"`
	RejectionReason RejectionReason   `json:"rejection_reason,omitempty"`
	Detail          string            `json:"detail,omitempty"`
	Pick            *models.DraftPick `json:"pick,omitempty"`
	Completed       bool              `json:"completed"`
	Turn            *Turn             `json:"turn,omitempty"`
}

// Turn describes who is on the clock.
type Turn struct {
	LeagueID   uuid.UUID           `json:"league_id"`
	Status     models.LeagueStatus `json:"status"`
	PickNumber int                 `json:"pick_number"`
	Round      int                 `json:"round"`
	CaptainID  uuid.UUID           `json:"captain_id"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	Deadline   *time.Time          `json:"deadline,omitempty"`
}

// TurnUpdate is the conditional write applied to a league row. It only lands when the stored
// row still has ExpectedIndex and ExpectedStatus.
type TurnUpdate struct {
	LeagueID       uuid.UUID
	ExpectedIndex  int
	ExpectedStatus models.LeagueStatus
	NextIndex      int
	NextStatus     models.LeagueStatus
	PickStartedAt  *time.Time
}

// Snapshot is everything the validator needs, read before any write.
type Snapshot struct {
	League   *models.League
	Captains []models.Captain
	Player   *models.Player // nil when the player does not exist
	// SlotTaken is true when a pick row already exists for the league's current index.
	SlotTaken bool
	// ExpectedPick is the caller's ExpectedPickNumber, and ExpectedSlot the pick row stored at
	// that number when it is behind the current index (nil for a skipped slot).
	ExpectedPick *int
	ExpectedSlot *models.DraftPick
}

func (s *Snapshot) captain(id uuid.UUID) *models.Captain {
	for i := range s.Captains {
		if s.Captains[i].ID == id {
			return &s.Captains[i]
		}
	}
	return nil
}
