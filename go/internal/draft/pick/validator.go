package pick

import (
	"errors"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// Validator checks a proposed pick against a snapshot of league state. It never writes.
type Validator struct{}

// NewValidator creates a new Validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns nil when the pick may be committed, or the first failing check as a Rejection.
// Checks run in a fixed order: league status, turn, player, time bar.
func (v *Validator) Validate(snap *Snapshot, captainID, playerID uuid.UUID, actor models.ActorType) *Rejection {
	league := snap.League

	if league.Status != models.LeagueStatusInProgress {
		return reject(ReasonLeagueNotActive, "league status is %s", league.Status)
	}

	if snap.captain(captainID) == nil {
		return reject(ReasonCaptainNotFound, "captain %s is not in league %s", captainID, league.ID)
	}
	onClock, err := OrderFor(league).CaptainAt(league.CurrentPickIndex)
	if err != nil {
		if errors.Is(err, ErrPickOutOfRange) {
			return reject(ReasonLeagueNotActive, "pick sequence exhausted at index %d", league.CurrentPickIndex)
		}
		return reject(ReasonWrongTurn, "%v", err)
	}
	if onClock != captainID {
		return reject(ReasonWrongTurn, "pick %d belongs to captain %s", league.CurrentPickIndex, onClock)
	}

	player := snap.Player
	if player == nil {
		return reject(ReasonPlayerNotFound, "player %s does not exist", playerID)
	}
	if player.LeagueID != league.ID {
		return reject(ReasonPlayerWrongLeague, "player %s belongs to league %s", player.ID, player.LeagueID)
	}
	if player.IsDrafted() {
		return reject(ReasonAlreadyDrafted, "player %s was already drafted", player.ID)
	}

	if actor != models.ActorSystem && snap.SlotTaken {
		return reject(ReasonTimeBarred, "pick %d was already committed by auto-pick", league.CurrentPickIndex)
	}

	return v.checkExpectedPick(snap, actor)
}

// checkExpectedPick rejects a pick aimed at a slot other than the current one. In a snake
// draft the same captain holds consecutive slots, so a late pick would otherwise land on the
// captain's next slot.
func (v *Validator) checkExpectedPick(snap *Snapshot, actor models.ActorType) *Rejection {
	if snap.ExpectedPick == nil {
		return nil
	}
	expected, current := *snap.ExpectedPick, snap.League.CurrentPickIndex
	switch {
	case expected == current:
		return nil
	case expected > current:
		return reject(ReasonWrongTurn, "pick %d is not on the clock yet (current %d)", expected, current)
	case actor == models.ActorSystem:
		return reject(ReasonWrongTurn, "pick %d already closed (current %d)", expected, current)
	case snap.ExpectedSlot == nil:
		return reject(ReasonTimeBarred, "pick %d expired and was skipped", expected)
	case snap.ExpectedSlot.AutoPick:
		return reject(ReasonTimeBarred, "pick %d was already committed by auto-pick", expected)
	default:
		return reject(ReasonWrongTurn, "pick %d was already made (current %d)", expected, current)
	}
}
