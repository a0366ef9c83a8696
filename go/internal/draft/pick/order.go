package pick

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// Order is the draft-order function: it maps a zero-based pick index to the captain on the clock.
type Order struct {
	Type               models.DraftOrderType
	Captains           []uuid.UUID // ordered by draft position
	Rounds             int
	ThirdRoundReversal bool
}

// OrderFor builds the order function for a league.
func OrderFor(league *models.League) Order {
	return Order{
		Type:               league.DraftOrderType,
		Captains:           league.DraftOrder,
		Rounds:             league.Rounds,
		ThirdRoundReversal: league.ThirdRoundReversal,
	}
}

// TotalPicks returns the length of the pick sequence.
func (o Order) TotalPicks() int {
	return o.Rounds * len(o.Captains)
}

// RoundOf returns the 1-indexed round for a pick index.
func (o Order) RoundOf(index int) int {
	if len(o.Captains) == 0 {
		return 0
	}
	return index/len(o.Captains) + 1
}

// PickInRound returns the 1-indexed pick number within its round.
func (o Order) PickInRound(index int) int {
	if len(o.Captains) == 0 {
		return 0
	}
	return index%len(o.Captains) + 1
}

// CaptainAt returns the captain on the clock for a pick index.
func (o Order) CaptainAt(index int) (uuid.UUID, error) {
	if index < 0 || index >= o.TotalPicks() {
		return uuid.Nil, fmt.Errorf("%w: %d of %d", ErrPickOutOfRange, index, o.TotalPicks())
	}

	numCaptains := len(o.Captains)
	slot := index % numCaptains
	if o.reversed(o.RoundOf(index)) {
		slot = numCaptains - 1 - slot
	}
	return o.Captains[slot], nil
}

// reversed reports whether a 1-indexed round runs in reverse draft order.
func (o Order) reversed(round int) bool {
	if o.Type != models.DraftOrderSnake {
		return false
	}
	if o.ThirdRoundReversal && round >= 3 {
		// rounds 2 and 3 both run reversed, then the snake resumes from there
		return round%2 == 1
	}
	return round%2 == 0
}

// IsLast reports whether index is the final slot of the sequence.
func (o Order) IsLast(index int) bool {
	return index >= o.TotalPicks()-1
}
