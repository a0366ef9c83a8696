package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is a draftable item in a league's pool
type Player struct {
	ID       uuid.UUID `json:"id"`
	LeagueID uuid.UUID `json:"league_id"`
	FullName string    `json:"full_name"`
	Rank     int       `json:"rank"` // lower is better

	DraftedByCaptainID *uuid.UUID `json:"drafted_by_captain_id,omitempty"`
	DraftPickNumber    *int       `json:"draft_pick_number,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsDrafted reports whether the player has been claimed by a captain.
func (p *Player) IsDrafted() bool {
	return p.DraftedByCaptainID != nil || p.DraftPickNumber != nil
}
