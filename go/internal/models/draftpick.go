package models

import (
	"github.com/google/uuid"
	"time"
)

// DraftPick represents a single committed pick in a league's draft.
type DraftPick struct {
	LeagueID   uuid.UUID `json:"league_id"`
	PickNumber int       `json:"pick_number"` // equals current_pick_index at commit time
	Round      int       `json:"round"`
	CaptainID  uuid.UUID `json:"captain_id"`
	PlayerID   uuid.UUID `json:"player_id"`
	AutoPick   bool      `json:"auto_pick"`
	CreatedAt  time.Time `json:"created_at"`
}
