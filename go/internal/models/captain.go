package models

import (
	"github.com/google/uuid"
)

// Captain is a participant that owns a fixed slot in a league's turn order.
type Captain struct {
	ID                      uuid.UUID `json:"id"`
	LeagueID                uuid.UUID `json:"league_id"`
	Name                    string    `json:"name"`
	DraftPosition           int       `json:"draft_position"`
	AutoPickEnabled         bool      `json:"auto_pick_enabled"`
	ConsecutiveTimeoutPicks int       `json:"consecutive_timeout_picks"`
}
