package events

import (
	"time"
)

// Event types written to the outbox and relayed to the gateway
const (
	TypePickStarted    = "PickStarted"
	TypePickMade       = "PickMade"
	TypePickSkipped    = "PickSkipped"
	TypePickUndone     = "PickUndone"
	TypeDraftStarted   = "DraftStarted"
	TypeDraftPaused    = "DraftPaused"
	TypeDraftResumed   = "DraftResumed"
	TypeDraftCompleted = "DraftCompleted"
)

// Event payload types that are shared between the draft room and gateway packages

// PickStartedPayload is the payload for a PickStarted event
type PickStartedPayload struct {
	LeagueID       string    `json:"league_id"`
	CaptainID      string    `json:"captain_id"`
	Round          int       `json:"round"`
	Pick           int       `json:"pick"`
	OverallPick    int       `json:"overall_pick"`
	StartedAt      time.Time `json:"started_at"`
	TimeoutAt      time.Time `json:"timeout_at"`
	TimePerPickSec int       `json:"time_per_pick_sec"`
}

// PickMadePayload is the payload for a PickMade event
type PickMadePayload struct {
	LeagueID    string    `json:"league_id"`
	CaptainID   string    `json:"captain_id"`
	PlayerID    string    `json:"player_id"`
	Round       int       `json:"round"`
	OverallPick int       `json:"overall_pick"`
	AutoPick    bool      `json:"auto_pick"`
	MadeAt      time.Time `json:"made_at"`
}

// PickSkippedPayload is the payload for a PickSkipped event
type PickSkippedPayload struct {
	LeagueID    string    `json:"league_id"`
	CaptainID   string    `json:"captain_id"`
	OverallPick int       `json:"overall_pick"`
	SkippedAt   time.Time `json:"skipped_at"`
}

// PickUndonePayload is the payload for a PickUndone event
type PickUndonePayload struct {
	LeagueID    string    `json:"league_id"`
	CaptainID   string    `json:"captain_id"`
	PlayerID    string    `json:"player_id,omitempty"`
	OverallPick int       `json:"overall_pick"`
	UndoneAt    time.Time `json:"undone_at"`
}

// DraftStartedPayload is the payload for a DraftStarted event
type DraftStartedPayload struct {
	LeagueID    string    `json:"league_id"`
	OrderType   string    `json:"order_type"`
	StartedAt   time.Time `json:"started_at"`
	TotalRounds int       `json:"total_rounds"`
	TotalPicks  int       `json:"total_picks"`
}

// DraftCompletedPayload is the payload for a DraftCompleted event
type DraftCompletedPayload struct {
	LeagueID    string    `json:"league_id"`
	CompletedAt time.Time `json:"completed_at"`
	TotalPicks  int       `json:"total_picks"`
}

// DraftPausedPayload is the payload for a DraftPaused event
type DraftPausedPayload struct {
	LeagueID string    `json:"league_id"`
	PausedAt time.Time `json:"paused_at"`
	Reason   string    `json:"reason"`
}

// DraftResumedPayload is the payload for a DraftResumed event
type DraftResumedPayload struct {
	LeagueID  string    `json:"league_id"`
	ResumedAt time.Time `json:"resumed_at"`
}
