package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftOrderType defines how turns are distributed across rounds.
type DraftOrderType string

const (
	DraftOrderLinear DraftOrderType = "linear"
	DraftOrderSnake  DraftOrderType = "snake"
)

// LeagueStatus defines the status of a league's draft.
type LeagueStatus string

const (
	LeagueStatusNotStarted LeagueStatus = "not_started"
	LeagueStatusInProgress LeagueStatus = "in_progress"
	LeagueStatusPaused     LeagueStatus = "paused"
	LeagueStatusCompleted  LeagueStatus = "completed"
)

// League is the persistent record of a draft's configuration and current position.
type League struct {
	ID                 uuid.UUID      `json:"id"`
	Name               string         `json:"name"`
	DraftOrderType     DraftOrderType `json:"draft_order_type"`
	ThirdRoundReversal bool           `json:"third_round_reversal"`
	Rounds             int            `json:"rounds"`
	TimeLimitSeconds   int            `json:"time_limit_seconds"`
	Status             LeagueStatus   `json:"status"`

	// DraftOrder holds captain ids ordered by draft position.
	DraftOrder []uuid.UUID `json:"draft_order"`

	CurrentPickIndex     int        `json:"current_pick_index"`
	CurrentPickStartedAt *time.Time `json:"current_pick_started_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TimeLimit returns the per-pick time limit as a duration.
func (l *League) TimeLimit() time.Duration {
	return time.Duration(l.TimeLimitSeconds) * time.Second
}

// Deadline returns when the current pick expires, or nil when nobody is on the clock.
func (l *League) Deadline() *time.Time {
	if l.CurrentPickStartedAt == nil {
		return nil
	}
	d := l.CurrentPickStartedAt.Add(l.TimeLimit())
	return &d
}
