package models

import (
	"time"

	"github.com/google/uuid"
)

// ActorType identifies who performed an audited action.
type ActorType string

const (
	ActorManager ActorType = "manager"
	ActorCaptain ActorType = "captain"
	ActorPlayer  ActorType = "player"
	ActorSystem  ActorType = "system"
)

// Actor is the explicit caller identity passed into every state-changing operation.
type Actor struct {
	Type ActorType  `json:"type"`
	ID   *uuid.UUID `json:"id,omitempty"`
	IP   string     `json:"ip,omitempty"`
}

// SystemActor is used for timer-driven actions.
var SystemActor = Actor{Type: ActorSystem}

// AuditLog is an append-only record of a state-changing action.
type AuditLog struct {
	ID        uuid.UUID      `json:"id"`
	Action    string         `json:"action"`
	LeagueID  uuid.UUID      `json:"league_id"`
	ActorType ActorType      `json:"actor_type"`
	ActorID   *uuid.UUID     `json:"actor_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Audit actions.
const (
	AuditPickValidated      = "pick_validated"
	AuditPickRejected       = "pick_rejected"
	AuditPickCommitted      = "pick_committed"
	AuditPickCommitFailed   = "pick_commit_failed"
	AuditPickRaceLost       = "pick_race_lost"
	AuditPickRolledBack     = "pick_rolled_back"
	AuditPickRollbackFailed = "pick_rollback_failed"
	AuditAutoPick           = "auto_pick"
	AuditPickSkipped        = "pick_skipped"
	AuditPickUndone         = "pick_undone"
	AuditDraftStarted       = "draft_started"
	AuditDraftPaused        = "draft_paused"
	AuditDraftResumed       = "draft_resumed"
	AuditDraftCompleted     = "draft_completed"
	AuditTimeoutExpired     = "timeout_expired"
)

// NewAuditLog builds an entry attributed to actor. ID and CreatedAt are assigned by the recorder.
func NewAuditLog(action string, leagueID uuid.UUID, actor Actor, metadata map[string]any) AuditLog {
	return AuditLog{
		Action:    action,
		LeagueID:  leagueID,
		ActorType: actor.Type,
		ActorID:   actor.ID,
		Metadata:  metadata,
		IPAddress: actor.IP,
	}
}
