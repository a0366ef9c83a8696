package pick

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const rollbackTimeout = 5 * time.Second

// PickEraser is what the rollback coordinator needs from the store.
type PickEraser interface {
	DeletePick(ctx context.Context, leagueID uuid.UUID, pickNumber int) error
	ClearPlayerDrafted(ctx context.Context, playerID, captainID uuid.UUID, pickNumber int) error
}

// AuditRecorder accepts audit entries without blocking.
type AuditRecorder interface {
	Record(entry models.AuditLog)
}

// RollbackRequest identifies the tentatively applied pick to undo.
type RollbackRequest struct {
	LeagueID    uuid.UUID
	PickNumber  int
	CaptainID   uuid.UUID
	PlayerID    uuid.UUID
	ClearPlayer bool
	Reason      string
	Actor       models.Actor
}

// RollbackCoordinator reverses the first two commit steps.
type RollbackCoordinator struct {
	store PickEraser
	audit AuditRecorder
}

// NewRollbackCoordinator creates a new RollbackCoordinator
func NewRollbackCoordinator(store PickEraser, audit AuditRecorder) *RollbackCoordinator {
	return &RollbackCoordinator{
		store: store,
		audit: audit,
	}
}

// Rollback deletes the pick row and optionally clears the player's drafted fields.
// It never returns an error: a failure leaves the store inconsistent, so it is logged at the
// highest severity and audited for operator attention. The result reports whether it succeeded.
func (c *RollbackCoordinator) Rollback(ctx context.Context, req RollbackRequest) bool {
	// the caller's context may already be cancelled; the undo must still run
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	err := c.store.DeletePick(ctx, req.LeagueID, req.PickNumber)
	if err == nil && req.ClearPlayer {
		err = c.store.ClearPlayerDrafted(ctx, req.PlayerID, req.CaptainID, req.PickNumber)
	}

	if err != nil {
		log.WithLevel(zerolog.FatalLevel).
			Err(err).
			Str("league_id", req.LeagueID.String()).
			Int("pick_number", req.PickNumber).
			Str("player_id", req.PlayerID.String()).
			Str("reason", req.Reason).
			Msg("pick rollback failed - store may be inconsistent")

		c.audit.Record(models.NewAuditLog(models.AuditPickRollbackFailed, req.LeagueID, req.Actor, map[string]any{
			"pick_number":  req.PickNumber,
			"player_id":    req.PlayerID.String(),
			"captain_id":   req.CaptainID.String(),
			"clear_player": req.ClearPlayer,
			"reason":       req.Reason,
			"error":        err.Error(),
		}))
		return false
	}

	log.Warn().
		Str("league_id", req.LeagueID.String()).
		Int("pick_number", req.PickNumber).
		Str("reason", req.Reason).
		Msg("pick rolled back")

	c.audit.Record(models.NewAuditLog(models.AuditPickRolledBack, req.LeagueID, req.Actor, map[string]any{
		"pick_number":  req.PickNumber,
		"player_id":    req.PlayerID.String(),
		"captain_id":   req.CaptainID.String(),
		"clear_player": req.ClearPlayer,
		"reason":       req.Reason,
	}))
	return true
}

// nopRecorder discards audit entries.
type nopRecorder struct{}

func (nopRecorder) Record(models.AuditLog) {}
