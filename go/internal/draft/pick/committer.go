package pick

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/models"
)

// TurnWriter is what the committer needs from the store.
type TurnWriter interface {
	InsertPick(ctx context.Context, pick models.DraftPick) error
	MarkPlayerDrafted(ctx context.Context, leagueID, playerID, captainID uuid.UUID, pickNumber int) (bool, error)
	// UpdateTurn applies a conditional league update and reports whether a row matched.
	UpdateTurn(ctx context.Context, upd TurnUpdate) (bool, error)
}

// CommitRequest carries the validated pick and the index it was validated against.
type CommitRequest struct {
	LeagueID      uuid.UUID
	ExpectedIndex int
	TotalPicks    int
	Round         int
	CaptainID     uuid.UUID
	PlayerID      uuid.UUID
	Auto          bool
	Actor         models.Actor
}

// CommitResult describes the league position after a successful transition.
type CommitResult struct {
	Pick      *models.DraftPick
	NextIndex int
	Completed bool
	StartedAt *time.Time
}

// Committer owns the optimistic concurrency protocol. It is the only writer of
// current_pick_index: every league pointer change goes through UpdateTurn from here.
type Committer struct {
	store    TurnWriter
	rollback *RollbackCoordinator
	clock    clockwork.Clock
}

// NewCommitter creates a new Committer
func NewCommitter(store TurnWriter, rollback *RollbackCoordinator, clock clockwork.Clock) *Committer {
	return &Committer{
		store:    store,
		rollback: rollback,
		clock:    clock,
	}
}

// Commit records the pick, marks the player drafted and advances the league pointer from
// ExpectedIndex. A zero-row pointer update is a lost race; any store error is a CommitError
// after the already-applied steps are rolled back.
func (c *Committer) Commit(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	now := c.clock.Now()
	pick := models.DraftPick{
		LeagueID:   req.LeagueID,
		PickNumber: req.ExpectedIndex,
		Round:      req.Round,
		CaptainID:  req.CaptainID,
		PlayerID:   req.PlayerID,
		AutoPick:   req.Auto,
		CreatedAt:  now,
	}

	// 1) append the pick record
	if err := c.store.InsertPick(ctx, pick); err != nil {
		if errors.Is(err, ErrPickExists) {
			return nil, ErrRaceLost
		}
		return nil, &CommitError{Step: StepInsertPick, RolledBack: true, Err: err}
	}

	undo := RollbackRequest{
		LeagueID:   req.LeagueID,
		PickNumber: req.ExpectedIndex,
		CaptainID:  req.CaptainID,
		PlayerID:   req.PlayerID,
		Actor:      req.Actor,
	}

	// 2) mark the player drafted
	marked, err := c.store.MarkPlayerDrafted(ctx, req.LeagueID, req.PlayerID, req.CaptainID, req.ExpectedIndex)
	if err != nil {
		undo.ClearPlayer = true
		undo.Reason = "mark player failed"
		rolledBack := c.rollback.Rollback(ctx, undo)
		return nil, &CommitError{Step: StepMarkPlayer, RolledBack: rolledBack, Err: err}
	}
	if !marked {
		undo.Reason = "player drafted concurrently"
		c.rollback.Rollback(ctx, undo)
		return nil, ErrPlayerTaken
	}

	// 3) conditionally advance the league pointer
	upd := c.advance(req.LeagueID, req.ExpectedIndex, req.TotalPicks, now)
	advanced, err := c.store.UpdateTurn(ctx, upd)
	if err != nil {
		undo.ClearPlayer = true
		undo.Reason = "advance turn failed"
		rolledBack := c.rollback.Rollback(ctx, undo)
		return nil, &CommitError{Step: StepAdvanceTurn, RolledBack: rolledBack, Err: err}
	}
	if !advanced {
		// the pointer moved under us, so this pick is no longer in flight
		undo.ClearPlayer = true
		undo.Reason = "turn advanced concurrently"
		c.rollback.Rollback(ctx, undo)
		return nil, ErrRaceLost
	}

	return &CommitResult{
		Pick:      &pick,
		NextIndex: upd.NextIndex,
		Completed: upd.NextStatus == models.LeagueStatusCompleted,
		StartedAt: upd.PickStartedAt,
	}, nil
}

// Skip advances the league pointer without assigning a player.
func (c *Committer) Skip(ctx context.Context, leagueID uuid.UUID, expectedIndex, totalPicks int) (*CommitResult, error) {
	upd := c.advance(leagueID, expectedIndex, totalPicks, c.clock.Now())
	advanced, err := c.store.UpdateTurn(ctx, upd)
	if err != nil {
		return nil, &CommitError{Step: StepAdvanceTurn, RolledBack: true, Err: err}
	}
	if !advanced {
		return nil, ErrRaceLost
	}
	return &CommitResult{
		NextIndex: upd.NextIndex,
		Completed: upd.NextStatus == models.LeagueStatusCompleted,
		StartedAt: upd.PickStartedAt,
	}, nil
}

// Pause stops the clock at expectedIndex without moving the pointer.
func (c *Committer) Pause(ctx context.Context, leagueID uuid.UUID, expectedIndex int) error {
	paused, err := c.store.UpdateTurn(ctx, TurnUpdate{
		LeagueID:       leagueID,
		ExpectedIndex:  expectedIndex,
		ExpectedStatus: models.LeagueStatusInProgress,
		NextIndex:      expectedIndex,
		NextStatus:     models.LeagueStatusPaused,
	})
	if err != nil {
		return &CommitError{Step: StepAdvanceTurn, RolledBack: true, Err: err}
	}
	if !paused {
		return ErrRaceLost
	}
	return nil
}

// Transition moves a league between lifecycle states at its current index. Entering
// in_progress starts the clock; any other status stops it.
func (c *Committer) Transition(ctx context.Context, league *models.League, next models.LeagueStatus) (*CommitResult, error) {
	var startedAt *time.Time
	if next == models.LeagueStatusInProgress {
		now := c.clock.Now()
		startedAt = &now
	}

	moved, err := c.store.UpdateTurn(ctx, TurnUpdate{
		LeagueID:       league.ID,
		ExpectedIndex:  league.CurrentPickIndex,
		ExpectedStatus: league.Status,
		NextIndex:      league.CurrentPickIndex,
		NextStatus:     next,
		PickStartedAt:  startedAt,
	})
	if err != nil {
		return nil, &CommitError{Step: StepAdvanceTurn, RolledBack: true, Err: err}
	}
	if !moved {
		return nil, ErrRaceLost
	}
	return &CommitResult{
		NextIndex: league.CurrentPickIndex,
		Completed: next == models.LeagueStatusCompleted,
		StartedAt: startedAt,
	}, nil
}

// Rewind moves the pointer back to toIndex. This is the only path that decreases
// current_pick_index and is used by explicit undo.
func (c *Committer) Rewind(ctx context.Context, league *models.League, toIndex int) (*CommitResult, error) {
	nextStatus := models.LeagueStatusInProgress
	var startedAt *time.Time
	if league.Status == models.LeagueStatusPaused {
		nextStatus = models.LeagueStatusPaused
	} else {
		now := c.clock.Now()
		startedAt = &now
	}

	rewound, err := c.store.UpdateTurn(ctx, TurnUpdate{
		LeagueID:       league.ID,
		ExpectedIndex:  league.CurrentPickIndex,
		ExpectedStatus: league.Status,
		NextIndex:      toIndex,
		NextStatus:     nextStatus,
		PickStartedAt:  startedAt,
	})
	if err != nil {
		return nil, &CommitError{Step: StepAdvanceTurn, RolledBack: true, Err: err}
	}
	if !rewound {
		return nil, ErrRaceLost
	}
	return &CommitResult{NextIndex: toIndex, StartedAt: startedAt}, nil
}

// advance builds the conditional update for moving past expectedIndex. The final slot
// completes the draft and leaves the index on that slot.
func (c *Committer) advance(leagueID uuid.UUID, expectedIndex, totalPicks int, now time.Time) TurnUpdate {
	upd := TurnUpdate{
		LeagueID:       leagueID,
		ExpectedIndex:  expectedIndex,
		ExpectedStatus: models.LeagueStatusInProgress,
	}
	if expectedIndex+1 >= totalPicks {
		upd.NextIndex = expectedIndex
		upd.NextStatus = models.LeagueStatusCompleted
		return upd
	}
	upd.NextIndex = expectedIndex + 1
	upd.NextStatus = models.LeagueStatusInProgress
	upd.PickStartedAt = &now
	return upd
}
