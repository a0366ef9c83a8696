package pick

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// PickRepository defines what the pick app needs from the repository
type PickRepository interface {
	TurnWriter
	PickEraser

	GetLeague(ctx context.Context, leagueID uuid.UUID) (*models.League, error)
	ListLeaguesByStatus(ctx context.Context, status models.LeagueStatus) ([]models.League, error)
	ListCaptains(ctx context.Context, leagueID uuid.UUID) ([]models.Captain, error)
	GetPlayer(ctx context.Context, playerID uuid.UUID) (*models.Player, error)
	GetPick(ctx context.Context, leagueID uuid.UUID, pickNumber int) (*models.DraftPick, error)
	ListPicks(ctx context.Context, leagueID uuid.UUID) ([]models.DraftPick, error)
	// ListAvailablePlayers returns undrafted players ordered by rank.
	ListAvailablePlayers(ctx context.Context, leagueID uuid.UUID) ([]models.Player, error)
	// UpdateCaptainTimeouts increments consecutive_timeout_picks when timedOut, otherwise resets it.
	UpdateCaptainTimeouts(ctx context.Context, captainID uuid.UUID, timedOut bool) error
	// DecrementCaptainTimeouts takes back one timed-out pick, never going below zero.
	DecrementCaptainTimeouts(ctx context.Context, captainID uuid.UUID) error
}

// EventPublisher writes domain events to the outbox.
type EventPublisher interface {
	Publish(ctx context.Context, leagueID uuid.UUID, eventType string, payload any) error
}

// TurnObserver is notified whenever a league's turn state changes.
// Implementations must not block.
type TurnObserver interface {
	TurnChanged(league models.League)
}

// App handles pick business logic
type App struct {
	repo      PickRepository
	validator *Validator
	committer *Committer
	rollback  *RollbackCoordinator
	audit     AuditRecorder
	events    EventPublisher
	clock     clockwork.Clock

	mu        sync.RWMutex
	observers []TurnObserver
}

// NewApp creates a new pick App. audit and events may be nil.
func NewApp(repo PickRepository, audit AuditRecorder, events EventPublisher, clock clockwork.Clock) *App {
	if audit == nil {
		audit = nopRecorder{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	rollback := NewRollbackCoordinator(repo, audit)
	return &App{
		repo:      repo,
		validator: NewValidator(),
		committer: NewCommitter(repo, rollback, clock),
		rollback:  rollback,
		audit:     audit,
		events:    events,
		clock:     clock,
	}
}

// Subscribe registers an observer for turn changes.
func (a *App) Subscribe(o TurnObserver) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

// Committer exposes the committer so lifecycle operations share the same conditional write path.
func (a *App) Committer() *Committer {
	return a.committer
}

// ProposePick validates and commits a pick for the captain on the clock.
// Validation failures and lost races are returned as rejected results, not errors.
func (a *App) ProposePick(ctx context.Context, req ProposePickRequest) (*ProposePickResult, error) {
	if err := a.validateProposePickRequest(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	snap, err := a.loadSnapshot(ctx, req)
	if err != nil {
		return nil, err
	}

	if rej := a.validator.Validate(snap, req.CaptainID, req.PlayerID, req.Actor.Type); rej != nil {
		a.recordRejection(req, snap.League.CurrentPickIndex, rej)
		return rejected(rej, turnOf(snap.League)), nil
	}

	league := snap.League
	order := OrderFor(league)
	pickNumber := league.CurrentPickIndex

	a.audit.Record(models.NewAuditLog(models.AuditPickValidated, req.LeagueID, req.Actor, map[string]any{
		"pick_number": pickNumber,
		"captain_id":  req.CaptainID.String(),
		"player_id":   req.PlayerID.String(),
	}))

	res, err := a.committer.Commit(ctx, CommitRequest{
		LeagueID:      req.LeagueID,
		ExpectedIndex: pickNumber,
		TotalPicks:    order.TotalPicks(),
		Round:         order.RoundOf(pickNumber),
		CaptainID:     req.CaptainID,
		PlayerID:      req.PlayerID,
		Auto:          req.Actor.Type == models.ActorSystem,
		Actor:         req.Actor,
	})
	if err != nil {
		if errors.Is(err, ErrRaceLost) || errors.Is(err, ErrPlayerTaken) {
			a.audit.Record(models.NewAuditLog(models.AuditPickRaceLost, req.LeagueID, req.Actor, map[string]any{
				"pick_number": pickNumber,
				"captain_id":  req.CaptainID.String(),
				"player_id":   req.PlayerID.String(),
				"cause":       err.Error(),
			}))
			return a.revalidate(ctx, req)
		}

		var commitErr *CommitError
		if errors.As(err, &commitErr) {
			a.audit.Record(models.NewAuditLog(models.AuditPickCommitFailed, req.LeagueID, req.Actor, map[string]any{
				"pick_number": pickNumber,
				"captain_id":  req.CaptainID.String(),
				"player_id":   req.PlayerID.String(),
				"step":        commitErr.Step.String(),
				"rolled_back": commitErr.RolledBack,
				"error":       commitErr.Err.Error(),
			}))
		}
		log.Error().
			Err(err).
			Str("league_id", req.LeagueID.String()).
			Int("pick_number", pickNumber).
			Msg("pick commit failed")
		return nil, err
	}

	a.afterCommit(ctx, req, league, res)

	updated, err := a.repo.GetLeague(ctx, req.LeagueID)
	if err != nil {
		log.Warn().Err(err).Str("league_id", req.LeagueID.String()).Msg("failed to reload league after commit")
		updated = advanced(league, res)
	}
	a.NotifyTurnChanged(*updated)

	return &ProposePickResult{
		Accepted:  true,
		Pick:      res.Pick,
		Completed: res.Completed,
		Turn:      turnOf(updated),
	}, nil
}

// revalidate re-reads state after a lost race and reports why the pick no longer stands.
// It never retries the commit.
func (a *App) revalidate(ctx context.Context, req ProposePickRequest) (*ProposePickResult, error) {
	snap, err := a.loadSnapshot(ctx, req)
	if err != nil {
		return nil, err
	}

	rej := a.validator.Validate(snap, req.CaptainID, req.PlayerID, req.Actor.Type)
	if rej == nil {
		rej = reject(ReasonRaceLost, "turn advanced concurrently")
	}

	log.Info().
		Str("league_id", req.LeagueID.String()).
		Str("captain_id", req.CaptainID.String()).
		Str("reason", string(rej.Reason)).
		Msg("pick lost race")

	a.recordRejection(req, snap.League.CurrentPickIndex, rej)
	return rejected(rej, turnOf(snap.League)), nil
}

// afterCommit runs the best-effort follow-ups of a successful commit. None of them can undo it.
func (a *App) afterCommit(ctx context.Context, req ProposePickRequest, league *models.League, res *CommitResult) {
	pick := res.Pick
	timedOut := req.Actor.Type == models.ActorSystem

	if err := a.repo.UpdateCaptainTimeouts(ctx, req.CaptainID, timedOut); err != nil {
		log.Warn().
			Err(err).
			Str("captain_id", req.CaptainID.String()).
			Bool("timed_out", timedOut).
			Msg("failed to update captain timeout counter")
	}

	a.audit.Record(models.NewAuditLog(models.AuditPickCommitted, req.LeagueID, req.Actor, map[string]any{
		"pick_number": pick.PickNumber,
		"round":       pick.Round,
		"captain_id":  pick.CaptainID.String(),
		"player_id":   pick.PlayerID.String(),
		"auto_pick":   pick.AutoPick,
	}))

	log.Info().
		Str("league_id", req.LeagueID.String()).
		Int("pick_number", pick.PickNumber).
		Str("captain_id", pick.CaptainID.String()).
		Str("player_id", pick.PlayerID.String()).
		Bool("auto_pick", pick.AutoPick).
		Msg("pick committed")

	a.publish(ctx, req.LeagueID, events.TypePickMade, events.PickMadePayload{
		LeagueID:    req.LeagueID.String(),
		CaptainID:   pick.CaptainID.String(),
		PlayerID:    pick.PlayerID.String(),
		Round:       pick.Round,
		OverallPick: pick.PickNumber + 1,
		AutoPick:    pick.AutoPick,
		MadeAt:      pick.CreatedAt,
	})

	a.afterAdvance(ctx, league, res, req.Actor)
}

// afterAdvance records completion or announces the next pick.
func (a *App) afterAdvance(ctx context.Context, league *models.League, res *CommitResult, actor models.Actor) {
	order := OrderFor(league)

	if res.Completed {
		now := a.clock.Now()
		a.audit.Record(models.NewAuditLog(models.AuditDraftCompleted, league.ID, actor, map[string]any{
			"pick_number": res.NextIndex,
			"total_picks": order.TotalPicks(),
		}))
		a.publish(ctx, league.ID, events.TypeDraftCompleted, events.DraftCompletedPayload{
			LeagueID:    league.ID.String(),
			CompletedAt: now,
			TotalPicks:  order.TotalPicks(),
		})
		log.Info().Str("league_id", league.ID.String()).Msg("draft completed")
		return
	}

	a.PublishPickStarted(ctx, advanced(league, res))
}

// PublishPickStarted announces the captain on the clock for the league's current index.
func (a *App) PublishPickStarted(ctx context.Context, league *models.League) {
	order := OrderFor(league)
	captainID, err := order.CaptainAt(league.CurrentPickIndex)
	if err != nil || league.CurrentPickStartedAt == nil {
		return
	}
	a.publish(ctx, league.ID, events.TypePickStarted, events.PickStartedPayload{
		LeagueID:       league.ID.String(),
		CaptainID:      captainID.String(),
		Round:          order.RoundOf(league.CurrentPickIndex),
		Pick:           order.PickInRound(league.CurrentPickIndex),
		OverallPick:    league.CurrentPickIndex + 1,
		StartedAt:      *league.CurrentPickStartedAt,
		TimeoutAt:      *league.Deadline(),
		TimePerPickSec: league.TimeLimitSeconds,
	})
}

// GetCurrentTurn returns who is on the clock and when their pick expires.
func (a *App) GetCurrentTurn(ctx context.Context, leagueID uuid.UUID) (*Turn, error) {
	league, err := a.getLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return turnOf(league), nil
}

// GetLeague fetches a league by id.
func (a *App) GetLeague(ctx context.Context, leagueID uuid.UUID) (*models.League, error) {
	return a.getLeague(ctx, leagueID)
}

// ListActiveLeagues returns every league currently drafting.
func (a *App) ListActiveLeagues(ctx context.Context) ([]models.League, error) {
	leagues, err := a.repo.ListLeaguesByStatus(ctx, models.LeagueStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to list active leagues: %w", err)
	}
	return leagues, nil
}

// GetCaptain fetches a captain of a league.
func (a *App) GetCaptain(ctx context.Context, leagueID, captainID uuid.UUID) (*models.Captain, error) {
	captains, err := a.repo.ListCaptains(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list captains: %w", err)
	}
	for i := range captains {
		if captains[i].ID == captainID {
			return &captains[i], nil
		}
	}
	return nil, fmt.Errorf("captain %s: %w", captainID, ErrNotFound)
}

// ListAvailablePlayers returns the undrafted pool ordered by rank.
func (a *App) ListAvailablePlayers(ctx context.Context, leagueID uuid.UUID) ([]models.Player, error) {
	players, err := a.repo.ListAvailablePlayers(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list available players: %w", err)
	}
	return players, nil
}

// ListPicks returns the committed picks of a league ordered by pick number.
func (a *App) ListPicks(ctx context.Context, leagueID uuid.UUID) ([]models.DraftPick, error) {
	picks, err := a.repo.ListPicks(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	return picks, nil
}

// SkipTurn advances past expectedIndex without drafting a player.
func (a *App) SkipTurn(ctx context.Context, leagueID uuid.UUID, expectedIndex int, actor models.Actor) (*Turn, error) {
	league, err := a.getLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	if league.Status != models.LeagueStatusInProgress || league.CurrentPickIndex != expectedIndex {
		return nil, ErrRaceLost
	}

	order := OrderFor(league)
	captainID, err := order.CaptainAt(expectedIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve captain on the clock: %w", err)
	}

	res, err := a.committer.Skip(ctx, leagueID, expectedIndex, order.TotalPicks())
	if err != nil {
		return nil, err
	}

	a.audit.Record(models.NewAuditLog(models.AuditPickSkipped, leagueID, actor, map[string]any{
		"pick_number": expectedIndex,
		"captain_id":  captainID.String(),
	}))
	a.publish(ctx, leagueID, events.TypePickSkipped, events.PickSkippedPayload{
		LeagueID:    leagueID.String(),
		CaptainID:   captainID.String(),
		OverallPick: expectedIndex + 1,
		SkippedAt:   a.clock.Now(),
	})
	log.Info().
		Str("league_id", leagueID.String()).
		Int("pick_number", expectedIndex).
		Str("captain_id", captainID.String()).
		Msg("pick skipped")

	a.afterAdvance(ctx, league, res, actor)

	updated := advanced(league, res)
	a.NotifyTurnChanged(*updated)
	return turnOf(updated), nil
}

// PauseOnTimeout pauses the league at expectedIndex, keeping the pointer.
func (a *App) PauseOnTimeout(ctx context.Context, leagueID uuid.UUID, expectedIndex int, actor models.Actor) error {
	league, err := a.getLeague(ctx, leagueID)
	if err != nil {
		return err
	}
	if err := a.committer.Pause(ctx, leagueID, expectedIndex); err != nil {
		return err
	}

	a.audit.Record(models.NewAuditLog(models.AuditDraftPaused, leagueID, actor, map[string]any{
		"pick_number": expectedIndex,
		"reason":      "timeout",
	}))
	a.publish(ctx, leagueID, events.TypeDraftPaused, events.DraftPausedPayload{
		LeagueID: leagueID.String(),
		PausedAt: a.clock.Now(),
		Reason:   "timeout",
	})
	log.Info().
		Str("league_id", leagueID.String()).
		Int("pick_number", expectedIndex).
		Msg("draft paused on timeout")

	league.Status = models.LeagueStatusPaused
	league.CurrentPickIndex = expectedIndex
	league.CurrentPickStartedAt = nil
	a.NotifyTurnChanged(*league)
	return nil
}

// UndoLastPick removes the most recent pick and puts its captain back on the clock.
// A paused league stays paused.
func (a *App) UndoLastPick(ctx context.Context, leagueID uuid.UUID, actor models.Actor) (*models.DraftPick, error) {
	league, err := a.getLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	var target int
	switch league.Status {
	case models.LeagueStatusCompleted:
		target = league.CurrentPickIndex
	case models.LeagueStatusInProgress, models.LeagueStatusPaused:
		target = league.CurrentPickIndex - 1
	default:
		return nil, fmt.Errorf("league %s is %s: %w", leagueID, league.Status, ErrNothingToUndo)
	}
	if target < 0 {
		return nil, ErrNothingToUndo
	}

	pick, err := a.repo.GetPick(ctx, leagueID, target)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get pick %d: %w", target, err)
	}

	// move the pointer first so no one can commit against the slot being cleared
	res, err := a.committer.Rewind(ctx, league, target)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"pick_number":     target,
		"skipped_slot":    pick == nil,
		"previous_status": string(league.Status),
	}
	if pick != nil {
		metadata["captain_id"] = pick.CaptainID.String()
		metadata["player_id"] = pick.PlayerID.String()

		ok := a.rollback.Rollback(ctx, RollbackRequest{
			LeagueID:    leagueID,
			PickNumber:  target,
			CaptainID:   pick.CaptainID,
			PlayerID:    pick.PlayerID,
			ClearPlayer: true,
			Reason:      "undo",
			Actor:       actor,
		})
		if !ok {
			return nil, fmt.Errorf("pick %d: %w", target, ErrUndoIncomplete)
		}

		// A manual pick reset the counter and the earlier value is gone, so only auto-picks are
		// taken back.
		if pick.AutoPick {
			if err := a.repo.DecrementCaptainTimeouts(ctx, pick.CaptainID); err != nil {
				log.Warn().
					Err(err).
					Str("captain_id", pick.CaptainID.String()).
					Msg("failed to take back captain timeout")
			}
		}
	}

	a.audit.Record(models.NewAuditLog(models.AuditPickUndone, leagueID, actor, metadata))

	payload := events.PickUndonePayload{
		LeagueID:    leagueID.String(),
		OverallPick: target + 1,
		UndoneAt:    a.clock.Now(),
	}
	if captainID, err := OrderFor(league).CaptainAt(target); err == nil {
		payload.CaptainID = captainID.String()
	}
	if pick != nil {
		payload.PlayerID = pick.PlayerID.String()
	}
	a.publish(ctx, leagueID, events.TypePickUndone, payload)

	log.Info().
		Str("league_id", leagueID.String()).
		Int("pick_number", target).
		Msg("pick undone")

	updated := *league
	updated.CurrentPickIndex = res.NextIndex
	updated.CurrentPickStartedAt = res.StartedAt
	if league.Status == models.LeagueStatusCompleted {
		updated.Status = models.LeagueStatusInProgress
	}
	if updated.Status == models.LeagueStatusInProgress {
		a.PublishPickStarted(ctx, &updated)
	}
	a.NotifyTurnChanged(updated)

	return pick, nil
}

// NotifyTurnChanged fans a league state change out to every observer.
func (a *App) NotifyTurnChanged(league models.League) {
	a.mu.RLock()
	observers := make([]TurnObserver, len(a.observers))
	copy(observers, a.observers)
	a.mu.RUnlock()

	for _, o := range observers {
		o.TurnChanged(league)
	}
}

func (a *App) loadSnapshot(ctx context.Context, req ProposePickRequest) (*Snapshot, error) {
	leagueID, playerID := req.LeagueID, req.PlayerID
	league, err := a.getLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	captains, err := a.repo.ListCaptains(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list captains: %w", err)
	}

	player, err := a.repo.GetPlayer(ctx, playerID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("failed to get player: %w", err)
		}
		player = nil
	}

	existing, err := a.repo.GetPick(ctx, leagueID, league.CurrentPickIndex)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get pick: %w", err)
	}

	snap := &Snapshot{
		League:       league,
		Captains:     captains,
		Player:       player,
		SlotTaken:    existing != nil,
		ExpectedPick: req.ExpectedPickNumber,
	}
	if n := req.ExpectedPickNumber; n != nil && *n >= 0 && *n < league.CurrentPickIndex {
		slot, err := a.repo.GetPick(ctx, leagueID, *n)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("failed to get pick %d: %w", *n, err)
		}
		snap.ExpectedSlot = slot
	}
	return snap, nil
}

func (a *App) getLeague(ctx context.Context, leagueID uuid.UUID) (*models.League, error) {
	league, err := a.repo.GetLeague(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to get league %s: %w", leagueID, err)
	}
	return league, nil
}

func (a *App) recordRejection(req ProposePickRequest, pickNumber int, rej *Rejection) {
	a.audit.Record(models.NewAuditLog(models.AuditPickRejected, req.LeagueID, req.Actor, map[string]any{
		"pick_number": pickNumber,
		"captain_id":  req.CaptainID.String(),
		"player_id":   req.PlayerID.String(),
		"reason":      string(rej.Reason),
		"detail":      rej.Detail,
	}))
}

func (a *App) publish(ctx context.Context, leagueID uuid.UUID, eventType string, payload any) {
	if a.events == nil {
		return
	}
	if err := a.events.Publish(ctx, leagueID, eventType, payload); err != nil {
		log.Error().
			Err(err).
			Str("league_id", leagueID.String()).
			Str("event_type", eventType).
			Msg("failed to publish event")
	}
}

func (a *App) validateProposePickRequest(req ProposePickRequest) error {
	if req.LeagueID == uuid.Nil {
		return fmt.Errorf("%w: league_id is required", ErrInvalidRequest)
	}
	if req.CaptainID == uuid.Nil {
		return fmt.Errorf("%w: captain_id is required", ErrInvalidRequest)
	}
	if req.PlayerID == uuid.Nil {
		return fmt.Errorf("%w: player_id is required", ErrInvalidRequest)
	}
	if req.Actor.Type == "" {
		return fmt.Errorf("%w: actor is required", ErrInvalidRequest)
	}
	return nil
}

func rejected(rej *Rejection, turn *Turn) *ProposePickResult {
	return &ProposePickResult{
		Accepted:        false,
		RejectionReason: rej.Reason,
		Detail:          rej.Detail,
		Turn:            turn,
	}
}

// advanced returns a copy of league moved to the position described by res.
func advanced(league *models.League, res *CommitResult) *models.League {
	next := *league
	next.CurrentPickIndex = res.NextIndex
	next.CurrentPickStartedAt = res.StartedAt
	if res.Completed {
		next.Status = models.LeagueStatusCompleted
	}
	return &next
}

// turnOf describes the turn state of a league. A completed league has nobody on the clock.
func turnOf(league *models.League) *Turn {
	turn := &Turn{
		LeagueID:   league.ID,
		Status:     league.Status,
		PickNumber: league.CurrentPickIndex,
	}

	order := OrderFor(league)
	turn.Round = order.RoundOf(league.CurrentPickIndex)
	if league.Status == models.LeagueStatusCompleted {
		return turn
	}
	if captainID, err := order.CaptainAt(league.CurrentPickIndex); err == nil {
		turn.CaptainID = captainID
	}
	if league.Status == models.LeagueStatusInProgress {
		turn.StartedAt = league.CurrentPickStartedAt
		turn.Deadline = league.Deadline()
	}
	return turn
}
