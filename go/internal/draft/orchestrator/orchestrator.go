package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draft/pick"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// State is the arbiter's view of a league's clock.
type State string

const (
	StateWaiting     State = "waiting"
	StateOnTheClock  State = "on_the_clock"
	StateExpiring    State = "expiring"
	StateAutoPicking State = "auto_picking"
)

// TimeoutPolicy decides what happens when a pick expires and no auto-pick can be made.
type TimeoutPolicy string

const (
	PolicySkip  TimeoutPolicy = "skip"
	PolicyPause TimeoutPolicy = "pause"
)

// ParseTimeoutPolicy validates a configured policy name.
func ParseTimeoutPolicy(s string) (TimeoutPolicy, error) {
	switch p := TimeoutPolicy(s); p {
	case PolicySkip, PolicyPause:
		return p, nil
	default:
		return "", fmt.Errorf("unknown timeout policy %q", s)
	}
}

// PickApp defines what the orchestrator needs from the pick app
type PickApp interface {
	GetLeague(ctx context.Context, leagueID uuid.UUID) (*models.League, error)
	GetCaptain(ctx context.Context, leagueID, captainID uuid.UUID) (*models.Captain, error)
	ListAvailablePlayers(ctx context.Context, leagueID uuid.UUID) ([]models.Player, error)
	ListActiveLeagues(ctx context.Context) ([]models.League, error)
	ProposePick(ctx context.Context, req pick.ProposePickRequest) (*pick.ProposePickResult, error)
	SkipTurn(ctx context.Context, leagueID uuid.UUID, expectedIndex int, actor models.Actor) (*pick.Turn, error)
	PauseOnTimeout(ctx context.Context, leagueID uuid.UUID, expectedIndex int, actor models.Actor) error
}

type Config struct {
	Workers int
	Policy  TimeoutPolicy
	// RetryBase is the first delay before a failed timeout is tried again. The delay doubles
	// on each consecutive failure up to RetryMax.
	RetryBase time.Duration
	RetryMax  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Workers:   4,
		Policy:    PolicySkip,
		RetryBase: time.Second,
		RetryMax:  30 * time.Second,
	}
}

// leagueTimer is the pending timeout for one pick of one league.
type leagueTimer struct {
	timer     clockwork.Timer
	pickIndex int
	stop      chan struct{}
}

// Orchestrator is the timeout arbiter. It keeps one timer per drafting league and, when a
// pick expires, auto-picks through the pick app or applies the timeout policy.
type Orchestrator struct {
	app        PickApp
	strat      AutoPickStrategy
	audit      pick.AuditRecorder
	clock      clockwork.Clock
	policy     TimeoutPolicy
	instanceID string

	// Worker pool configuration
	numWorkers int
	workCh     chan uuid.UUID

	// Track in-flight work to prevent duplicate processing
	inFlight   map[uuid.UUID]bool
	inFlightMu sync.Mutex

	activeTimers   map[uuid.UUID]*leagueTimer
	retries        map[uuid.UUID]int
	closed         bool
	activeTimersMu sync.Mutex
	retryBase      time.Duration
	retryMax       time.Duration

	states   map[uuid.UUID]State
	statesMu sync.RWMutex
}

// NewOrchestrator creates a new timeout arbiter with worker pool
func NewOrchestrator(app PickApp, strat AutoPickStrategy, audit pick.AuditRecorder, clock clockwork.Clock, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.Policy == "" {
		cfg.Policy = DefaultConfig().Policy
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultConfig().RetryBase
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = max(cfg.RetryBase, DefaultConfig().RetryMax)
	}
	if strat == nil {
		strat = NewRankedStrategy()
	}
	return &Orchestrator{
		app:        app,
		strat:      strat,
		audit:      audit,
		clock:      clock,
		policy:     cfg.Policy,
		instanceID: uuid.New().String()[:8], // short ID for logging

		numWorkers: cfg.Workers,
		workCh:     make(chan uuid.UUID, cfg.Workers*2),
		inFlight:   make(map[uuid.UUID]bool),

		activeTimers: make(map[uuid.UUID]*leagueTimer),
		retries:      make(map[uuid.UUID]int),
		retryBase:    cfg.RetryBase,
		retryMax:     cfg.RetryMax,
		states:       make(map[uuid.UUID]State),
	}
}

// State returns the last observed state for a league.
func (o *Orchestrator) State(leagueID uuid.UUID) State {
	o.statesMu.RLock()
	defer o.statesMu.RUnlock()
	if s, ok := o.states[leagueID]; ok {
		return s
	}
	return StateWaiting
}

func (o *Orchestrator) setState(leagueID uuid.UUID, s State) {
	o.statesMu.Lock()
	defer o.statesMu.Unlock()
	if s == StateWaiting {
		delete(o.states, leagueID)
		return
	}
	o.states[leagueID] = s
}

// TurnChanged implements pick.TurnObserver. It re-arms or clears the league's timer.
func (o *Orchestrator) TurnChanged(league models.League) {
	if league.Status != models.LeagueStatusInProgress || league.CurrentPickStartedAt == nil {
		o.cancelTimer(league.ID)
		o.setState(league.ID, StateWaiting)
		return
	}
	o.setState(league.ID, StateOnTheClock)
	o.scheduleTimeout(&league)
}

// OnTimeoutTick evaluates a league's clock and acts on an expired pick. It is safe to call at
// any time: a league that is not actively picking never fires.
//
// When the tick fails the league stays expiring and is re-checked after a backoff, so a
// transient store error never leaves an expired pick without a timer.
func (o *Orchestrator) OnTimeoutTick(ctx context.Context, leagueID uuid.UUID) (State, error) {
	state, err := o.tick(ctx, leagueID)
	if err == nil {
		o.resetBackoff(leagueID)
		return state, nil
	}
	if ctx.Err() != nil || errors.Is(err, pick.ErrNotFound) {
		return state, err
	}

	delay := o.backoff(leagueID)
	if o.armRetry(leagueID, delay) {
		o.setState(leagueID, StateExpiring)
		log.Warn().
			Err(err).
			Str("league_id", leagueID.String()).
			Dur("retry_in", delay).
			Msg("timeout failed, retrying")
	}
	return StateExpiring, err
}

func (o *Orchestrator) tick(ctx context.Context, leagueID uuid.UUID) (State, error) {
	league, err := o.app.GetLeague(ctx, leagueID)
	if err != nil {
		return o.State(leagueID), fmt.Errorf("failed to get league: %w", err)
	}

	if league.Status != models.LeagueStatusInProgress || league.CurrentPickStartedAt == nil {
		o.TurnChanged(*league)
		return StateWaiting, nil
	}

	if o.clock.Now().Before(*league.Deadline()) {
		o.TurnChanged(*league)
		return StateOnTheClock, nil
	}

	if !o.claim(leagueID) {
		log.Debug().
			Str("league_id", leagueID.String()).
			Str("instance", o.instanceID).
			Msg("timeout already in flight")
		return o.State(leagueID), nil
	}
	defer o.release(leagueID)

	return o.expire(ctx, league)
}

// expire handles a pick whose time limit has elapsed.
func (o *Orchestrator) expire(ctx context.Context, league *models.League) (State, error) {
	o.setState(league.ID, StateExpiring)
	index := league.CurrentPickIndex

	captainID, err := pick.OrderFor(league).CaptainAt(index)
	if err != nil {
		return StateExpiring, fmt.Errorf("failed to resolve captain on the clock: %w", err)
	}

	log.Info().
		Str("league_id", league.ID.String()).
		Int("pick_number", index).
		Str("captain_id", captainID.String()).
		Str("instance", o.instanceID).
		Msg("pick expired")

	o.audit.Record(models.NewAuditLog(models.AuditTimeoutExpired, league.ID, models.SystemActor, map[string]any{
		"pick_number": index,
		"captain_id":  captainID.String(),
		"deadline":    league.Deadline(),
	}))

	captain, err := o.app.GetCaptain(ctx, league.ID, captainID)
	if err != nil {
		return StateExpiring, fmt.Errorf("failed to get captain: %w", err)
	}

	if captain.AutoPickEnabled {
		state, done, err := o.autoPick(ctx, league, *captain)
		if done || err != nil {
			return state, err
		}
	}

	return o.applyPolicy(ctx, league, captainID)
}

// autoPick submits a system pick for the captain. done is false when nothing could be picked
// and the timeout policy should apply instead.
func (o *Orchestrator) autoPick(ctx context.Context, league *models.League, captain models.Captain) (State, bool, error) {
	available, err := o.app.ListAvailablePlayers(ctx, league.ID)
	if err != nil {
		return StateExpiring, false, fmt.Errorf("failed to list available players: %w", err)
	}

	choice, err := o.strat.SelectPlayer(ctx, league, captain, available)
	if err != nil {
		if errors.Is(err, ErrNoPlayers) {
			log.Warn().
				Str("league_id", league.ID.String()).
				Msg("no players left for auto-pick")
			return StateExpiring, false, nil
		}
		return StateExpiring, false, fmt.Errorf("failed to select auto-pick: %w", err)
	}

	o.setState(league.ID, StateAutoPicking)

	pickNumber := league.CurrentPickIndex
	res, err := o.app.ProposePick(ctx, pick.ProposePickRequest{
		LeagueID:  league.ID,
		CaptainID: captain.ID,
		PlayerID:  choice.ID,
		Actor:     models.SystemActor,

		ExpectedPickNumber: &pickNumber,
	})
	if err != nil {
		return StateAutoPicking, true, fmt.Errorf("auto-pick failed: %w", err)
	}

	if !res.Accepted {
		// usually a manual pick that landed first
		log.Info().
			Str("league_id", league.ID.String()).
			Int("pick_number", league.CurrentPickIndex).
			Str("reason", string(res.RejectionReason)).
			Msg("auto-pick rejected")
		return StateAutoPicking, true, nil
	}

	o.audit.Record(models.NewAuditLog(models.AuditAutoPick, league.ID, models.SystemActor, map[string]any{
		"pick_number": league.CurrentPickIndex,
		"captain_id":  captain.ID.String(),
		"player_id":   choice.ID.String(),
		"strategy":    o.strat.Name(),
	}))

	log.Info().
		Str("league_id", league.ID.String()).
		Int("pick_number", league.CurrentPickIndex).
		Str("captain_id", captain.ID.String()).
		Str("player_id", choice.ID.String()).
		Msg("auto-pick committed")

	return StateAutoPicking, true, nil
}

func (o *Orchestrator) applyPolicy(ctx context.Context, league *models.League, captainID uuid.UUID) (State, error) {
	index := league.CurrentPickIndex

	var err error
	switch o.policy {
	case PolicyPause:
		err = o.app.PauseOnTimeout(ctx, league.ID, index, models.SystemActor)
	default:
		_, err = o.app.SkipTurn(ctx, league.ID, index, models.SystemActor)
	}

	if errors.Is(err, pick.ErrRaceLost) {
		log.Info().
			Str("league_id", league.ID.String()).
			Int("pick_number", index).
			Msg("timeout policy lost race to another transition")
		return StateExpiring, nil
	}
	if err != nil {
		return StateExpiring, fmt.Errorf("failed to apply %s policy: %w", o.policy, err)
	}

	log.Info().
		Str("league_id", league.ID.String()).
		Int("pick_number", index).
		Str("captain_id", captainID.String()).
		Str("policy", string(o.policy)).
		Msg("timeout policy applied")
	return StateExpiring, nil
}

func (o *Orchestrator) claim(leagueID uuid.UUID) bool {
	o.inFlightMu.Lock()
	defer o.inFlightMu.Unlock()
	if o.inFlight[leagueID] {
		return false
	}
	o.inFlight[leagueID] = true
	return true
}

func (o *Orchestrator) release(leagueID uuid.UUID) {
	o.inFlightMu.Lock()
	defer o.inFlightMu.Unlock()
	delete(o.inFlight, leagueID)
}
