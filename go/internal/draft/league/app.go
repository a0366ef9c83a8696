package league

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/pick"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidTransition is returned for a lifecycle change the current status does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidSettings is returned when a league cannot be created as requested.
	ErrInvalidSettings = errors.New("invalid league settings")
)

// LeagueRepository defines what the league app needs from the repository
type LeagueRepository interface {
	CreateLeague(ctx context.Context, league models.League, captains []models.Captain, players []models.Player) error
}

// PickApp defines what the league app needs from the pick app
type PickApp interface {
	GetLeague(ctx context.Context, leagueID uuid.UUID) (*models.League, error)
	Committer() *pick.Committer
	NotifyTurnChanged(league models.League)
	PublishPickStarted(ctx context.Context, league *models.League)
}

// EventPublisher writes domain events to the outbox.
type EventPublisher interface {
	Publish(ctx context.Context, leagueID uuid.UUID, eventType string, payload any) error
}

// CreateLeagueRequest describes a new league with its captains and player pool.
type CreateLeagueRequest struct {
	Name               string                `json:"name"`
	DraftOrderType     models.DraftOrderType `json:"draft_order_type"`
	ThirdRoundReversal bool                  `json:"third_round_reversal"`
	Rounds             int                   `json:"rounds"`
	TimeLimitSeconds   int                   `json:"time_limit_seconds"`
	Captains           []models.Captain      `json:"captains"`
	Players            []models.Player       `json:"players"`
}

// App handles league lifecycle business logic
type App struct {
	repo   LeagueRepository
	picks  PickApp
	audit  pick.AuditRecorder
	events EventPublisher
	clock  clockwork.Clock
}

// NewApp creates a new league App
func NewApp(repo LeagueRepository, picks PickApp, audit pick.AuditRecorder, events EventPublisher, clock clockwork.Clock) *App {
	return &App{
		repo:   repo,
		picks:  picks,
		audit:  audit,
		events: events,
		clock:  clock,
	}
}

// CreateLeague validates and stores a new league in not_started status.
func (a *App) CreateLeague(ctx context.Context, req CreateLeagueRequest) (*models.League, error) {
	if err := a.validateCreateLeagueRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	now := a.clock.Now()
	league := models.League{
		ID:                 uuid.New(),
		Name:               req.Name,
		DraftOrderType:     req.DraftOrderType,
		ThirdRoundReversal: req.ThirdRoundReversal,
		Rounds:             req.Rounds,
		TimeLimitSeconds:   req.TimeLimitSeconds,
		Status:             models.LeagueStatusNotStarted,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	captains := make([]models.Captain, len(req.Captains))
	for i, c := range req.Captains {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.LeagueID = league.ID
		c.ConsecutiveTimeoutPicks = 0
		captains[i] = c
	}
	players := make([]models.Player, len(req.Players))
	for i, p := range req.Players {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.LeagueID = league.ID
		p.DraftedByCaptainID = nil
		p.DraftPickNumber = nil
		p.CreatedAt = now
		players[i] = p
	}

	if err := a.repo.CreateLeague(ctx, league, captains, players); err != nil {
		return nil, fmt.Errorf("failed to create league: %w", err)
	}

	log.Info().
		Str("league_id", league.ID.String()).
		Str("name", league.Name).
		Int("captains", len(captains)).
		Int("players", len(players)).
		Msg("league created")

	return a.picks.GetLeague(ctx, league.ID)
}

// StartDraft puts the first captain on the clock.
func (a *App) StartDraft(ctx context.Context, leagueID uuid.UUID, actor models.Actor) (*models.League, error) {
	league, err := a.transition(ctx, leagueID, models.LeagueStatusInProgress, func(l *models.League) error {
		if l.Status != models.LeagueStatusNotStarted {
			return fmt.Errorf("%w: draft already started (status %s)", ErrInvalidTransition, l.Status)
		}
		if pick.OrderFor(l).TotalPicks() == 0 {
			return fmt.Errorf("%w: league has no picks to make", ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order := pick.OrderFor(league)
	a.audit.Record(models.NewAuditLog(models.AuditDraftStarted, leagueID, actor, map[string]any{
		"pick_number": league.CurrentPickIndex,
		"total_picks": order.TotalPicks(),
	}))
	a.publish(ctx, leagueID, events.TypeDraftStarted, events.DraftStartedPayload{
		LeagueID:    leagueID.String(),
		OrderType:   string(league.DraftOrderType),
		StartedAt:   *league.CurrentPickStartedAt,
		TotalRounds: league.Rounds,
		TotalPicks:  order.TotalPicks(),
	})
	a.picks.PublishPickStarted(ctx, league)

	log.Info().
		Str("league_id", leagueID.String()).
		Int("total_picks", order.TotalPicks()).
		Msg("draft started")

	a.picks.NotifyTurnChanged(*league)
	return league, nil
}

// PauseDraft stops the clock, keeping the current pick.
func (a *App) PauseDraft(ctx context.Context, leagueID uuid.UUID, reason string, actor models.Actor) (*models.League, error) {
	league, err := a.transition(ctx, leagueID, models.LeagueStatusPaused, nil)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "manual"
	}

	a.audit.Record(models.NewAuditLog(models.AuditDraftPaused, leagueID, actor, map[string]any{
		"pick_number": league.CurrentPickIndex,
		"reason":      reason,
	}))
	a.publish(ctx, leagueID, events.TypeDraftPaused, events.DraftPausedPayload{
		LeagueID: leagueID.String(),
		PausedAt: a.clock.Now(),
		Reason:   reason,
	})

	log.Info().
		Str("league_id", leagueID.String()).
		Int("pick_number", league.CurrentPickIndex).
		Str("reason", reason).
		Msg("draft paused")

	a.picks.NotifyTurnChanged(*league)
	return league, nil
}

// ResumeDraft restarts the clock for the current pick with the full time limit.
func (a *App) ResumeDraft(ctx context.Context, leagueID uuid.UUID, actor models.Actor) (*models.League, error) {
	league, err := a.transition(ctx, leagueID, models.LeagueStatusInProgress, func(l *models.League) error {
		if l.Status != models.LeagueStatusPaused {
			return fmt.Errorf("%w: draft is not paused (status %s)", ErrInvalidTransition, l.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.audit.Record(models.NewAuditLog(models.AuditDraftResumed, leagueID, actor, map[string]any{
		"pick_number": league.CurrentPickIndex,
	}))
	a.publish(ctx, leagueID, events.TypeDraftResumed, events.DraftResumedPayload{
		LeagueID:  leagueID.String(),
		ResumedAt: *league.CurrentPickStartedAt,
	})
	a.picks.PublishPickStarted(ctx, league)

	log.Info().
		Str("league_id", leagueID.String()).
		Int("pick_number", league.CurrentPickIndex).
		Msg("draft resumed")

	a.picks.NotifyTurnChanged(*league)
	return league, nil
}

// transition checks the transition table and extra preconditions, then applies the status
// change through the committer's conditional update.
func (a *App) transition(ctx context.Context, leagueID uuid.UUID, next models.LeagueStatus, check func(*models.League) error) (*models.League, error) {
	league, err := a.picks.GetLeague(ctx, leagueID)
	if err != nil {
		return nil, err
	}

	if err := validateStatusTransition(league.Status, next); err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(league); err != nil {
			return nil, err
		}
	}

	res, err := a.picks.Committer().Transition(ctx, league, next)
	if err != nil {
		if errors.Is(err, pick.ErrRaceLost) {
			return nil, fmt.Errorf("%w: league changed concurrently", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("failed to update league status: %w", err)
	}

	league.Status = next
	league.CurrentPickStartedAt = res.StartedAt
	return league, nil
}

var allowedTransitions = map[models.LeagueStatus][]models.LeagueStatus{
	models.LeagueStatusNotStarted: {models.LeagueStatusInProgress},
	models.LeagueStatusInProgress: {models.LeagueStatusPaused, models.LeagueStatusCompleted},
	models.LeagueStatusPaused:     {models.LeagueStatusInProgress},
	models.LeagueStatusCompleted:  {}, // No transitions allowed from completed
}

// validateStatusTransition validates if a status transition is allowed
func validateStatusTransition(current, next models.LeagueStatus) error {
	allowedNext, exists := allowedTransitions[current]
	if !exists {
		return fmt.Errorf("%w: unknown current status %s", ErrInvalidTransition, current)
	}
	if slices.Contains(allowedNext, next) {
		return nil
	}
	return fmt.Errorf("%w: %s to %s is not allowed", ErrInvalidTransition, current, next)
}

func (a *App) validateCreateLeagueRequest(req CreateLeagueRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch req.DraftOrderType {
	case models.DraftOrderLinear:
		if req.ThirdRoundReversal {
			return fmt.Errorf("third round reversal requires a snake draft")
		}
	case models.DraftOrderSnake:
	default:
		return fmt.Errorf("unknown draft order type %q", req.DraftOrderType)
	}
	if req.Rounds <= 0 {
		return fmt.Errorf("rounds must be greater than 0")
	}
	if req.TimeLimitSeconds <= 0 {
		return fmt.Errorf("time_limit_seconds must be greater than 0")
	}
	if len(req.Captains) == 0 {
		return fmt.Errorf("at least one captain is required")
	}

	positions := make(map[int]bool, len(req.Captains))
	for _, c := range req.Captains {
		if c.DraftPosition <= 0 {
			return fmt.Errorf("captain %q has invalid draft position %d", c.Name, c.DraftPosition)
		}
		if positions[c.DraftPosition] {
			return fmt.Errorf("draft position %d is taken more than once", c.DraftPosition)
		}
		positions[c.DraftPosition] = true
	}
	return nil
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
