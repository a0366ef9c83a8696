package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/pick"
	"github.com/rs/zerolog/log"
)

// turnEvents are the domain events after which a league's clock may have changed.
var turnEvents = map[string]bool{
	events.TypePickStarted:    true,
	events.TypePickMade:       true,
	events.TypePickSkipped:    true,
	events.TypePickUndone:     true,
	events.TypeDraftStarted:   true,
	events.TypeDraftPaused:    true,
	events.TypeDraftResumed:   true,
	events.TypeDraftCompleted: true,
}

// HandleDomainEvent re-reads the league named by an event and re-arms or clears its timer.
// Payloads are not trusted for timing; the stored league row is.
func (o *Orchestrator) HandleDomainEvent(ctx context.Context, eventType string, leagueID uuid.UUID) error {
	if !turnEvents[eventType] {
		log.Debug().
			Str("event_type", eventType).
			Str("league_id", leagueID.String()).
			Msg("ignoring event")
		return nil
	}

	league, err := o.app.GetLeague(ctx, leagueID)
	if errors.Is(err, pick.ErrNotFound) {
		log.Warn().
			Str("event_type", eventType).
			Str("league_id", leagueID.String()).
			Msg("event for unknown league")
		o.cancelTimer(leagueID)
		o.setState(leagueID, StateWaiting)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get league: %w", err)
	}

	log.Debug().
		Str("event_type", eventType).
		Str("league_id", leagueID.String()).
		Int("pick_number", league.CurrentPickIndex).
		Str("status", string(league.Status)).
		Msg("refreshing league timer from event")

	o.TurnChanged(*league)
	return nil
}
