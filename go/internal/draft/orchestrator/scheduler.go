package orchestrator

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/rs/zerolog/log"
)

// retryPickIndex marks a timer that re-checks a league rather than timing a specific pick.
const retryPickIndex = -1

// scheduleTimeout arms a one-shot timer for the league's current pick. A timer already armed
// for the same pick index is kept.
func (o *Orchestrator) scheduleTimeout(league *models.League) {
	deadline := league.Deadline()
	if deadline == nil {
		return
	}

	o.activeTimersMu.Lock()
	if existing, ok := o.activeTimers[league.ID]; ok && existing.pickIndex == league.CurrentPickIndex {
		o.activeTimersMu.Unlock()
		log.Debug().
			Str("league_id", league.ID.String()).
			Int("pick_number", league.CurrentPickIndex).
			Msg("skipping duplicate schedule - timer already armed for this pick")
		return
	}
	o.activeTimersMu.Unlock()

	duration := deadline.Sub(o.clock.Now())
	if duration <= 0 {
		o.cancelTimer(league.ID)
		o.enqueue(league.ID)
		return
	}

	lt := o.newLeagueTimer(duration, league.CurrentPickIndex)
	o.replaceTimer(league.ID, lt)
	o.watch(league.ID, lt)

	log.Debug().
		Str("league_id", league.ID.String()).
		Int("pick_number", league.CurrentPickIndex).
		Time("deadline", *deadline).
		Dur("duration", duration).
		Msg("scheduled one-shot timer")
}

func (o *Orchestrator) newLeagueTimer(d time.Duration, pickIndex int) *leagueTimer {
	return &leagueTimer{
		timer:     o.clock.NewTimer(d),
		pickIndex: pickIndex,
		stop:      make(chan struct{}),
	}
}

// watch enqueues the league when lt fires, unless lt is cancelled first.
func (o *Orchestrator) watch(leagueID uuid.UUID, lt *leagueTimer) {
	go func() {
		select {
		case <-lt.timer.Chan():
			o.removeTimer(leagueID, lt)
			o.enqueue(leagueID)
		case <-lt.stop:
		}
	}()
}

// enqueue hands the league to a worker. A full queue never loses the timeout: the league is
// re-armed for another try instead.
func (o *Orchestrator) enqueue(leagueID uuid.UUID) {
	select {
	case o.workCh <- leagueID:
		log.Debug().Str("league_id", leagueID.String()).Msg("timer fired - enqueued for processing")
	default:
		log.Warn().
			Str("league_id", leagueID.String()).
			Dur("retry_in", o.retryBase).
			Msg("work channel full, deferring timeout")
		o.armRetry(leagueID, o.retryBase)
	}
}

// armRetry arms a timer that re-checks the league after d. It never displaces an armed timer,
// and any later schedule for a real pick replaces it.
func (o *Orchestrator) armRetry(leagueID uuid.UUID, d time.Duration) bool {
	o.activeTimersMu.Lock()
	if _, ok := o.activeTimers[leagueID]; ok || o.closed {
		o.activeTimersMu.Unlock()
		return false
	}
	lt := o.newLeagueTimer(d, retryPickIndex)
	o.activeTimers[leagueID] = lt
	o.activeTimersMu.Unlock()

	o.watch(leagueID, lt)
	return true
}

// backoff returns the delay before the next retry of a failed timeout and counts the attempt.
func (o *Orchestrator) backoff(leagueID uuid.UUID) time.Duration {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()

	d := o.retryBase
	for i := 0; i < o.retries[leagueID] && d < o.retryMax; i++ {
		d *= 2
	}
	o.retries[leagueID]++
	return min(d, o.retryMax)
}

func (o *Orchestrator) resetBackoff(leagueID uuid.UUID) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	delete(o.retries, leagueID)
}

// replaceTimer atomically replaces a league's timer, cancelling any existing one.
func (o *Orchestrator) replaceTimer(leagueID uuid.UUID, lt *leagueTimer) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()

	if existing, ok := o.activeTimers[leagueID]; ok {
		existing.cancel()
		log.Debug().Str("league_id", leagueID.String()).Msg("replaced existing timer")
	}
	o.activeTimers[leagueID] = lt
}

// cancelTimer cancels and removes a league's pending timer.
func (o *Orchestrator) cancelTimer(leagueID uuid.UUID) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()

	if existing, ok := o.activeTimers[leagueID]; ok {
		existing.cancel()
		delete(o.activeTimers, leagueID)
		log.Debug().Str("league_id", leagueID.String()).Msg("cancelled existing timer")
	}
}

// removeTimer forgets a timer that fired, unless it was already replaced.
func (o *Orchestrator) removeTimer(leagueID uuid.UUID, lt *leagueTimer) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	if o.activeTimers[leagueID] == lt {
		delete(o.activeTimers, leagueID)
	}
}

func (o *Orchestrator) cancelAllTimers() {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	for leagueID, lt := range o.activeTimers {
		lt.cancel()
		log.Debug().Str("league_id", leagueID.String()).Msg("cancelled timer on shutdown")
	}
	o.activeTimers = make(map[uuid.UUID]*leagueTimer)
	o.closed = true
}

// pendingTimers returns how many leagues have an armed timer.
func (o *Orchestrator) pendingTimers() int {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	return len(o.activeTimers)
}

func (lt *leagueTimer) cancel() {
	stopAndDrainTimer(lt.timer)
	close(lt.stop)
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
