package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Run recovers timers for every drafting league and processes timeouts until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().
		Str("instance", o.instanceID).
		Int("workers", o.numWorkers).
		Str("policy", string(o.policy)).
		Str("strategy", o.strat.Name()).
		Msg("timeout arbiter started")

	var wg sync.WaitGroup
	for i := 0; i < o.numWorkers; i++ {
		wg.Add(1)
		go o.worker(ctx, &wg, i)
	}

	if err := o.recover(ctx); err != nil {
		log.Error().Err(err).Str("instance", o.instanceID).Msg("failed to recover league timers")
	}

	<-ctx.Done()

	log.Info().Str("instance", o.instanceID).Msg("shutting down workers")
	o.cancelAllTimers()
	wg.Wait()
	log.Info().Str("instance", o.instanceID).Msg("all workers shut down")
	return nil
}

// recover arms timers for leagues that were drafting before a restart. Picks that expired
// while the process was down fire immediately.
func (o *Orchestrator) recover(ctx context.Context) error {
	leagues, err := o.app.ListActiveLeagues(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active leagues: %w", err)
	}
	for _, league := range leagues {
		o.TurnChanged(league)
	}
	log.Info().
		Int("leagues", len(leagues)).
		Str("instance", o.instanceID).
		Msg("recovered league timers")
	return nil
}

// worker processes league timeouts from the work channel
func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	log.Debug().
		Str("instance", o.instanceID).
		Int("worker_id", workerID).
		Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().
				Str("instance", o.instanceID).
				Int("worker_id", workerID).
				Msg("worker shutting down")
			return
		case leagueID := <-o.workCh:
			o.handleTimeout(ctx, workerID, leagueID)
		}
	}
}

func (o *Orchestrator) handleTimeout(ctx context.Context, workerID int, leagueID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("league_id", leagueID.String()).
				Int("worker_id", workerID).
				Msg("worker recovered from panic")
		}
	}()

	state, err := o.OnTimeoutTick(ctx, leagueID)
	if err != nil {
		log.Error().
			Err(err).
			Str("league_id", leagueID.String()).
			Str("instance", o.instanceID).
			Int("worker_id", workerID).
			Msg("worker timeout handling failed")
		return
	}

	log.Debug().
		Str("league_id", leagueID.String()).
		Str("state", string(state)).
		Int("worker_id", workerID).
		Msg("worker handled timeout")
}
