package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draft"
	"github.com/mcdev12/draftroom/go/internal/draft/audit"
	"github.com/mcdev12/draftroom/go/internal/draft/gateway"
	"github.com/mcdev12/draftroom/go/internal/draft/league"
	"github.com/mcdev12/draftroom/go/internal/draft/memstore"
	"github.com/mcdev12/draftroom/go/internal/draft/orchestrator"
	"github.com/mcdev12/draftroom/go/internal/draft/outbox"
	"github.com/mcdev12/draftroom/go/internal/draft/pick"
)

type Services struct {
	DraftRoom *draft.Service
	Picks     *pick.App
	Leagues   *league.App
	Recorder  *audit.Recorder
	Arbiter   *orchestrator.Orchestrator // nil when disabled
	Gateway   *gateway.Service           // nil when disabled

	drainTimeout time.Duration
}

// store is everything the apps need from one backing store.
type store interface {
	pick.PickRepository
	league.LeagueRepository
}

func setupServices(config *Config, database *Database, clock clockwork.Clock) (*Services, error) {
	// Wire up dependency injection chain
	// Store layer → App layer → Service layer

	var gw *gateway.Service
	if config.Gateway.Enabled {
		gwConfig := gateway.DefaultConfig()
		// With the memory store events reach the gateway in-process; otherwise they arrive
		// over JetStream from the outbox relay.
		gwConfig.ConsumeBus = config.Store == storePostgres
		gwConfig.JetStreamConfig.Connection.URL = getEnv("NATS_URL", gwConfig.JetStreamConfig.Connection.URL)
		gw = gateway.NewService(gwConfig, nil)
	}

	var (
		st        store
		auditRepo audit.AuditRepository
		events    pick.EventPublisher
	)
	switch config.Store {
	case storeMemory:
		mem := memstore.New()
		st, auditRepo = mem, mem
		var publisher outbox.Publisher = outbox.NewLogPublisher()
		if gw != nil {
			publisher = gw.Publisher()
		}
		events = outbox.NewDirect(publisher, clock)
	case storePostgres:
		if database == nil {
			return nil, fmt.Errorf("postgres store requires a database")
		}
		st = pick.NewRepository(database.Pool)
		auditRepo = audit.NewRepository(database.DB)
		events = outbox.NewApp(outbox.New(database.DB), clock)
	default:
		return nil, fmt.Errorf("unknown store %q", config.Store)
	}

	// Audit
	recorder := audit.NewRecorder(auditRepo, clock, config.auditConfig())

	// Picks and league lifecycle
	picks := pick.NewApp(st, recorder, events, clock)
	leagues := league.NewApp(st, picks, recorder, events, clock)
	if gw != nil {
		gw.SetTurnProvider(picks)
	}

	svc := &Services{
		Picks:        picks,
		Leagues:      leagues,
		Recorder:     recorder,
		Gateway:      gw,
		drainTimeout: config.Audit.DrainTimeout,
	}

	// Timeout arbiter. The interface stays nil rather than holding a typed nil pointer.
	var arbiter draft.TimeoutArbiter
	if config.Arbiter.Enabled {
		policy, err := orchestrator.ParseTimeoutPolicy(config.Arbiter.Policy)
		if err != nil {
			return nil, err
		}
		strat, err := orchestrator.NewStrategy(config.Arbiter.Strategy, config.Arbiter.Seed)
		if err != nil {
			return nil, err
		}
		orch := orchestrator.NewOrchestrator(picks, strat, recorder, clock, config.arbiterConfig(policy))
		picks.Subscribe(orch)
		svc.Arbiter = orch
		arbiter = orch
	}

	svc.DraftRoom = draft.NewService(picks, leagues, arbiter)
	return svc, nil
}

// runners returns the background loops to run alongside the HTTP server.
func (s *Services) runners() []func(ctx context.Context) error {
	runners := []func(ctx context.Context) error{
		func(ctx context.Context) error { return s.Recorder.Run(ctx, s.drainTimeout) },
	}
	if s.Arbiter != nil {
		runners = append(runners, s.Arbiter.Run)
	}
	if s.Gateway != nil {
		runners = append(runners, s.Gateway.Start)
	}
	return runners
}
