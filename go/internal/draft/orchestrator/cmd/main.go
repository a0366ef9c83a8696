package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/dbconfig"
	"github.com/mcdev12/draftroom/go/internal/draft/audit"
	"github.com/mcdev12/draftroom/go/internal/draft/orchestrator"
	"github.com/mcdev12/draftroom/go/internal/draft/outbox"
	"github.com/mcdev12/draftroom/go/internal/draft/pick"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Standalone timeout arbiter. It follows leagues through JetStream and commits through the
// same conditional writes as the draft room server, so running several is safe.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	natsURL := getEnv("NATS_URL", nats.DefaultURL)
	policy, err := orchestrator.ParseTimeoutPolicy(getEnv("TIMEOUT_POLICY", string(orchestrator.PolicySkip)))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timeout policy")
	}
	strat, err := orchestrator.NewStrategy(getEnv("AUTOPICK_STRATEGY", "ranked"), time.Now().UnixNano())
	if err != nil {
		log.Fatal().Err(err).Msg("invalid auto-pick strategy")
	}
	workers, err := strconv.Atoi(getEnv("ARBITER_WORKERS", "4"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ARBITER_WORKERS")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := dbCfg.NewPool(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	db, err := dbCfg.OpenSQL(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	log.Info().
		Str("dsn", dbCfg.Redacted()).
		Str("nats_url", natsURL).
		Str("policy", string(policy)).
		Str("strategy", strat.Name()).
		Msg("starting timeout arbiter")

	clock := clockwork.NewRealClock()
	recorder := audit.NewRecorder(audit.NewRepository(db), clock, audit.DefaultConfig())
	picks := pick.NewApp(pick.NewRepository(pool), recorder, outbox.NewApp(outbox.New(db), clock), clock)

	orch := orchestrator.NewOrchestrator(picks, strat, recorder, clock, orchestrator.Config{
		Workers: workers,
		Policy:  policy,
	})
	picks.Subscribe(orch)

	feedCfg := orchestrator.DefaultEventFeedConfig()
	feedCfg.Connection.URL = natsURL
	feed, err := orchestrator.NewEventFeed(ctx, orch, feedCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up event feed")
	}
	defer feed.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	server := &http.Server{
		Addr:        ":" + getEnv("ARBITER_PORT", "8082"),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return recorder.Run(gctx, 5*time.Second) })
	g.Go(func() error { return orch.Run(gctx) })
	g.Go(func() error { return feed.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("health check server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("timeout arbiter stopped with error")
		return
	}
	log.Info().Msg("timeout arbiter shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
