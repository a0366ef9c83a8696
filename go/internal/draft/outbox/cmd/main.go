// Command outbox relays committed draft_outbox rows to JetStream.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/draftroom/go/internal/dbconfig"
	"github.com/mcdev12/draftroom/go/internal/draft/outbox"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("outbox relay failed")
	}
	log.Info().Msg("outbox relay stopped")
}

func run(ctx context.Context) error {
	dbCfg := dbconfig.NewConfigFromEnv()
	db, err := dbCfg.OpenSQL(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info().Str("dsn", dbCfg.Redacted()).Msg("connected to database")

	jsCfg := outbox.DefaultJetStreamConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg.URL = url
	}
	publisher, err := outbox.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close publisher")
		}
	}()

	relayCfg := relayConfigFromEnv(dbCfg.DSN())
	relay, err := outbox.NewListener(db, publisher, relayCfg, clockwork.NewRealClock())
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Start(ctx)
	})

	if addr := os.Getenv("HEALTH_ADDR"); addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           statsHandler(relay),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", addr).Msg("relay health endpoint listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func relayConfigFromEnv(dsn string) outbox.ListenerConfig {
	cfg := outbox.DefaultListenerConfig()
	cfg.DatabaseURL = dsn
	if d, err := time.ParseDuration(os.Getenv("SWEEP_INTERVAL")); err == nil && d > 0 {
		cfg.SweepInterval = d
	}
	if n, err := strconv.Atoi(os.Getenv("RELAY_BATCH_SIZE")); err == nil && n > 0 {
		cfg.BatchSize = n
	}
	if n, err := strconv.Atoi(os.Getenv("RELAY_MAX_RETRIES")); err == nil && n >= 0 {
		cfg.MaxRetries = n
	}
	return cfg
}

func statsHandler(relay *outbox.Listener) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(relay.Stats()); err != nil {
			log.Error().Err(err).Msg("failed to write relay stats")
		}
	})
	return mux
}
