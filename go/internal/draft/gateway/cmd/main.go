// Command gateway runs the draft room WebSocket fan-out on its own, consuming events from JetStream.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/draftroom/go/internal/dbconfig"
	"github.com/mcdev12/draftroom/go/internal/draft/gateway"
	"github.com/mcdev12/draftroom/go/internal/draft/pick"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("gateway failed")
	}
	log.Info().Msg("gateway stopped")
}

func run(ctx context.Context) error {
	addr := ":" + envOr("GATEWAY_PORT", "8081")

	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := dbCfg.NewPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	cfg := gateway.DefaultConfig()
	cfg.JetStreamConfig.Connection.URL = envOr("NATS_URL", cfg.JetStreamConfig.Connection.URL)

	// The gateway never commits; it only reads the current turn for sockets that just joined.
	turns := pick.NewApp(pick.NewRepository(pool), nil, nil, nil)
	svc := gateway.NewService(cfg, turns)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.GetStats()); err != nil {
			log.Error().Err(err).Msg("failed to write gateway stats")
		}
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           cors.AllowAll().Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	log.Info().
		Str("addr", addr).
		Str("dsn", dbCfg.Redacted()).
		Str("nats_url", cfg.JetStreamConfig.Connection.URL).
		Msg("starting draft room gateway")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Start(ctx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
