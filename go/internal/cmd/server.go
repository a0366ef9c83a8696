package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcdev12/draftroom/go/internal/draft"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// connectHeaders are the request headers Connect clients send from a browser.
var connectHeaders = []string{
	"Accept-Encoding",
	"Content-Encoding",
	"Content-Type",
	"Connect-Protocol-Version",
	"Connect-Timeout-Ms",
	"X-Forwarded-For",
	"X-User-Agent",
}

func setupServer(config *Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	draftRoomPath, draftRoomHandler := draft.NewHandler(services.DraftRoom)
	mux.Handle(draftRoomPath, draftRoomHandler)

	if services.Gateway != nil {
		services.Gateway.RegisterRoutes(mux)
	}

	mux.HandleFunc("/health", healthHandler(config, services))

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: connectHeaders,
		ExposedHeaders: []string{"Grpc-Status", "Grpc-Message", "Grpc-Status-Details-Bin"},
		MaxAge:         int((2 * time.Hour).Seconds()),
	})

	return &http.Server{
		Addr:              ":" + config.Port,
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type healthResponse struct {
	Status            string `json:"status"`
	Store             string `json:"store"`
	Arbiter           bool   `json:"arbiter"`
	GatewayConns      int    `json:"gateway_connections"`
	AuditDropped      int64  `json:"audit_dropped"`
	AuditWriteFailure int64  `json:"audit_write_failures"`
}

func healthHandler(config *Config, services *Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:            "ok",
			Store:             config.Store,
			Arbiter:           services.Arbiter != nil,
			AuditDropped:      services.Recorder.Dropped(),
			AuditWriteFailure: services.Recorder.Failed(),
		}
		if services.Gateway != nil {
			resp.GatewayConns = services.Gateway.GetStats().TotalConnections
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	}
}
