package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Service is the draft room gateway: WebSocket fan-out fed either by JetStream or by
// in-process outbox publishing.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
	config            Config
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
	// ConsumeBus subscribes to JetStream. When false, events reach the gateway through
	// Publisher() in the same process.
	ConsumeBus bool
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
		ConsumeBus:       true,
	}
}

// NewService creates a gateway service. turns may be nil.
func NewService(config Config, turns TurnProvider) *Service {
	cm := NewConnectionManager(config.ConnectionConfig)
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, turns),
		config:            config,
	}
}

// SetTurnProvider sets the source of the turn snapshot sent to new sockets. It must be called
// before the routes are served.
func (s *Service) SetTurnProvider(turns TurnProvider) {
	s.wsHandler.turns = turns
}

// Publisher exposes the connection manager as an outbox publisher.
func (s *Service) Publisher() *ConnectionManager {
	return s.connectionManager
}

// Start runs the broadcast loop, and the bus consumer when enabled, until ctx is cancelled
// or the consumer fails.
func (s *Service) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.config.ConsumeBus {
		consumer, err := NewEventConsumer(ctx, s.connectionManager, s.config.JetStreamConfig)
		if err != nil {
			return fmt.Errorf("failed to create event consumer: %w", err)
		}
		s.eventConsumer = consumer
		g.Go(func() error { return consumer.Start(ctx) })
	}
	g.Go(func() error {
		s.connectionManager.Start(ctx)
		return nil
	})

	log.Info().Bool("consume_bus", s.config.ConsumeBus).Msg("draft room gateway running")
	err := g.Wait()
	s.Stop()
	return err
}

// Stop closes the bus connection. The broadcast loop stops with its context.
func (s *Service) Stop() {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

// GetStats returns statistics about active connections
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
