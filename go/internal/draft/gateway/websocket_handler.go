package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/go/internal/draft/pick"
	"github.com/rs/zerolog/log"
)

// TurnProvider supplies the current turn sent to a client when it connects.
type TurnProvider interface {
	GetCurrentTurn(ctx context.Context, leagueID uuid.UUID) (*pick.Turn, error)
}

// WebSocketHandler handles WebSocket upgrade requests for league connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	turns             TurnProvider
}

// NewWebSocketHandler creates a new WebSocket handler. turns may be nil.
func NewWebSocketHandler(cm *ConnectionManager, turns TurnProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		turns:             turns,
	}
}

// HandleLeagueConnection handles WebSocket connections for a specific league
func (h *WebSocketHandler) HandleLeagueConnection(w http.ResponseWriter, r *http.Request) {
	leagueIDStr := r.URL.Query().Get("league_id")
	if leagueIDStr == "" {
		http.Error(w, "league_id is required", http.StatusBadRequest)
		return
	}

	leagueID, err := uuid.Parse(leagueIDStr)
	if err != nil {
		http.Error(w, "invalid league_id format", http.StatusBadRequest)
		return
	}

	// Spectators connect without a captain id.
	userID := r.URL.Query().Get("captain_id")
	if userID == "" {
		userID = "spectator"
	}

	var snapshot *LeagueEvent
	if h.turns != nil {
		snapshot, err = h.turnSnapshot(r.Context(), leagueID)
		if err != nil {
			log.Warn().Err(err).Str("league_id", leagueID.String()).Msg("failed to load turn snapshot")
		}
	}

	c, err := h.connectionManager.attach(w, r, userID, leagueID)
	if err != nil {
		log.Error().
			Err(err).
			Str("league_id", leagueID.String()).
			Str("user_id", userID).
			Msg("failed to upgrade WebSocket connection")
		// The upgrader has already written an error response.
		return
	}

	if snapshot != nil {
		c.sendEvent(snapshot)
	}
}

func (h *WebSocketHandler) turnSnapshot(ctx context.Context, leagueID uuid.UUID) (*LeagueEvent, error) {
	turn, err := h.turns.GetCurrentTurn(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return nil, err
	}
	return &LeagueEvent{
		ID:        uuid.NewString(),
		LeagueID:  leagueID.String(),
		Type:      EventTypeTurnSnapshot,
		Timestamp: h.connectionManager.now(),
		Data:      data,
	}, nil
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/league", h.HandleLeagueConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
