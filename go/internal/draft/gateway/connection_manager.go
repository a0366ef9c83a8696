package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/go/internal/draft/outbox"
	"github.com/rs/zerolog/log"
)

type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	// SendBuffer is how many frames a client may fall behind before it is dropped.
	SendBuffer  int
	CheckOrigin func(r *http.Request) bool
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBuffer:      256,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}

// room is the set of sockets watching one league.
type room map[*client]struct{}

type broadcast struct {
	leagueID uuid.UUID
	event    *LeagueEvent
}

// ConnectionManager owns every league room. Broadcasts are serialised through one
// goroutine (Start) so each socket sees a league's events in publish order.
type ConnectionManager struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]room

	upgrader websocket.Upgrader
	config   ConnectionConfig
	queue    chan broadcast
	clock    clockwork.Clock
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBuffer <= 0 {
		config.SendBuffer = 256
	}
	return &ConnectionManager{
		rooms: make(map[uuid.UUID]room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		queue:  make(chan broadcast, 1000),
		clock:  clockwork.NewRealClock(),
	}
}

func (cm *ConnectionManager) now() time.Time {
	return cm.clock.Now()
}

// Start drains the broadcast queue until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-cm.queue:
			cm.deliver(b)
		}
	}
}

// BroadcastToLeague queues event for every socket in the league. It never blocks; when the
// queue is full the event is dropped and clients catch up from their next snapshot.
func (cm *ConnectionManager) BroadcastToLeague(leagueID uuid.UUID, event *LeagueEvent) {
	select {
	case cm.queue <- broadcast{leagueID: leagueID, event: event}:
	default:
		log.Warn().
			Str("league_id", leagueID.String()).
			Str("event_type", string(event.Type)).
			Msg("broadcast queue full, dropping event")
	}
}

// Publish implements outbox.Publisher for a single process without a message bus.
func (cm *ConnectionManager) Publish(_ context.Context, event outbox.OutboxEvent) error {
	wsEvent, err := toLeagueEvent(event.ID.String(), event.EventType, event.LeagueID.String(), event.Payload, cm.now())
	if err != nil {
		return err
	}
	cm.BroadcastToLeague(event.LeagueID, wsEvent)
	return nil
}

func (cm *ConnectionManager) deliver(b broadcast) {
	frame, err := json.Marshal(b.event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(b.event.Type)).Msg("failed to encode event")
		return
	}

	// Holding the read lock keeps leave from closing a send channel under us.
	var lagging []*client
	cm.mu.RLock()
	members := cm.rooms[b.leagueID]
	for c := range members {
		if !c.offer(frame) {
			lagging = append(lagging, c)
		}
	}
	delivered := len(members) - len(lagging)
	cm.mu.RUnlock()

	for _, c := range lagging {
		log.Warn().Str("connection_id", c.id).Msg("client fell behind, disconnecting")
		c.close()
	}

	log.Debug().
		Str("league_id", b.leagueID.String()).
		Str("event_type", string(b.event.Type)).
		Int("delivered", delivered).
		Msg("event delivered")
}

// attach upgrades the request and joins the socket to the league's room.
func (cm *ConnectionManager) attach(w http.ResponseWriter, r *http.Request, userID string, leagueID uuid.UUID) (*client, error) {
	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &client{
		id:       uuid.NewString(),
		userID:   userID,
		leagueID: leagueID,
		ws:       ws,
		send:     make(chan []byte, cm.config.SendBuffer),
		cm:       cm,
		joinedAt: cm.now(),
	}
	cm.join(c)

	go c.writeLoop()
	go c.readLoop()

	log.Info().
		Str("connection_id", c.id).
		Str("user_id", userID).
		Str("league_id", leagueID.String()).
		Msg("client joined league room")
	return c, nil
}

func (cm *ConnectionManager) join(c *client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	r, ok := cm.rooms[c.leagueID]
	if !ok {
		r = make(room)
		cm.rooms[c.leagueID] = r
	}
	r[c] = struct{}{}
}

// leave removes c and closes its send channel. Safe to call more than once.
func (cm *ConnectionManager) leave(c *client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	r, ok := cm.rooms[c.leagueID]
	if !ok {
		return
	}
	if _, member := r[c]; !member {
		return
	}
	delete(r, c)
	close(c.send)
	if len(r) == 0 {
		delete(cm.rooms, c.leagueID)
	}
	log.Info().
		Str("connection_id", c.id).
		Str("league_id", c.leagueID.String()).
		Dur("connected_for", cm.now().Sub(c.joinedAt)).
		Msg("client left league room")
}

type ConnectionStats struct {
	TotalConnections  int            `json:"total_connections"`
	ActiveLeagues     int            `json:"active_leagues"`
	LeagueConnections map[string]int `json:"league_connections"`
}

func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveLeagues:     len(cm.rooms),
		LeagueConnections: make(map[string]int, len(cm.rooms)),
	}
	for leagueID, r := range cm.rooms {
		stats.TotalConnections += len(r)
		stats.LeagueConnections[leagueID.String()] = len(r)
	}
	return stats
}
