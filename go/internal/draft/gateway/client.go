package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// clientMessage is the only frame a client may send. Picks go through the RPC surface.
type clientMessage struct {
	Type string `json:"type"`
}

const clientMessagePing = "ping"

// client is one WebSocket in a league room.
type client struct {
	id       string
	userID   string
	leagueID uuid.UUID
	ws       *websocket.Conn
	send     chan []byte
	cm       *ConnectionManager
	joinedAt time.Time
}

// offer queues a frame without blocking. Callers hold cm.mu for reading.
func (c *client) offer(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// sendEvent queues an event for this client only. It is a no-op once the client has left.
func (c *client) sendEvent(event *LeagueEvent) {
	frame, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode event")
		return
	}
	c.cm.mu.RLock()
	defer c.cm.mu.RUnlock()
	if _, member := c.cm.rooms[c.leagueID][c]; !member {
		return
	}
	if !c.offer(frame) {
		log.Warn().Str("connection_id", c.id).Msg("client send buffer full, dropping event")
	}
}

func (c *client) close() {
	c.cm.leave(c)
	_ = c.ws.Close()
}

// terminate sends a close frame with code before dropping the socket.
func (c *client) terminate(code int, reason string) {
	deadline := time.Now().Add(c.cm.config.WriteTimeout)
	if err := c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline); err != nil {
		log.Debug().Err(err).Str("connection_id", c.id).Msg("failed to write close frame")
	}
	c.close()
}

func (c *client) writeLoop() {
	ping := c.cm.clock.NewTicker(c.cm.config.PingInterval)
	defer func() {
		ping.Stop()
		c.close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cm.config.WriteTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("write failed")
				return
			}
		case <-ping.Chan():
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cm.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("ping failed")
				return
			}
		}
	}
}

func (c *client) readLoop() {
	defer c.close()

	c.ws.SetReadLimit(c.cm.config.MaxMessageSize)
	extend := func() { _ = c.ws.SetReadDeadline(time.Now().Add(c.cm.config.ReadTimeout)) }
	extend()
	c.ws.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("connection_id", c.id).Msg("client closed unexpectedly")
			}
			return
		}
		extend()

		if !c.handle(data) {
			c.terminate(websocket.ClosePolicyViolation, "unsupported message")
			return
		}
	}
}

// handle answers a client frame. It reports false for anything the protocol does not allow.
func (c *client) handle(data []byte) bool {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Str("connection_id", c.id).Msg("malformed client message")
		return false
	}
	switch msg.Type {
	case clientMessagePing:
		c.sendEvent(&LeagueEvent{
			ID:        uuid.NewString(),
			LeagueID:  c.leagueID.String(),
			Type:      EventTypePong,
			Timestamp: c.cm.now(),
		})
		return true
	default:
		log.Debug().Str("connection_id", c.id).Str("type", msg.Type).Msg("unsupported client message")
		return false
	}
}
