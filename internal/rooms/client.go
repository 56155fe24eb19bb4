package rooms

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/stillwater-health/telesession/internal/metrics"
	"github.com/stillwater-health/telesession/internal/token"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
)

// Client is one authenticated websocket connection. Its identity is
// attached once by the connection gate and trusted for the rest of
// the connection's lifetime; the credential is never re-checked, so
// expiry mid-connection does not close the socket.
type Client struct {
	ID       string
	Identity token.Identity

	conn     *websocket.Conn
	send     chan []byte
	registry *Registry
}

// NewClient wraps an accepted, already-authenticated connection with a
// fresh socket id.
func NewClient(reg *Registry, conn *websocket.Conn, identity token.Identity) *Client {
	return &Client{
		ID:       uuid.New().String(),
		Identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		registry: reg,
	}
}

func (c *Client) info() ParticipantInfo {
	return ParticipantInfo{
		SocketID: c.ID,
		UserID:   c.Identity.UserID,
		Role:     c.Identity.Role,
		Name:     c.Identity.Name,
	}
}

// enqueue hands a message to the write pump without blocking. A full
// buffer drops the message; the transport is at-most-once and peers
// recover through renegotiation or reconnect.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Warn().Str("socket_id", c.ID).Msg("send buffer full, dropping message")
	}
}

// Serve runs the connection until it drops: the write pump in its own
// goroutine, the read pump in this one. It returns after the
// disconnect path has run exactly once.
func (c *Client) Serve() {
	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.registry.Disconnect(c)
		c.conn.Close()
		close(c.send)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("socket_id", c.ID).Msg("websocket read error")
			}
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Str("socket_id", c.ID).Msg("unparseable message, ignoring")
			continue
		}

		switch msg.Type {
		case TypeJoinRoom:
			c.registry.Join(c, msg.RoomID)
		case TypeOffer, TypeAnswer, TypeCandidate:
			c.registry.Relay(c, msg)
		case TypeRecordingStarted, TypeRecordingStopped:
			c.registry.BroadcastEvent(c, msg.Type)
		default:
			log.Warn().Str("socket_id", c.ID).Str("type", msg.Type).Msg("unknown message type")
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
