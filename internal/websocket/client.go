package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chat-relay/internal/relay"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound event buffer per session.
	sendBufferSize = 256
)

// Delivery failure reasons surfaced to the registry.
var (
	ErrSessionClosed  = errors.New("websocket: session closed")
	ErrSendBufferFull = errors.New("websocket: send buffer full")
)

// inboundPayload is the message format received from clients. user and
// text are both optional; type routes the event.
type inboundPayload struct {
	Type string `json:"type"`
	User string `json:"user"`
	Text string `json:"text"`
}

// Inbound event types accepted from clients.
const (
	inboundMessage = "message"
	inboundClear   = "clear_chat"
)

// Client is a single websocket connection acting as a relay session. The
// relay core only sees its id and Deliver; the pumps translate between the
// wire and coordinator calls.
type Client struct {
	id          string
	coordinator *relay.Coordinator
	conn        *websocket.Conn
	send        chan []byte
	log         zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(id string, coordinator *relay.Coordinator, conn *websocket.Conn, log zerolog.Logger) *Client {
	return &Client{
		id:          id,
		coordinator: coordinator,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
		log:         log.With().Str("session", id).Logger(),
	}
}

func (c *Client) ID() string { return c.id }

// Deliver queues one event for the write pump. It never blocks: a closed
// session or a full buffer (a client too slow to drain its feed) reports a
// delivery error so the registry can drop the session.
func (c *Client) Deliver(event relay.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrSessionClosed
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadPump reads client payloads and routes them into the coordinator.
// Runs in its own goroutine, one per connection; exiting deregisters the
// session.
func (c *Client) ReadPump() {
	defer func() {
		c.coordinator.OnDisconnect(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		var payload inboundPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			c.log.Debug().Err(err).Msg("discarding unparseable payload")
			continue
		}

		switch payload.Type {
		case inboundMessage:
			c.coordinator.OnMessage(context.Background(), c, payload.User, payload.Text)
		case inboundClear:
			c.coordinator.OnClear(context.Background(), c)
		default:
			c.log.Debug().Str("type", payload.Type).Msg("discarding unknown payload type")
		}
	}
}

// WritePump drains queued events to the connection and keeps the peer
// alive with pings. Runs in its own goroutine, one per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
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
