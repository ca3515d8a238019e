package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Size of the send channel buffer.
	sendBufferSize = 64
)

// Subscriptions tracks what a client is subscribed to.
type Subscriptions struct {
	tags map[string]bool
	kinds map[string]bool
	mu sync.RWMutex
}

// NewSubscriptions creates a new Subscriptions instance.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		tags: make(map[string]bool),
		kinds: make(map[string]bool),
	}
}

func (s *Subscriptions) empty() bool {
	return len(s.tags) == 0 && len(s.kinds) == 0
}

// Client represents a WebSocket client connection.
type Client struct {
	hub *Hub
	conn *websocket.Conn
	send chan *StrandEvent

	id string
	subs *Subscriptions
}

// NewClient creates a new Client instance.
func NewClient(id string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub: hub,
		conn: conn,
		send: make(chan *StrandEvent, sendBufferSize),
		id: id,
		subs: NewSubscriptions(),
	}
}

// readPump pumps subscribe/unsubscribe commands from the connection to the
// hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
			c.conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn().Str("client_id", c.id).Err(err).Msg("websocket unexpected close")
			}
			break
		}

		var cmd WSCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.sendResponse(newErrorResponse("error", "invalid command format"))
			continue
		}
		c.handleCommand(&cmd)
	}
}

// writePump pumps strand events from the hub to the connection, encoded as
// msgpack binary frames for compact high-frequency fan-out.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
			case event, ok := <-c.send:
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeEvent(event); err != nil {
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

func (c *Client) writeEvent(event *StrandEvent) error {
	payload, err := msgpack.Marshal(event)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (c *Client) handleCommand(cmd *WSCommand) {
	switch cmd.Action {
		case CmdSubscribe:
			c.handleSubscribe(cmd)
		case CmdUnsubscribe:
			c.handleUnsubscribe(cmd)
		default:
			c.sendResponse(newErrorResponse("error", "unknown command: "+cmd.Action))
	}
}

func (c *Client) handleSubscribe(cmd *WSCommand) {
	if len(cmd.Tags) == 0 && cmd.Kind == "" {
		c.sendResponse(newErrorResponse(CmdSubscribe, "tags or kind required"))
		return
	}
	c.hub.Subscribe(c, cmd.Tags, cmd.Kind)
	c.sendResponse(newSuccessResponse(CmdSubscribe, "subscribed"))
}

func (c *Client) handleUnsubscribe(cmd *WSCommand) {
	if len(cmd.Tags) == 0 && cmd.Kind == "" {
		c.sendResponse(newErrorResponse(CmdUnsubscribe, "tags or kind required"))
		return
	}
	c.hub.Unsubscribe(c, cmd.Tags, cmd.Kind)
	c.sendResponse(newSuccessResponse(CmdUnsubscribe, "unsubscribed"))
}

// sendResponse sends a JSON response to the client (responses are
// low-frequency, so they stay plain JSON text frames rather than msgpack).
func (c *Client) sendResponse(resp *WSResponse) {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteJSON(resp)
}
