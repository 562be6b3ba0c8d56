package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/icchi-game/icchi/internal/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendQueueSize  = 32
)

// Client is one websocket subscribed to a room. The userID association
// is established only by an explicit join message over the socket, so
// a viewer that joined via REST is not removed when its tab closes.
type Client struct {
	hub    *Hub
	room   *game.RoomCtx
	roomID string
	conn   *websocket.Conn

	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	mu     sync.Mutex
	userID string
}

func newClient(hub *Hub, room *game.RoomCtx, roomID string, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		room:   room,
		roomID: roomID,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// enqueue hands serialized bytes to the write pump without blocking.
// A full queue means the client is not draining; drop the connection
// and let the snapshot-on-reconnect mechanism catch it up.
//
// enqueue runs inside Hub.Broadcast while the coordinator still holds
// the room lock, and teardown re-enters the coordinator through
// RemoveUser. The drop must happen on its own goroutine or the removal
// deadlocks against the broadcasting operation.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		log.Warn().Str("room", c.roomID).Msg("send queue full, dropping connection")
		go c.teardown()
	}
}

func (c *Client) sendEvent(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("room", c.roomID).Msg("marshal event")
		return
	}
	c.enqueue(data)
}

func (c *Client) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("room", c.roomID).Msg("socket read error")
			}
			return
		}
		c.handleMessage(data)
	}
}

// handleMessage dispatches one inbound channel message. A message that
// cannot be parsed produces an error event back to this connection
// only; room state is untouched.
func (c *Client) handleMessage(data []byte) {
	var msg game.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendEvent(game.NewErrorEvent("bad message"))
		return
	}

	switch msg.Type {
	case game.ClientPing:
		c.sendEvent(game.NewStateEvent(c.room.Snapshot()))
	case game.ClientJoin:
		u, err := c.room.Join(msg.Name, msg.Icon)
		if err != nil {
			c.sendEvent(game.NewErrorEvent(err.Error()))
			return
		}
		c.setUser(u.ID)
		log.Info().Str("room", c.roomID).Str("user", u.ID).Msg("socket join")
	case game.ClientLeave:
		if msg.UserID == "" {
			c.sendEvent(game.NewErrorEvent("userId required"))
			return
		}
		c.room.RemoveUser(msg.UserID)
		if c.user() == msg.UserID {
			c.setUser("")
		}
	default:
		log.Debug().Str("room", c.roomID).Str("type", msg.Type).Msg("unknown client message")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.teardown()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// teardown unregisters the connection and, if a user joined through
// it, removes that user from the room. Safe to call from either pump
// or from enqueue, any number of times.
func (c *Client) teardown() {
	c.closeOnce.Do(func() {
		c.hub.remove(c.roomID, c)
		close(c.done)
		_ = c.conn.Close()
		if id := c.user(); id != "" {
			c.room.RemoveUser(id)
			log.Info().Str("room", c.roomID).Str("user", id).Msg("socket disconnect, user removed")
		}
	})
}

func (c *Client) setUser(id string) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

func (c *Client) user() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}
