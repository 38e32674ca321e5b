package stream

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
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
)

// WSConn is a middleman between a websocket connection and the hub.
type WSConn struct {
	hub     *Hub
	conn    *websocket.Conn
	client  *Client
	replies chan Message
	done    chan struct{}
	once    sync.Once
}

// NewWSConn subscribes a websocket connection to events matching filter.
func NewWSConn(hub *Hub, conn *websocket.Conn, filter string) *WSConn {
	return &WSConn{
		hub:     hub,
		conn:    conn,
		client:  hub.Subscribe(filter, 64),
		replies: make(chan Message, 8),
		done:    make(chan struct{}),
	}
}

func (c *WSConn) close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.Unsubscribe(c.client)
		c.conn.Close()
	})
}

// ReadPump pumps messages from the websocket connection. Clients may send
// {"action":"ping"}; anything else is answered with an error message.
func (c *WSConn) ReadPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("Websocket closed unexpectedly")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(NewErrorMessage("Invalid message"))
			continue
		}
		switch msg.Action {
		case "ping":
			c.reply(Message{Action: "pong"})
		default:
			c.reply(NewErrorMessage("Unknown action: " + msg.Action))
		}
	}
}

func (c *WSConn) reply(m Message) {
	select {
	case c.replies <- m:
	default:
	}
}

// WritePump pumps events and replies from the hub to the websocket connection.
func (c *WSConn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case evt, ok := <-c.client.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(NewEventMessage(evt)); err != nil {
				return
			}
		case m := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(m); err != nil {
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
