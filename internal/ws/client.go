package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/andymarrow/stark-api/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 4096
)

// Client is one WebSocket connection. A user with several tabs open has
// several clients, each with its own ConnKey in the presence set.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	ConnKey string
	UserID  uuid.UUID
	Name    string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, name string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		ConnKey: uuid.NewString(),
		UserID:  userID,
		Name:    name,
	}
}

// MessageHandler processes events the client sends over the socket.
type MessageHandler func(client *Client, event model.WSEvent)

// ReadPump reads client frames until the connection drops, keeping the
// read deadline fresh off pongs. Runs in a per-client goroutine.
func (c *Client) ReadPump(handler MessageHandler) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		var event model.WSEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("Error parsing WebSocket message: %v", err)
			continue
		}
		if handler != nil {
			handler(c, event)
		}
	}
}

// WritePump drains the send channel to the socket and pings on a
// ticker. Runs in a per-client goroutine; the hub closes c.send to
// shut the connection down.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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
