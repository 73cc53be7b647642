package chat

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/baatcheet/backend/internal/identity"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 5120
)

// Client is one live session: a websocket bound to the identity it
// authenticated as during the handshake. Every inbound event is attributed
// to that identity; sender ids inside payloads are never trusted.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	User *identity.User

	Send chan []byte
	done chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, user *identity.User) *Client {
	return &Client{
		Hub:  hub,
		Conn: conn,
		User: user,
		Send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

// trySend queues a payload without blocking. Events for a session whose
// buffer is full are dropped; the session itself is reaped by its pumps.
func (c *Client) trySend(payload []byte) {
	if payload == nil {
		return
	}
	select {
	case <-c.done:
	case c.Send <- payload:
	default:
		log.Printf("[chat] dropping %dB event for user %d: send buffer full", len(payload), c.User.ID)
	}
}

func (c *Client) sendError(msg string) {
	c.trySend(mustMarshal(Event{Type: EventError, Error: msg}))
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		switch ev.Type {
		case EventSendMessage:
			if _, err := c.Hub.Router.Submit(context.Background(), c.User, ev.ReceiverID, ev.Content); err != nil {
				log.Printf("[chat] send-message from user %d failed: %v", c.User.ID, err)
				c.sendError(clientMessage(err))
			}
		case EventTyping:
			c.Hub.RelayTyping(c.User, ev.ReceiverID, ev.IsTyping)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
