package chat

import (
	"context"
	"log"
	"time"

	"github.com/baatcheet/backend/internal/identity"
)

// Hub owns the session lifecycle. Its run loop is the single writer for
// lifecycle side effects: the users table's is_online/last_seen columns and
// the presence broadcasts that accompany an offline→online or
// online→offline transition.
type Hub struct {
	Registry *Registry
	Users    *identity.Store
	Router   *Router

	register   chan *Client
	unregister chan *Client
}

func NewHub(reg *Registry, users *identity.Store, router *Router) *Hub {
	return &Hub{
		Registry:   reg,
		Users:      users,
		Router:     router,
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	ctx := context.Background()
	for {
		select {
		case client := <-h.register:
			h.admit(ctx, client)
		case client := <-h.unregister:
			h.drop(ctx, client)
		}
	}
}

func (h *Hub) admit(ctx context.Context, client *Client) {
	wentOnline := h.Registry.Register(client.User.ID, client)

	// Every connect refreshes last_seen; the flag flip matters only on the
	// first session but the write is idempotent.
	if err := h.Users.SetOnline(ctx, client.User.ID, true, time.Now().UTC()); err != nil {
		log.Printf("[hub] mark online failed for user %d: %v", client.User.ID, err)
	}

	if wentOnline {
		h.broadcastExcept(client, Event{
			Type:     EventUserOnline,
			UserID:   client.User.ID,
			Username: client.User.Username,
		})
	}

	// Current roster goes to the new session only.
	roster, err := h.Users.OnlineSummaries(ctx)
	if err != nil {
		log.Printf("[hub] roster query failed for user %d: %v", client.User.ID, err)
		return
	}
	client.trySend(mustMarshal(Event{Type: EventOnlineUsers, Users: roster}))
}

func (h *Hub) drop(ctx context.Context, client *Client) {
	removed, wentOffline := h.Registry.Unregister(client.User.ID, client)
	if !removed {
		// Double close: transport error and graceful close can race here.
		return
	}
	close(client.done)

	if !wentOffline {
		return
	}
	if err := h.Users.SetOnline(ctx, client.User.ID, false, time.Now().UTC()); err != nil {
		log.Printf("[hub] mark offline failed for user %d: %v", client.User.ID, err)
	}
	h.broadcastExcept(client, Event{
		Type:     EventUserOffline,
		UserID:   client.User.ID,
		Username: client.User.Username,
	})
}

// RelayTyping forwards a transient typing signal to every session of the
// receiver. Nothing is persisted and nothing is reported back: a malformed
// signal or an offline receiver simply drops it.
func (h *Hub) RelayTyping(sender *identity.User, receiverID int64, isTyping bool) {
	if receiverID == 0 {
		return
	}
	payload := mustMarshal(Event{
		Type:     EventUserTyping,
		UserID:   sender.ID,
		Username: sender.Username,
		IsTyping: isTyping,
	})
	for _, c := range h.Registry.Sessions(receiverID) {
		c.trySend(payload)
	}
}

func (h *Hub) broadcastExcept(skip *Client, ev Event) {
	payload := mustMarshal(ev)
	h.Registry.Each(func(_ int64, c *Client) {
		if c != skip {
			c.trySend(payload)
		}
	})
}
