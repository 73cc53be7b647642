package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baatcheet/backend/internal/identity"
	"github.com/baatcheet/backend/internal/messages"
)

var (
	ErrMissingFields   = errors.New("receiver id and content are required")
	ErrUnknownReceiver = errors.New("receiver not found")
)

// clientMessage sanitizes a submit error for the wire. Validation failures
// are echoed as-is; anything else (store failures included) collapses to a
// generic message, with detail kept in the server log.
func clientMessage(err error) string {
	if errors.Is(err, ErrMissingFields) || errors.Is(err, ErrUnknownReceiver) {
		return err.Error()
	}
	return "failed to send message"
}

// Router takes a message intent from an authenticated session, persists it,
// and reconciles live delivery with the stored form: delivered-to-a-live-
// receiver implies read, and the sender's sessions always learn the
// canonical stored message via the ack.
type Router struct {
	Registry *Registry
	Users    *identity.Store
	Messages *messages.Store
}

func NewRouter(reg *Registry, users *identity.Store, store *messages.Store) *Router {
	return &Router{Registry: reg, Users: users, Messages: store}
}

// Submit validates, persists and routes one message. The returned error is
// reported to the sender only; on any error no delivery event has fired.
func (r *Router) Submit(ctx context.Context, sender *identity.User, receiverID int64, content string) (*messages.Message, error) {
	content = strings.TrimSpace(content)
	if receiverID == 0 || content == "" {
		return nil, ErrMissingFields
	}

	receiver, err := r.Users.ByID(ctx, receiverID)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownUser) {
			return nil, ErrUnknownReceiver
		}
		return nil, fmt.Errorf("resolve receiver %d: %w", receiverID, err)
	}

	msg, err := r.Messages.Insert(ctx, sender.ID, receiverID, content)
	if err != nil {
		return nil, fmt.Errorf("persist message from %d to %d: %w", sender.ID, receiverID, err)
	}
	msg.Sender = sender.Summary()
	msg.Receiver = receiver.Summary()

	// Liveness is checked after the persist; a receiver that disconnected
	// in between just misses the live event and finds the message in
	// history instead.
	if sessions := r.Registry.Sessions(receiverID); len(sessions) > 0 {
		// A message delivered to a live receiver counts as seen at delivery
		// time, so both the delivery and the ack carry the read form.
		now := time.Now().UTC()
		if err := r.Messages.SetRead(ctx, msg.ID, now); err != nil {
			return nil, fmt.Errorf("mark delivered message %s read: %w", msg.ID, err)
		}
		msg.IsRead = true
		msg.ReadAt = &now

		payload := mustMarshal(Event{Type: EventReceiveMessage, Message: msg})
		for _, c := range sessions {
			c.trySend(payload)
		}
	}

	ack := mustMarshal(Event{Type: EventMessageSent, Message: msg})
	for _, c := range r.Registry.Sessions(sender.ID) {
		c.trySend(ack)
	}
	return msg, nil
}
