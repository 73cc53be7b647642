package chat

import (
	"encoding/json"
	"log"

	"github.com/baatcheet/backend/internal/identity"
	"github.com/baatcheet/backend/internal/messages"
)

// Event kinds carried over the live channel.
const (
	// inbound
	EventSendMessage = "send-message"
	EventTyping      = "typing"

	// outbound
	EventUserOnline     = "user-online"
	EventUserOffline    = "user-offline"
	EventOnlineUsers    = "online-users"
	EventReceiveMessage = "receive-message"
	EventMessageSent    = "message-sent"
	EventUserTyping     = "user-typing"
	EventError          = "error"
)

// Event is the single wire envelope, discriminated by Type. Fields are
// populated per kind and omitted otherwise.
type Event struct {
	Type string `json:"type"`

	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`

	ReceiverID int64  `json:"receiver_id,omitempty"`
	Content    string `json:"content,omitempty"`
	IsTyping   bool   `json:"is_typing,omitempty"`

	Users   []identity.Summary `json:"users,omitempty"`
	Message *messages.Message  `json:"message,omitempty"`
	Error   string             `json:"error,omitempty"`
}

func mustMarshal(ev Event) []byte {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[chat] failed to marshal %s event: %v", ev.Type, err)
		return nil
	}
	return payload
}
