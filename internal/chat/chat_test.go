package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/baatcheet/backend/internal/identity"
	"github.com/baatcheet/backend/internal/messages"
	"github.com/baatcheet/backend/internal/storage"
	"github.com/baatcheet/backend/internal/storage/sqlite"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	conn, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.DB.Close() })
	require.NoError(t, conn.Migrate())
	return conn.DB
}

func seedUser(t *testing.T, db *storage.DB, id int64, username string) *identity.User {
	t.Helper()
	_, err := db.Exec(`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, '', ?)`,
		id, username, username+"@example.com", storage.FormatTime(time.Now().UTC()))
	require.NoError(t, err)
	return &identity.User{ID: id, Username: username}
}

// newTestHub wires a hub, router and registry over an in-memory store.
func newTestHub(t *testing.T) (*Hub, *storage.DB) {
	t.Helper()
	db := newTestDB(t)
	users := identity.NewStore(db)
	store := messages.NewStore(db)
	reg := NewRegistry()
	router := NewRouter(reg, users, store)
	return NewHub(reg, users, router), db
}

func newTestClient(hub *Hub, user *identity.User) *Client {
	return NewClient(hub, nil, user)
}

// nextEvent pops one queued outbound event off a client's send buffer.
func nextEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case payload := <-c.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	default:
		t.Fatal("expected a queued event, send buffer is empty")
		return Event{}
	}
}

func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.Send:
		t.Fatalf("expected no event, got %s", payload)
	default:
	}
}
