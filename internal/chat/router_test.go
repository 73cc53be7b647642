package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubmitToOnlineReceiverDeliversRead(t *testing.T) {
	hub, db := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, db, 1, "alice")
	bob := seedUser(t, db, 2, "bob")

	aliceClient := newTestClient(hub, alice)
	bobClient := newTestClient(hub, bob)
	hub.admit(ctx, aliceClient)
	hub.admit(ctx, bobClient)
	nextEvent(t, aliceClient) // roster
	nextEvent(t, aliceClient) // bob online
	nextEvent(t, bobClient)   // roster

	msg, err := hub.Router.Submit(ctx, alice, bob.ID, "  hello  ")
	require.NoError(t, err)
	require.Equal(t, "hello", msg.Content, "content is trimmed before persisting")
	require.True(t, msg.IsRead, "live delivery counts as read")
	require.NotNil(t, msg.ReadAt)

	recv := nextEvent(t, bobClient)
	require.Equal(t, EventReceiveMessage, recv.Type)
	require.Equal(t, msg.ID, recv.Message.ID)
	require.True(t, recv.Message.IsRead, "receiver observes the read form")
	require.Equal(t, "alice", recv.Message.Sender.Username)
	require.Equal(t, "bob", recv.Message.Receiver.Username)

	ack := nextEvent(t, aliceClient)
	require.Equal(t, EventMessageSent, ack.Type)
	require.Equal(t, msg.ID, ack.Message.ID)

	var isRead bool
	require.NoError(t, db.QueryRow(`SELECT is_read FROM messages WHERE id=?`, msg.ID).Scan(&isRead))
	require.True(t, isRead, "read-state is persisted, not just on the wire")
}

func TestSubmitToOfflineReceiverPersistsOnly(t *testing.T) {
	hub, db := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, db, 1, "alice")
	bob := seedUser(t, db, 2, "bob")

	aliceClient := newTestClient(hub, alice)
	hub.admit(ctx, aliceClient)
	nextEvent(t, aliceClient) // roster

	msg, err := hub.Router.Submit(ctx, alice, bob.ID, "hi")
	require.NoError(t, err)
	require.False(t, msg.IsRead)
	require.Nil(t, msg.ReadAt)

	// Sender still gets the canonical stored form.
	ack := nextEvent(t, aliceClient)
	require.Equal(t, EventMessageSent, ack.Type)
	require.False(t, ack.Message.IsRead)

	var senderID, receiverID int64
	var content string
	var isRead bool
	require.NoError(t, db.QueryRow(
		`SELECT sender_id, receiver_id, content, is_read FROM messages WHERE id=?`, msg.ID).
		Scan(&senderID, &receiverID, &content, &isRead))
	require.Equal(t, int64(1), senderID)
	require.Equal(t, int64(2), receiverID)
	require.Equal(t, "hi", content)
	require.False(t, isRead)
}

func TestSubmitAcksAllSenderSessions(t *testing.T) {
	hub, db := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, db, 1, "alice")
	seedUser(t, db, 2, "bob")

	dev1 := newTestClient(hub, alice)
	dev2 := newTestClient(hub, alice)
	hub.admit(ctx, dev1)
	hub.admit(ctx, dev2)
	nextEvent(t, dev1)
	nextEvent(t, dev2)

	msg, err := hub.Router.Submit(ctx, alice, 2, "hi")
	require.NoError(t, err)

	for _, c := range []*Client{dev1, dev2} {
		ack := nextEvent(t, c)
		require.Equal(t, EventMessageSent, ack.Type)
		require.Equal(t, msg.ID, ack.Message.ID)
	}
}

func TestSubmitValidation(t *testing.T) {
	hub, db := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, db, 1, "alice")

	_, err := hub.Router.Submit(ctx, alice, 0, "hi")
	require.ErrorIs(t, err, ErrMissingFields)

	_, err = hub.Router.Submit(ctx, alice, 2, "   ")
	require.ErrorIs(t, err, ErrMissingFields)

	_, err = hub.Router.Submit(ctx, alice, 999, "hi")
	require.ErrorIs(t, err, ErrUnknownReceiver)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM messages`).Scan(&n))
	require.Zero(t, n, "no store write on validation failure")
}

func TestSubmitOrderingPerPair(t *testing.T) {
	hub, db := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, db, 1, "alice")
	seedUser(t, db, 2, "bob")

	var last string
	for _, content := range []string{"one", "two", "three", "four"} {
		msg, err := hub.Router.Submit(ctx, alice, 2, content)
		require.NoError(t, err)
		stamp := msg.CreatedAt.Format("2006-01-02T15:04:05.000000000")
		require.Greater(t, stamp, last, "created_at must advance per submission")
		last = stamp
	}

	rows, err := db.Query(`SELECT content FROM messages WHERE sender_id=1 AND receiver_id=2 ORDER BY created_at ASC`)
	require.NoError(t, err)
	defer rows.Close()
	var got []string
	for rows.Next() {
		var c string
		require.NoError(t, rows.Scan(&c))
		got = append(got, c)
	}
	require.Equal(t, []string{"one", "two", "three", "four"}, got)
}

func TestClientMessageSanitizesStoreErrors(t *testing.T) {
	require.Equal(t, ErrMissingFields.Error(), clientMessage(ErrMissingFields))
	require.Equal(t, ErrUnknownReceiver.Error(), clientMessage(ErrUnknownReceiver))
	require.Equal(t, "failed to send message", clientMessage(context.DeadlineExceeded))
}
