package messages

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/baatcheet/backend/internal/identity"
	"github.com/baatcheet/backend/internal/storage"
	"github.com/google/uuid"
)

type Message struct {
	ID         string            `json:"id"`
	SenderID   int64             `json:"sender_id"`
	ReceiverID int64             `json:"receiver_id"`
	Sender     *identity.Summary `json:"sender,omitempty"`
	Receiver   *identity.Summary `json:"receiver,omitempty"`
	Content    string            `json:"content"`
	IsRead     bool              `json:"is_read"`
	ReadAt     *time.Time        `json:"read_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Store persists messages. Inserts are serialized under mu, which also
// guards the created_at watermark: timestamps are assigned strictly
// increasing per store, so retrieval order always matches insertion order
// even when the wall clock steps backwards.
type Store struct {
	db *storage.DB

	mu          sync.Mutex
	lastCreated time.Time
}

func NewStore(db *storage.DB) *Store {
	s := &Store{db: db}
	// Seed the watermark from whatever is already persisted. Best effort:
	// an empty table leaves it at zero.
	var max sql.NullString
	if err := db.QueryRow(`SELECT MAX(created_at) FROM messages`).Scan(&max); err == nil && max.Valid {
		s.lastCreated, _ = storage.ParseTime(max.String)
	}
	return s
}

func (s *Store) Insert(ctx context.Context, senderID, receiverID int64, content string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(s.lastCreated) {
		now = s.lastCreated.Add(time.Microsecond)
	}

	m := &Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  now,
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO messages (id, sender_id, receiver_id, content, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		m.ID, m.SenderID, m.ReceiverID, m.Content, false, storage.FormatTime(now))
	if err != nil {
		return nil, err
	}
	s.lastCreated = now
	return m, nil
}

// SetRead flips a single message to read. A no-op when the message is
// already read, so the read_at timestamp is never overwritten.
func (s *Store) SetRead(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE messages SET is_read=?, read_at=? WHERE id=? AND is_read=?`),
		true, storage.FormatTime(at), id, false)
	return err
}

// History returns the merged conversation between two users, both
// directions, oldest first, with sender/receiver summaries attached.
func (s *Store) History(ctx context.Context, a, b int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT m.id, m.sender_id, m.receiver_id, m.content, m.is_read, m.read_at, m.created_at,
		       su.username, su.avatar, ru.username, ru.avatar
		FROM messages m
		JOIN users su ON su.id = m.sender_id
		JOIN users ru ON ru.id = m.receiver_id
		WHERE (m.sender_id=? AND m.receiver_id=?) OR (m.sender_id=? AND m.receiver_id=?)
		ORDER BY m.created_at ASC`), a, b, b, a)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Message
	for rows.Next() {
		var m Message
		var readAt sql.NullString
		var created string
		var sender, receiver identity.Summary
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.IsRead, &readAt, &created,
			&sender.Username, &sender.Avatar, &receiver.Username, &receiver.Avatar); err != nil {
			return nil, err
		}
		if readAt.Valid {
			t, _ := storage.ParseTime(readAt.String)
			m.ReadAt = &t
		}
		m.CreatedAt, _ = storage.ParseTime(created)
		sender.ID, receiver.ID = m.SenderID, m.ReceiverID
		m.Sender, m.Receiver = &sender, &receiver
		list = append(list, m)
	}
	return list, rows.Err()
}

// MarkConversationRead bulk-transitions every unread message from otherID to
// readerID. Idempotent; already-read messages and the opposite direction are
// untouched. Returns the number of messages transitioned.
func (s *Store) MarkConversationRead(ctx context.Context, readerID, otherID int64, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE messages SET is_read=?, read_at=? WHERE sender_id=? AND receiver_id=? AND is_read=?`),
		true, storage.FormatTime(at), otherID, readerID, false)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
