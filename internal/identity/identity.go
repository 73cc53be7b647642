// Package identity resolves credential tokens to users and owns the
// user-facing view of presence (is_online, last_seen). Those two columns are
// written only through SetOnline, which the chat hub drives from session
// connect/disconnect.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baatcheet/backend/internal/auth"
	"github.com/baatcheet/backend/internal/storage"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownUser  = errors.New("user not found")
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar"`
	IsOnline  bool      `json:"is_online"`
	LastSeen  time.Time `json:"last_seen"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is the public shape attached to wire messages and rosters.
type Summary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

func (u *User) Summary() *Summary {
	return &Summary{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

type Store struct {
	db *storage.DB
}

func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(
		`SELECT id, username, email, avatar, is_online, last_seen, created_at FROM users WHERE id=?`), id)

	var u User
	var lastSeen sql.NullString
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Avatar, &u.IsOnline, &lastSeen, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}
	if lastSeen.Valid {
		u.LastSeen, _ = storage.ParseTime(lastSeen.String)
	}
	u.CreatedAt, _ = storage.ParseTime(created)
	return &u, nil
}

// OnlineSummaries returns everyone currently flagged online, for the roster
// sent to a freshly connected session.
func (s *Store) OnlineSummaries(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(
		`SELECT id, username, avatar FROM users WHERE is_online=? ORDER BY username`), true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Summary
	for rows.Next() {
		var u Summary
		if err := rows.Scan(&u.ID, &u.Username, &u.Avatar); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

func (s *Store) SetOnline(ctx context.Context, id int64, online bool, lastSeen time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE users SET is_online=?, last_seen=? WHERE id=?`),
		online, storage.FormatTime(lastSeen), id)
	return err
}

// Verifier validates an opaque bearer token and resolves it to a user. It
// runs synchronously during the websocket handshake, before the connection
// is admitted anywhere.
type Verifier struct {
	Users  *Store
	Secret string
}

func (v *Verifier) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	claims, err := auth.ParseToken(v.Secret, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	u, err := v.Users.ByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return u, nil
}
