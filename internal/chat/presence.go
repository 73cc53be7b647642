package chat

import (
	"sync"

	"github.com/samber/lo"
)

// Registry maps a user id to its set of live sessions. A user may hold any
// number of concurrent sessions (multiple devices); the user is online iff
// the set is non-empty. All mutation for a given user's set happens under
// one lock, so the offline→online and online→offline transitions reported
// by Register/Unregister can never be lost or duplicated under concurrent
// connect/disconnect.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]map[*Client]bool
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]map[*Client]bool)}
}

// Register adds a session and reports whether the user just came online
// (first session).
func (r *Registry) Register(userID int64, c *Client) (wentOnline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.sessions[userID]
	if set == nil {
		set = make(map[*Client]bool)
		r.sessions[userID] = set
	}
	wentOnline = len(set) == 0
	set[c] = true
	return wentOnline
}

// Unregister removes a session. removed is false when the session was not
// present (double close); wentOffline reports the last session leaving.
func (r *Registry) Unregister(userID int64, c *Client) (removed, wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[userID]
	if !ok || !set[c] {
		return false, false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.sessions, userID)
		return true, true
	}
	return true, false
}

func (r *Registry) IsOnline(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[userID]) > 0
}

// Sessions returns a copy of the user's live sessions.
func (r *Registry) Sessions(userID int64) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Keys(r.sessions[userID])
}

// Snapshot returns the ids of every user with at least one live session.
func (r *Registry) Snapshot() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Keys(r.sessions)
}

// Each visits every live session. fn must not block; outbound sends through
// it are non-blocking.
func (r *Registry) Each(fn func(userID int64, c *Client)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, set := range r.sessions {
		for c := range set {
			fn(uid, c)
		}
	}
}
