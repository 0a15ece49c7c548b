package relay

import (
	"sync"

	"github.com/google/uuid"
)

// PresenceEntry is one live connection's identity as it appears in the
// onlineUsers broadcast. A user connected from two devices yields two
// entries.
type PresenceEntry struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

// Registry is the process-wide table of live connections, indexed by
// owning user. All access is serialized through its lock; snapshots are
// taken under the lock and released before anything is sent, so a slow
// broadcast never holds up registration.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[uuid.UUID]*Client
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[uuid.UUID]*Client)}
}

// Register adds a connection under its owning user. Called exactly once
// per connection, after a successful handshake.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[c.UserID]
	if !ok {
		conns = make(map[uuid.UUID]*Client)
		r.users[c.UserID] = conns
	}
	conns[c.ID] = c
}

// Deregister removes a connection. The user's entry disappears the
// moment its last connection closes.
func (r *Registry) Deregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[c.UserID]
	if !ok {
		return
	}
	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(r.users, c.UserID)
	}
}

// Snapshot returns one presence entry per live connection.
func (r *Registry) Snapshot() []PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]PresenceEntry, 0, len(r.users))
	for _, conns := range r.users {
		for _, c := range conns {
			entries = append(entries, PresenceEntry{Username: c.Username, UserID: c.UserID})
		}
	}
	return entries
}

// ConnectionsFor returns all live connections registered for a user.
// An empty result means the recipient is offline.
func (r *Registry) ConnectionsFor(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	out := make([]*Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// All returns every live connection.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Client
	for _, conns := range r.users {
		for _, c := range conns {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, conns := range r.users {
		n += len(conns)
	}
	return n
}
