package connection

import (
	"sync"

	"github.com/rs/zerolog"
)

// DefaultMaxPerUser caps how many simultaneous devices one user may hold.
const DefaultMaxPerUser = 3

// Registry is the single source of truth for who is connected. It maps
// user → conn_id → connection and enforces the per-user cap with
// stalest-first eviction. All mutation goes through its methods; no
// other component may cache connection lists beyond one operation.
type Registry struct {
	mu         sync.Mutex
	users      map[string]map[string]*Conn
	maxPerUser int
	log        zerolog.Logger
}

func NewRegistry(maxPerUser int, log zerolog.Logger) *Registry {
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxPerUser
	}
	return &Registry{
		users:      make(map[string]map[string]*Conn),
		maxPerUser: maxPerUser,
		log:        log,
	}
}

// Register inserts conn for its user. When the user is already at the
// cap, the prior connection with the smallest (last_heartbeat,
// created_at) is removed, best-effort closed, and returned so the caller
// can notify it. The insert and the eviction are one atomic step.
func (r *Registry) Register(conn *Conn) (evicted *Conn) {
	r.mu.Lock()
	conns, ok := r.users[conn.UserID]
	if !ok {
		conns = make(map[string]*Conn)
		r.users[conn.UserID] = conns
	}

	if len(conns) >= r.maxPerUser {
		for _, candidate := range conns {
			if evicted == nil || candidate.stalerThan(evicted) {
				evicted = candidate
			}
		}
		if evicted != nil {
			delete(conns, evicted.ID)
		}
	}
	conns[conn.ID] = conn
	r.mu.Unlock()

	if evicted != nil {
		r.log.Info().
			Str("user", conn.UserID).
			Str("evicted_conn", evicted.ID).
			Str("new_conn", conn.ID).
			Msg("connection cap reached, evicting stalest connection")
	}
	return evicted
}

// Unregister removes one device. The user entry disappears with its last
// connection, flipping IsOnline to false.
func (r *Registry) Unregister(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		return false
	}
	if _, ok := conns[connID]; !ok {
		return false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.users, userID)
	}
	return true
}

// UnregisterAll removes every connection of userID and returns them.
func (r *Registry) UnregisterAll(userID string) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		return nil
	}
	out := make([]*Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	delete(r.users, userID)
	return out
}

// Find returns one connection by user and conn id, or nil.
func (r *Registry) Find(userID, connID string) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[userID][connID]
}

// Get returns a snapshot of the user's connections.
func (r *Registry) Get(userID string) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		return nil
	}
	out := make([]*Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// IsOnline reports whether userID has at least one connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users[userID]) > 0
}

// CountFor returns how many connections userID currently holds.
func (r *Registry) CountFor(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users[userID])
}

// All returns a snapshot of every user's connections.
func (r *Registry) All() map[string][]*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string][]*Conn, len(r.users))
	for user, conns := range r.users {
		list := make([]*Conn, 0, len(conns))
		for _, c := range conns {
			list = append(list, c)
		}
		out[user] = list
	}
	return out
}

// Users returns a snapshot of currently connected user IDs.
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.users))
	for user := range r.users {
		out = append(out, user)
	}
	return out
}
