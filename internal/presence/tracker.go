// Package presence aggregates online/offline state per user across all
// of their devices, driven by application-level heartbeats.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultHeartbeatTimeout marks a connection stale when no heartbeat
// arrived within it.
const DefaultHeartbeatTimeout = 30 * time.Second

// Stale identifies one connection whose heartbeat lapsed.
type Stale struct {
	UserID string
	ConnID string
}

// Tracker maps user → conn_id → last heartbeat. Pruning is invoked by
// the orchestrator's health loop, never by the transport layer, so it
// catches half-open sockets the transport does not surface.
type Tracker struct {
	mu      sync.Mutex
	users   map[string]map[string]time.Time
	timeout time.Duration
	log     zerolog.Logger
}

func NewTracker(timeout time.Duration, log zerolog.Logger) *Tracker {
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}
	return &Tracker{
		users:   make(map[string]map[string]time.Time),
		timeout: timeout,
		log:     log,
	}
}

// Register starts tracking connID for userID with a fresh heartbeat.
func (t *Tracker) Register(userID, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns, ok := t.users[userID]
	if !ok {
		conns = make(map[string]time.Time)
		t.users[userID] = conns
	}
	conns[connID] = time.Now()
}

// Touch records a heartbeat for connID.
func (t *Tracker) Touch(userID, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns, ok := t.users[userID]
	if !ok {
		return false
	}
	if _, ok := conns[connID]; !ok {
		return false
	}
	conns[connID] = time.Now()
	return true
}

// Unregister stops tracking connID. The user entry disappears with its
// last connection.
func (t *Tracker) Unregister(userID, connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns, ok := t.users[userID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(t.users, userID)
	}
}

// IsOnline reports whether the user has at least one tracked connection.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.users[userID]) > 0
}

// OnlineUsers returns the sorted set of online users.
func (t *Tracker) OnlineUsers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.users))
	for user := range t.users {
		out = append(out, user)
	}
	sort.Strings(out)
	return out
}

// PruneStale removes every connection whose last heartbeat is older than
// the timeout relative to now, and returns the removed pairs.
func (t *Tracker) PruneStale(now time.Time) []Stale {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pruned []Stale
	for user, conns := range t.users {
		for connID, last := range conns {
			if now.Sub(last) > t.timeout {
				delete(conns, connID)
				pruned = append(pruned, Stale{UserID: user, ConnID: connID})
			}
		}
		if len(conns) == 0 {
			delete(t.users, user)
		}
	}
	if len(pruned) > 0 {
		t.log.Info().Int("count", len(pruned)).Msg("pruned stale connections")
	}
	return pruned
}
