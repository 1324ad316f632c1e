// Package session tracks logical per-user activity, independent of how
// many devices are connected.
package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Session records when a user first connected and when they were last
// active. It survives brief reconnects; only explicit logout or the idle
// sweep ends it.
type Session struct {
	UserID     string
	CreatedAt  time.Time
	LastActive time.Time
	Metadata   map[string]string
}

// Manager owns every live session. Idle sweeps are gated so they run at
// most once per cleanupInterval, not on every message.
type Manager struct {
	mu              sync.Mutex
	sessions        map[string]*Session
	cleanupInterval time.Duration
	lastSweep       time.Time
	log             zerolog.Logger
}

func NewManager(cleanupInterval time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		sessions:        make(map[string]*Session),
		cleanupInterval: cleanupInterval,
		log:             log,
	}
}

// Create returns the user's session, creating it at first connect and
// touching it otherwise.
func (m *Manager) Create(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		s.LastActive = time.Now()
		return s
	}
	now := time.Now()
	s := &Session{
		UserID:     userID,
		CreatedAt:  now,
		LastActive: now,
		Metadata:   make(map[string]string),
	}
	m.sessions[userID] = s
	return s
}

// End removes the user's session (explicit logout).
func (m *Manager) End(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[userID]; !ok {
		return false
	}
	delete(m.sessions, userID)
	return true
}

// Touch marks the user active now.
func (m *Manager) Touch(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return false
	}
	s.LastActive = time.Now()
	return true
}

// IsActive reports whether the user has a live session.
func (m *Manager) IsActive(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

// Get returns the user's session, or nil.
func (m *Manager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

// GetInactive lists users whose last activity is older than timeout.
func (m *Manager) GetInactive(timeout time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inactiveLocked(timeout)
}

// CleanupInactive removes idle sessions, but only when at least
// cleanupInterval has elapsed since the previous sweep. Returns the
// users that were removed.
func (m *Manager) CleanupInactive(timeout time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastSweep) < m.cleanupInterval {
		return nil
	}
	return m.sweepLocked(timeout)
}

// ForceCleanup removes idle sessions regardless of the sweep gate.
func (m *Manager) ForceCleanup(timeout time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(timeout)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) inactiveLocked(timeout time.Duration) []string {
	cutoff := time.Now().Add(-timeout)
	var out []string
	for user, s := range m.sessions {
		if s.LastActive.Before(cutoff) {
			out = append(out, user)
		}
	}
	return out
}

func (m *Manager) sweepLocked(timeout time.Duration) []string {
	m.lastSweep = time.Now()
	expired := m.inactiveLocked(timeout)
	for _, user := range expired {
		delete(m.sessions, user)
		m.log.Debug().Str("user", user).Msg("idle session removed")
	}
	return expired
}
