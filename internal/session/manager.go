// Package session serializes chat turns per session. A widget that
// double-fires a submit, or a visitor clicking two buttons quickly, must
// not interleave state transitions for the same conversation.
package session

import (
	"sync"
	"time"
)

// Manager serializes turn processing per session ID. Different sessions
// run in parallel; turns for one session run one at a time.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu       sync.Mutex
	lastUsed time.Time
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{
		locks: make(map[string]*sessionLock),
	}
}

// WithLock executes fn while holding the per-session mutex.
func (m *Manager) WithLock(sessionID string, fn func() error) error {
	m.mu.Lock()
	sl, ok := m.locks[sessionID]
	if !ok {
		sl = &sessionLock{}
		m.locks[sessionID] = sl
	}
	m.mu.Unlock()

	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.lastUsed = time.Now()
	return fn()
}

// Cleanup removes locks not used within maxAge so ended sessions do not
// accumulate.
func (m *Manager) Cleanup(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for sessionID, sl := range m.locks {
		if now.Sub(sl.lastUsed) > maxAge {
			delete(m.locks, sessionID)
		}
	}
}

// Len reports how many session locks are currently tracked.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
