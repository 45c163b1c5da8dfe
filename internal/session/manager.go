package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxSessions bounds how many conversations a Manager tracks.
const DefaultMaxSessions = 1024

// ErrSessionNotFound is returned by Lookup for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	ctx      *Context
	lastUsed uint64
}

// Manager owns one Context per session id.
// Thread-safe for concurrent access from the HTTP and MCP front ends.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*entry
	capacity    int
	maxSessions int
	clock       uint64
}

// NewManager creates a manager whose contexts hold capacity queries each.
// maxSessions limits tracked sessions (0 = DefaultMaxSessions); the least
// recently used session is evicted past the limit.
func NewManager(capacity, maxSessions int) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Manager{
		sessions:    make(map[string]*entry),
		capacity:    capacity,
		maxSessions: maxSessions,
	}
}

// Get returns the context for id, creating it if needed. An empty id gets a
// fresh UUID, which is returned so callers can hand it back to the client.
func (m *Manager) Get(id string) (string, *Context) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.clock++
	if e, ok := m.sessions[id]; ok {
		e.lastUsed = m.clock
		return id, e.ctx
	}

	if len(m.sessions) >= m.maxSessions {
		m.evictLocked()
	}
	e := &entry{ctx: NewContext(m.capacity), lastUsed: m.clock}
	m.sessions[id] = e
	return id, e.ctx
}

// Lookup returns an existing context without creating one.
func (m *Manager) Lookup(id string) (*Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.ctx, nil
}

// Drop forgets a session.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// ActiveSessions returns the number of tracked sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) evictLocked() {
	var (
		oldestID string
		oldest   uint64
	)
	for id, e := range m.sessions {
		if oldestID == "" || e.lastUsed < oldest {
			oldestID, oldest = id, e.lastUsed
		}
	}
	delete(m.sessions, oldestID)
}
