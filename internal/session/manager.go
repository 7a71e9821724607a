package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deployd/internal/logging"
)

// Manager tracks live sessions. It is the only component that creates
// Session values; the workflow engine mutates stage and plan through the
// Session it is handed.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	capacity int
	logger   *logging.Logger
}

// NewManager creates a session manager. capacity <= 0 uses the default
// 50-turn window.
func NewManager(capacity int, logger *logging.Logger) *Manager {
	if capacity <= 0 {
		capacity = DefaultTurnCapacity
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		capacity: capacity,
		logger:   logger.Named("session"),
	}
}

// GetOrCreate returns the session for id, creating it on first use.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s = newSession(id, m.capacity, time.Now().UTC())
	m.sessions[id] = s
	m.logger.Debug(context.Background(), "session created", zap.String("session_id", id))
	return s
}

// Get returns the session for id if it exists.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Statuses returns a snapshot of every live session, ordered by id.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}
