// Package session owns the per-session conversational state: a bounded
// turn buffer, the current pipeline stage, and the active plan reference.
// The buffer is owned here; stage and plan are written only through the
// recorder methods the workflow engine drives.
package session

import (
	"sync"
	"time"
)

// DefaultTurnCapacity bounds the conversational window. The oldest turn is
// evicted once the buffer is full.
const DefaultTurnCapacity = 50

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one conversational exchange entry.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds one caller's conversational buffer and pipeline position.
type Session struct {
	mu sync.Mutex

	id        string
	createdAt time.Time

	turns    []Turn
	start    int
	count    int
	capacity int

	stage        string
	activePlanID string
	lastActivity time.Time
}

func newSession(id string, capacity int, now time.Time) *Session {
	if capacity <= 0 {
		capacity = DefaultTurnCapacity
	}
	return &Session{
		id:           id,
		createdAt:    now,
		turns:        make([]Turn, capacity),
		capacity:     capacity,
		lastActivity: now,
	}
}

// ID returns the session identity.
func (s *Session) ID() string { return s.id }

// Append adds a turn, evicting the oldest when the buffer is full.
func (s *Session) Append(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	idx := (s.start + s.count) % s.capacity
	s.turns[idx] = turn
	if s.count < s.capacity {
		s.count++
	} else {
		s.start = (s.start + 1) % s.capacity
	}
	s.lastActivity = turn.Timestamp
}

// Turns returns the buffered turns, oldest first.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.turns[(s.start+i)%s.capacity]
	}
	return out
}

// SetStage records the session's current pipeline stage and active plan.
func (s *Session) SetStage(stage, planID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
	s.activePlanID = planID
	s.lastActivity = time.Now().UTC()
}

// Status is the transport-facing view of a session.
type Status struct {
	SessionID    string    `json:"session_id"`
	Stage        string    `json:"stage"`
	ActivePlanID string    `json:"active_plan_id,omitempty"`
	Turns        int       `json:"turns"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Status returns a point-in-time snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		SessionID:    s.id,
		Stage:        s.stage,
		ActivePlanID: s.activePlanID,
		Turns:        s.count,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
	}
}
