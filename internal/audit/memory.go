package audit

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Sink that retains emitted events. Used in tests
// and as a fallback when no stream is configured.
type Memory struct {
	mu     sync.Mutex
	seqs   map[string]uint64
	events []Event
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{seqs: make(map[string]uint64)}
}

func (m *Memory) Emit(_ context.Context, event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.Seq == 0 {
		m.seqs[event.SessionID]++
		event.Seq = m.seqs[event.SessionID]
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	m.events = append(m.events, event)
}

func (m *Memory) Close(context.Context) error { return nil }

// Events returns a copy of all emitted events in emission order.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// BySession returns the events for one session in emission order.
func (m *Memory) BySession(sessionID string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out
}

var _ Sink = (*Memory)(nil)
