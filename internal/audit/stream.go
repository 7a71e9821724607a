package audit

import (
	"context"
	"sync"
)

// subscriberBuffer is how many events a slow subscriber can lag before
// events are dropped for that subscriber. The durable stream is NATS; the
// in-process stream exists for live UI feeds and may lose events under
// backpressure without affecting the audit record.
const subscriberBuffer = 64

// Stream is an in-process fan-out sink. It implements Sink so it can be
// teed next to the durable publisher, and feeds per-session subscribers
// such as the HTTP server's SSE endpoint.
type Stream struct {
	mu     sync.Mutex
	closed bool
	nextID int
	seqs   map[string]uint64
	subs   map[string]map[int]chan Event
}

// NewStream creates an empty fan-out stream.
func NewStream() *Stream {
	return &Stream{
		seqs: make(map[string]uint64),
		subs: make(map[string]map[int]chan Event),
	}
}

// Emit delivers the event to every live subscriber of its session. Never
// blocks: a full subscriber buffer drops the event for that subscriber.
// Events arriving through a Tee are already numbered; a bare stream
// numbers its own view of the session sequence.
func (s *Stream) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if event.Seq == 0 {
		s.seqs[event.SessionID]++
		event.Seq = s.seqs[event.SessionID]
	}
	for _, ch := range s.subs[event.SessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a listener for one session's events. The returned
// cancel func must be called to release the subscription; the channel is
// closed on cancel or stream close.
func (s *Stream) Subscribe(sessionID string) (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	if s.subs[sessionID] == nil {
		s.subs[sessionID] = make(map[int]chan Event)
	}
	s.subs[sessionID][id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sessionSubs, ok := s.subs[sessionID]; ok {
			if sub, ok := sessionSubs[id]; ok {
				delete(sessionSubs, id)
				if len(sessionSubs) == 0 {
					delete(s.subs, sessionID)
				}
				close(sub)
			}
		}
	}
	return ch, cancel
}

// Close closes every subscriber channel and rejects further emits.
func (s *Stream) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, sessionSubs := range s.subs {
		for _, ch := range sessionSubs {
			close(ch)
		}
	}
	s.subs = make(map[string]map[int]chan Event)
	return nil
}

// Tee fans Emit out to multiple sinks and closes them together. Used to
// publish each event both to NATS and to live in-process subscribers. The
// Tee assigns the session sequence number once, before fan-out, so every
// sink records the same ordering even under concurrent emitters.
type Tee struct {
	sinks []Sink

	mu   sync.Mutex
	seqs map[string]uint64
}

// NewTee builds a Tee over the given sinks.
func NewTee(sinks ...Sink) *Tee {
	return &Tee{sinks: sinks, seqs: make(map[string]uint64)}
}

func (t *Tee) Emit(ctx context.Context, event Event) {
	t.mu.Lock()
	if event.Seq == 0 {
		t.seqs[event.SessionID]++
		event.Seq = t.seqs[event.SessionID]
	}
	t.mu.Unlock()

	for _, sink := range t.sinks {
		sink.Emit(ctx, event)
	}
}

func (t *Tee) Close(ctx context.Context) error {
	var firstErr error
	for _, sink := range t.sinks {
		if err := sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
