package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps encrypted records in process. Used in development mode
// and tests; production deployments use MongoStore.
type MemoryStore struct {
	mu     sync.Mutex
	active map[string]Record
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{active: make(map[string]Record)}
}

func (s *MemoryStore) SaveActive(_ context.Context, sessionID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[sessionID] = rec
	return nil
}

func (s *MemoryStore) FindActive(_ context.Context, sessionID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.active[sessionID]
	if !ok {
		return Record{}, ErrCredentialsMissing
	}
	return rec, nil
}

var _ Store = (*MemoryStore)(nil)
