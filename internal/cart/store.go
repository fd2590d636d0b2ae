package cart

import (
	"context"
	"sync"
)

// Store persists cart lines keyed by session ID.
//
// Load returns an empty slice for a session with no record; a record
// that cannot be decoded is also treated as empty rather than surfaced
// as an error, so a damaged row never locks a shopper out of their cart.
type Store interface {
	// Load retrieves the persisted lines for a session.
	Load(ctx context.Context, sessionID string) ([]Line, error)

	// Save replaces the persisted lines for a session.
	Save(ctx context.Context, sessionID string, lines []Line) error

	// Delete removes the persisted record for a session.
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore is an in-memory Store for tests and single-process
// development setups.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Line
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]Line)}
}

func (s *MemoryStore) Load(ctx context.Context, sessionID string) ([]Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := make([]Line, len(s.records[sessionID]))
	copy(lines, s.records[sessionID])
	return lines, nil
}

func (s *MemoryStore) Save(ctx context.Context, sessionID string, lines []Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]Line, len(lines))
	copy(stored, lines)
	s.records[sessionID] = stored
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, sessionID)
	return nil
}
