package journal

import (
	"sync"
)

// MemoryStore is an in-memory Store implementation, suitable for tests and
// single-process use without durability requirements.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record // ledgerID -> records in append order
	closed  bool
}

// NewMemoryStore creates a new in-memory journal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]Record),
	}
}

// Append implements Store.
func (s *MemoryStore) Append(ledgerID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	rec.Sequence = len(s.records[ledgerID]) + 1
	s.records[ledgerID] = append(s.records[ledgerID], rec)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(ledgerID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	records := s.records[ledgerID]
	out := make([]Record, len(records))
	copy(out, records)
	return out, nil
}

// DeleteLedger implements Store.
func (s *MemoryStore) DeleteLedger(ledgerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	delete(s.records, ledgerID)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
