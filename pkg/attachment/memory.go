package attachment

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[ledger.SecureHash][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[ledger.SecureHash][]byte)}
}

func (s *MemoryStore) Exists(_ context.Context, id ledger.SecureHash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[id]
	return ok, nil
}

func (s *MemoryStore) Fetch(_ context.Context, id ledger.SecureHash) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return bytes.Clone(data), nil
}

func (s *MemoryStore) Import(_ context.Context, data []byte) (ledger.SecureHash, error) {
	id := Digest(data)

	s.mu.Lock()
	if _, ok := s.docs[id]; !ok {
		s.docs[id] = bytes.Clone(data)
	}
	s.mu.Unlock()

	recordImport("memory", nil)
	return id, nil
}

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
