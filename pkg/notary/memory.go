package notary

import (
	"context"
	"sync"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// MemoryUniqueness is an in-process UniquenessProvider.
type MemoryUniqueness struct {
	mu       sync.Mutex
	consumed map[ledger.StateRef]ledger.SecureHash
}

// NewMemoryUniqueness creates an empty provider.
func NewMemoryUniqueness() *MemoryUniqueness {
	return &MemoryUniqueness{consumed: make(map[ledger.StateRef]ledger.SecureHash)}
}

// Commit implements UniquenessProvider.
func (m *MemoryUniqueness) Commit(_ context.Context, refs []ledger.StateRef, txID ledger.SecureHash, _ ledger.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var conflict *ConflictError
	for _, ref := range refs {
		if by, ok := m.consumed[ref]; ok && by != txID {
			if conflict == nil {
				conflict = &ConflictError{TxID: txID, Consumed: make(map[ledger.StateRef]ledger.SecureHash)}
			}
			conflict.Consumed[ref] = by
		}
	}
	if conflict != nil {
		return conflict
	}

	for _, ref := range refs {
		m.consumed[ref] = txID
	}
	return nil
}

// ConsumedBy returns the transaction that consumed ref, if any.
func (m *MemoryUniqueness) ConsumedBy(ref ledger.StateRef) (ledger.SecureHash, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	by, ok := m.consumed[ref]
	return by, ok
}
