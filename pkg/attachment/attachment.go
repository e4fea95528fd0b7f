// Package attachment implements the content addressed document store. Documents
// are keyed by the SHA-256 digest of their bytes, computed by the store itself.
package attachment

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainsafe/trader-flows/internal/metrics"
	"github.com/chainsafe/trader-flows/pkg/ledger"
)

var (
	// ErrNotFound is returned when no document has the requested digest.
	ErrNotFound = errors.New("attachment not found")
	// ErrCorrupt is returned when a supposedly known document hashes to an unexpected digest.
	ErrCorrupt = errors.New("attachment digest mismatch")
)

// Store is a content addressed document store. Import must be idempotent and safe
// under concurrent imports of identical content.
type Store interface {
	Exists(ctx context.Context, id ledger.SecureHash) (bool, error)
	Fetch(ctx context.Context, id ledger.SecureHash) ([]byte, error)
	Import(ctx context.Context, data []byte) (ledger.SecureHash, error)
}

// Digest returns the identifier a store assigns to data.
func Digest(data []byte) ledger.SecureHash {
	return ledger.HashOf(data)
}

// EnsurePresent makes sure the document with digest expected is in store, importing
// data if it is missing. If data does not hash to expected the result is ErrCorrupt
// and nothing is retried.
func EnsurePresent(ctx context.Context, store Store, expected ledger.SecureHash, data []byte) error {
	exists, err := store.Exists(ctx, expected)
	if err != nil {
		return fmt.Errorf("check attachment %s: %w", expected.Short(), err)
	}
	if exists {
		return nil
	}

	id, err := store.Import(ctx, data)
	if err != nil {
		return fmt.Errorf("import attachment %s: %w", expected.Short(), err)
	}
	if id != expected {
		return fmt.Errorf("%w: expected %s, imported %s", ErrCorrupt, expected, id)
	}
	return nil
}

// ImportVerified imports data and checks it hashes to expected. Used when a
// counterparty supplies a document on request.
func ImportVerified(ctx context.Context, store Store, expected ledger.SecureHash, data []byte) error {
	if got := Digest(data); got != expected {
		return fmt.Errorf("%w: expected %s, received %s", ErrCorrupt, expected, got)
	}
	if _, err := store.Import(ctx, data); err != nil {
		return fmt.Errorf("import attachment %s: %w", expected.Short(), err)
	}
	return nil
}

func recordImport(backend string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.AttachmentImports.WithLabelValues(backend, result).Inc()
}
