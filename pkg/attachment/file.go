package attachment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// FileStore keeps each document in a file named after its digest. Files are
// written to a temporary name and renamed into place, so concurrent imports of
// the same content never expose a partial file.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attachment directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) path(id ledger.SecureHash) string {
	return filepath.Join(s.dir, id.String())
}

func (s *FileStore) Exists(_ context.Context, id ledger.SecureHash) (bool, error) {
	_, err := os.Stat(s.path(id))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat attachment: %w", err)
	}
}

func (s *FileStore) Fetch(_ context.Context, id ledger.SecureHash) ([]byte, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	if Digest(data) != id {
		return nil, fmt.Errorf("%w: file %s", ErrCorrupt, s.path(id))
	}
	return data, nil
}

func (s *FileStore) Import(ctx context.Context, data []byte) (id ledger.SecureHash, err error) {
	defer func() { recordImport("file", err) }()

	id = Digest(data)
	exists, err := s.Exists(ctx, id)
	if err != nil {
		return id, err
	}
	if exists {
		return id, nil
	}

	tmp, err := os.CreateTemp(s.dir, ".import-*")
	if err != nil {
		return id, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return id, fmt.Errorf("failed to write attachment: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return id, fmt.Errorf("failed to close attachment: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path(id)); err != nil {
		return id, fmt.Errorf("failed to store attachment: %w", err)
	}

	s.logger.Debug("Stored attachment",
		zap.String("id", id.String()),
		zap.Int("size", len(data)))
	return id, nil
}
