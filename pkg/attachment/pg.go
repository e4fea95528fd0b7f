package attachment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

type pgStore struct {
	db *bun.DB
}

// NewPGStore creates a PostgreSQL backed attachment store.
func NewPGStore(db *bun.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) Exists(ctx context.Context, id ledger.SecureHash) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*AttachmentDao)(nil)).
		Where("id = ?", id.String()).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check attachment exists: %w", err)
	}
	return exists, nil
}

func (s *pgStore) Fetch(ctx context.Context, id ledger.SecureHash) ([]byte, error) {
	dao := new(AttachmentDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id.String()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return dao.Data, nil
}

func (s *pgStore) Import(ctx context.Context, data []byte) (id ledger.SecureHash, err error) {
	defer func() { recordImport("postgres", err) }()

	id = Digest(data)
	dao := &AttachmentDao{
		ID:   id.String(),
		Data: data,
		Size: len(data),
	}
	_, err = s.db.NewInsert().
		Model(dao).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return id, fmt.Errorf("failed to insert attachment: %w", err)
	}
	return id, nil
}
