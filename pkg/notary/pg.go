package notary

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/pgutil"
)

type pgUniqueness struct {
	db *bun.DB
}

// NewPGUniqueness creates a PostgreSQL backed UniquenessProvider. The primary key on
// (tx_id, output_index) arbitrates concurrent commits across notary replicas.
func NewPGUniqueness(db *bun.DB) UniquenessProvider {
	return &pgUniqueness{db: db}
}

func (p *pgUniqueness) Commit(ctx context.Context, refs []ledger.StateRef, txID ledger.SecureHash, requester ledger.Party) error {
	if len(refs) == 0 {
		return nil
	}

	rows := make([]ConsumedStateDao, len(refs))
	for i, ref := range refs {
		rows[i] = ConsumedStateDao{
			TxID:          ref.TxID.String(),
			OutputIndex:   ref.Index,
			ConsumingTxID: txID.String(),
			Requester:     requester.Name,
		}
	}

	err := p.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err == nil {
		return nil
	}
	if !pgutil.IsUniqueViolation(err) {
		return fmt.Errorf("failed to insert consumed states: %w", err)
	}

	// Some ref is already recorded. Either this is a retry of the same transaction
	// or a double spend.
	conflict, err := p.conflicts(ctx, refs, txID)
	if err != nil {
		return err
	}
	if conflict != nil {
		return conflict
	}
	if err := p.insertMissing(ctx, rows); err != nil {
		return err
	}
	if conflict, err = p.conflicts(ctx, refs, txID); err != nil {
		return err
	}
	if conflict != nil {
		return conflict
	}
	return nil
}

func (p *pgUniqueness) conflicts(ctx context.Context, refs []ledger.StateRef, txID ledger.SecureHash) (*ConflictError, error) {
	var existing []ConsumedStateDao
	q := p.db.NewSelect().Model(&existing)
	q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, ref := range refs {
			q = q.WhereOr("(tx_id = ? AND output_index = ?)", ref.TxID.String(), ref.Index)
		}
		return q
	})
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to query consumed states: %w", err)
	}

	var conflict *ConflictError
	for _, row := range existing {
		if row.ConsumingTxID == txID.String() {
			continue
		}
		if conflict == nil {
			conflict = &ConflictError{TxID: txID, Consumed: make(map[ledger.StateRef]ledger.SecureHash)}
		}
		ref := ledger.StateRef{TxID: ledger.MustParseSecureHash(row.TxID), Index: row.OutputIndex}
		conflict.Consumed[ref] = ledger.MustParseSecureHash(row.ConsumingTxID)
	}
	return conflict, nil
}

// insertMissing completes a partially recorded commit of the same transaction.
func (p *pgUniqueness) insertMissing(ctx context.Context, rows []ConsumedStateDao) error {
	_, err := p.db.NewInsert().
		Model(&rows).
		On("CONFLICT (tx_id, output_index) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert consumed states: %w", err)
	}
	return nil
}
