package notary

import (
	"context"
	"errors"
	"testing"

	"github.com/uptrace/bun"

	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/pgutil"
	mghelper "github.com/chainsafe/trader-flows/pkg/pgutil/migrations"
)

func setupPGUniqueness(t *testing.T) (UniquenessProvider, *bun.DB, func()) {
	t.Helper()
	pgutil.RequireDockerAccess(t)

	db, cleanup := pgutil.SetupTestDB(t)
	if err := mghelper.CreateSchema(context.Background(), db, &ConsumedStateDao{}); err != nil {
		cleanup()
		t.Fatalf("failed to create consumed_states table: %v", err)
	}
	return NewPGUniqueness(db), db, cleanup
}

func TestPGUniqueness_Commit(t *testing.T) {
	u, db, cleanup := setupPGUniqueness(t)
	defer cleanup()
	ctx := context.Background()

	issue := ledger.HashOf([]byte("issue"))
	spendA := ledger.HashOf([]byte("spend-a"))
	spendB := ledger.HashOf([]byte("spend-b"))
	refs := []ledger.StateRef{{TxID: issue, Index: 0}, {TxID: issue, Index: 1}}
	requester := ledger.Party{Name: "BankA", Key: "02ab"}

	if err := u.Commit(ctx, refs, spendA, requester); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	pgutil.AssertRowCount(t, db, "consumed_states", 2)

	// idempotent for the same consuming transaction
	if err := u.Commit(ctx, refs, spendA, requester); err != nil {
		t.Fatalf("second Commit() of the same tx failed: %v", err)
	}

	err := u.Commit(ctx, []ledger.StateRef{refs[1], {TxID: issue, Index: 2}}, spendB, requester)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Commit() error = %v, want ConflictError", err)
	}
	if got := conflict.Consumed[refs[1]]; got != spendA {
		t.Errorf("conflict consumed by %s, want %s", got, spendA)
	}
	if _, ok := conflict.Consumed[ledger.StateRef{TxID: issue, Index: 2}]; ok {
		t.Error("unconsumed ref reported as conflicting")
	}

	// the failed commit must not have recorded the fresh ref
	pgutil.AssertRowCount(t, db, "consumed_states", 2)

	if err := u.Commit(ctx, nil, spendB, requester); err != nil {
		t.Errorf("Commit() with no inputs failed: %v", err)
	}
}
