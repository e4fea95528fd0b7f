package attachment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/pgutil"
	mghelper "github.com/chainsafe/trader-flows/pkg/pgutil/migrations"
)

func setupPGStore(t *testing.T) (Store, func()) {
	t.Helper()
	pgutil.RequireDockerAccess(t)

	db, cleanup := pgutil.SetupTestDB(t)
	if err := mghelper.CreateSchema(context.Background(), db, &AttachmentDao{}); err != nil {
		cleanup()
		t.Fatalf("failed to create attachments table: %v", err)
	}
	return NewPGStore(db), cleanup
}

func TestPGStore_ImportAndFetch(t *testing.T) {
	store, cleanup := setupPGStore(t)
	defer cleanup()
	ctx := context.Background()

	data := []byte("commercial paper prospectus")
	id, err := store.Import(ctx, data)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if id != Digest(data) {
		t.Fatalf("Import() id = %s, want %s", id, Digest(data))
	}

	again, err := store.Import(ctx, data)
	if err != nil {
		t.Fatalf("second Import() failed: %v", err)
	}
	if again != id {
		t.Errorf("second Import() id = %s, want %s", again, id)
	}

	ok, err := store.Exists(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v; want true, nil", ok, err)
	}

	got, err := store.Fetch(ctx, id)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Fetch() = %q, want %q", got, data)
	}
}

func TestPGStore_Missing(t *testing.T) {
	store, cleanup := setupPGStore(t)
	defer cleanup()
	ctx := context.Background()

	missing := ledger.HashOf([]byte("never imported"))
	ok, err := store.Exists(ctx, missing)
	if err != nil {
		t.Fatalf("Exists() failed: %v", err)
	}
	if ok {
		t.Error("Exists() = true for missing attachment")
	}

	if _, err := store.Fetch(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestPGStore_ConcurrentImport(t *testing.T) {
	store, cleanup := setupPGStore(t)
	defer cleanup()
	ctx := context.Background()

	data := []byte("imported by many sessions at once")
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Import(ctx, data); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Import() failed: %v", err)
	}

	if err := EnsurePresent(ctx, store, Digest(data), data); err != nil {
		t.Errorf("EnsurePresent() failed: %v", err)
	}
}
