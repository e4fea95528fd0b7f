package notary

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/keys"
	"github.com/chainsafe/trader-flows/pkg/ledger"
)

type fixture struct {
	notary ledger.Signer
	bank   ledger.Signer
	alice  ledger.Signer
	bob    ledger.Signer
	svc    *SimpleNotary
}

func newSigner(t *testing.T, name string) ledger.Signer {
	t.Helper()
	kp, err := keys.GenerateKeyPair()
	require.NoError(t, err)
	return ledger.NewSigner(name, kp)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		notary: newSigner(t, "Notary"),
		bank:   newSigner(t, "BankOfCorda"),
		alice:  newSigner(t, "BankA"),
		bob:    newSigner(t, "BankB"),
	}
	f.svc = NewSimpleNotary(f.notary, NewMemoryUniqueness(), zap.NewNop())
	return f
}

func amount(t *testing.T, q string) ledger.Amount {
	t.Helper()
	a, err := ledger.ParseAmount(q, "USD")
	require.NoError(t, err)
	return a
}

func sign(t *testing.T, wtx *ledger.WireTransaction, signers ...ledger.Signer) *ledger.SignedTransaction {
	t.Helper()
	stx, err := ledger.NewSignedTransaction(wtx, signers[0])
	require.NoError(t, err)
	for _, s := range signers[1:] {
		sig, err := s.Sign(stx.ID())
		require.NoError(t, err)
		stx = stx.WithSignature(sig)
	}
	return stx
}

// issuance returns a notarized issuance of q USD to alice.
func (f *fixture) issuance(t *testing.T, q string) *ledger.SignedTransaction {
	t.Helper()
	wtx, err := ledger.NewTransactionBuilder(f.notary.Party()).
		AddOutputState(ledger.Cash(ledger.CashState{
			Amount:    amount(t, q),
			Owner:     f.alice.Party(),
			Issuer:    f.bank.Party(),
			Reference: []byte{0x01},
		})).
		AddCommand(ledger.CashIssue, f.bank.Party(), f.alice.Party()).
		ToWireTransaction()
	require.NoError(t, err)

	notarized, err := f.svc.Notarize(context.Background(), sign(t, wtx, f.alice, f.bank))
	require.NoError(t, err)
	return notarized
}

// payment moves the issued cash from alice to to.
func (f *fixture) payment(t *testing.T, issued *ledger.SignedTransaction, to ledger.Signer) *ledger.SignedTransaction {
	t.Helper()
	in := issued.Tx.OutRef(0)
	out := *in.State.Cash
	out.Owner = to.Party()
	wtx, err := ledger.NewTransactionBuilder(f.notary.Party()).
		AddInputState(in).
		AddOutputState(ledger.Cash(out)).
		AddCommand(ledger.CashMove, f.alice.Party()).
		ToWireTransaction()
	require.NoError(t, err)
	return sign(t, wtx, f.alice)
}

func TestNotarize_Issuance(t *testing.T) {
	f := newFixture(t)
	stx := f.issuance(t, "1000")

	assert.True(t, stx.IsNotarized())
	require.NoError(t, stx.VerifySignatures())
}

func TestNotarize_DoubleSpend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := f.issuance(t, "500")

	first, err := f.svc.Notarize(ctx, f.payment(t, issued, f.bob))
	require.NoError(t, err)
	assert.True(t, first.IsNotarized())

	_, err = f.svc.Notarize(ctx, f.payment(t, issued, f.bank))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, first.ID(), conflict.Consumed[issued.Tx.OutRef(0).Ref])
}

func TestNotarize_SameTransactionTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pay := f.payment(t, f.issuance(t, "10"), f.bob)

	first, err := f.svc.Notarize(ctx, pay)
	require.NoError(t, err)
	second, err := f.svc.Notarize(ctx, pay)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())
}

func TestNotarize_ConcurrentSpendsOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued := f.issuance(t, "100")

	candidates := []*ledger.SignedTransaction{
		f.payment(t, issued, f.bob),
		f.payment(t, issued, f.bank),
		f.payment(t, issued, f.bob),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(candidates))
	for i, stx := range candidates {
		wg.Add(1)
		go func(i int, stx *ledger.SignedTransaction) {
			defer wg.Done()
			_, errs[i] = f.svc.Notarize(ctx, stx)
		}(i, stx)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, len(candidates)-1, conflicts)
}

func TestNotarize_Invalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wrongNotary := newSigner(t, "OtherNotary")
	wtx, err := ledger.NewTransactionBuilder(wrongNotary.Party()).
		AddOutputState(ledger.Cash(ledger.CashState{Amount: amount(t, "1"), Owner: f.alice.Party(), Issuer: f.bank.Party(), Reference: []byte{1}})).
		AddCommand(ledger.CashIssue, f.bank.Party(), f.alice.Party()).
		ToWireTransaction()
	require.NoError(t, err)
	_, err = f.svc.Notarize(ctx, sign(t, wtx, f.alice, f.bank))
	assert.True(t, errors.Is(err, ErrInvalid), "wrong notary: %v", err)

	wtx, err = ledger.NewTransactionBuilder(f.notary.Party()).
		AddOutputState(ledger.Cash(ledger.CashState{Amount: amount(t, "1"), Owner: f.alice.Party(), Issuer: f.bank.Party(), Reference: []byte{1}})).
		AddCommand(ledger.CashIssue, f.bank.Party(), f.alice.Party()).
		ToWireTransaction()
	require.NoError(t, err)
	_, err = f.svc.Notarize(ctx, sign(t, wtx, f.alice))
	assert.True(t, errors.Is(err, ErrInvalid), "missing issuer signature: %v", err)

	_, err = f.svc.Notarize(ctx, nil)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestNotarize_RepeatedInputIsInvalid(t *testing.T) {
	f := newFixture(t)
	issued := f.issuance(t, "500")
	in := issued.Tx.OutRef(0)

	doubled := *in.State.Cash
	doubled.Amount = amount(t, "1000")
	wtx := &ledger.WireTransaction{
		Inputs:   []ledger.StateAndRef{in, in},
		Outputs:  []ledger.State{ledger.Cash(doubled)},
		Commands: []ledger.Command{{Kind: ledger.CashMove, Signers: []ledger.Party{f.alice.Party()}}},
		Notary:   f.notary.Party(),
	}

	_, err := f.svc.Notarize(context.Background(), sign(t, wtx, f.alice))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid), "repeated input: %v", err)
	assert.True(t, errors.Is(err, ledger.ErrContractViolation))

	// The input is still spendable once.
	_, err = f.svc.Notarize(context.Background(), f.payment(t, issued, f.bob))
	require.NoError(t, err)
}

func TestHTTPClient_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := chi.NewRouter()
	RegisterRoutes(r, f.svc, zap.NewNop())
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	issued := f.issuance(t, "50")

	notarized, err := client.Notarize(ctx, f.payment(t, issued, f.bob))
	require.NoError(t, err)
	assert.True(t, notarized.IsNotarized())

	_, err = client.Notarize(ctx, f.payment(t, issued, f.bank))
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, notarized.ID(), conflict.Consumed[issued.Tx.OutRef(0).Ref])

	bad := f.payment(t, issued, f.bob)
	bad.Sigs = nil
	_, err = client.Notarize(ctx, bad)
	assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
}

type staticAddresses map[ledger.Party]string

func (s staticAddresses) AddressOf(p ledger.Party) (string, error) {
	addr, ok := s[p]
	if !ok {
		return "", errors.New("no address")
	}
	return addr, nil
}

func TestPool_Routing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	remote := newFixture(t)
	r := chi.NewRouter()
	RegisterRoutes(r, remote.svc, zap.NewNop())
	srv := httptest.NewServer(r)
	defer srv.Close()

	pool := NewPool(staticAddresses{remote.notary.Party(): srv.URL}, srv.Client())
	pool.Register(f.notary.Party(), f.svc)

	local := f.payment(t, f.issuance(t, "5"), f.bob)
	out, err := pool.Notarize(ctx, local)
	require.NoError(t, err)
	assert.True(t, out.IsNotarized())

	viaHTTP := remote.payment(t, remote.issuance(t, "5"), remote.bob)
	out, err = pool.Notarize(ctx, viaHTTP)
	require.NoError(t, err)
	assert.True(t, out.IsNotarized())

	wtx, err := ledger.NewTransactionBuilder(newSigner(t, "Nobody").Party()).
		AddOutputState(ledger.Cash(ledger.CashState{Amount: amount(t, "1"), Owner: f.alice.Party(), Issuer: f.bank.Party(), Reference: []byte{1}})).
		AddCommand(ledger.CashIssue, f.bank.Party(), f.alice.Party()).
		ToWireTransaction()
	require.NoError(t, err)
	_, err = pool.Notarize(ctx, sign(t, wtx, f.alice, f.bank))
	assert.True(t, errors.Is(err, ErrInvalid))
}
