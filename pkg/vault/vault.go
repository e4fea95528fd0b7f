// Package vault keeps a node's record of finalized transactions and the states it owns.
//
// The vault never reserves states. Concurrent flows may select the same cash and the
// notary decides which of them gets to spend it.
package vault

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

var (
	// ErrInsufficientFunds is returned when unconsumed cash does not cover a request.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotNotarized is returned when recording a transaction without a valid notary signature.
	ErrNotNotarized = errors.New("transaction is not notarized")
	// ErrStateNotFound is returned when a state is not an unconsumed state of this node.
	ErrStateNotFound = errors.New("state not found")
	// ErrUnknownTransaction is returned when a dependency is not in the vault.
	ErrUnknownTransaction = errors.New("unknown transaction")
)

type entry struct {
	sar    ledger.StateAndRef
	notary ledger.Party
}

// Vault is safe for concurrent use.
type Vault struct {
	mu         sync.RWMutex
	me         ledger.Party
	txs        map[ledger.SecureHash]*ledger.SignedTransaction
	unconsumed map[ledger.StateRef]entry
	consumed   map[ledger.StateRef]struct{}
	logger     *zap.Logger
}

// New creates an empty vault for the party me.
func New(me ledger.Party, logger *zap.Logger) *Vault {
	return &Vault{
		me:         me,
		txs:        make(map[ledger.SecureHash]*ledger.SignedTransaction),
		unconsumed: make(map[ledger.StateRef]entry),
		consumed:   make(map[ledger.StateRef]struct{}),
		logger:     logger.Named("vault"),
	}
}

// Record stores a notarized transaction, marks its inputs consumed and tracks the
// outputs owned by this node. Recording the same transaction twice is a no-op.
func (v *Vault) Record(stx *ledger.SignedTransaction) error {
	if !stx.IsNotarized() {
		return ErrNotNotarized
	}
	id := stx.ID()

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.txs[id]; ok {
		return nil
	}
	v.txs[id] = stx

	for _, ref := range stx.Tx.InputRefs() {
		delete(v.unconsumed, ref)
		v.consumed[ref] = struct{}{}
	}

	owned := 0
	for i, s := range stx.Tx.Outputs {
		if s.Owner() != v.me {
			continue
		}
		ref := ledger.StateRef{TxID: id, Index: i}
		if _, spent := v.consumed[ref]; spent {
			continue
		}
		v.unconsumed[ref] = entry{
			sar:    ledger.StateAndRef{State: s, Ref: ref},
			notary: stx.Tx.Notary,
		}
		owned++
	}

	v.logger.Debug("recorded transaction",
		zap.String("tx_id", id.String()),
		zap.Int("inputs", len(stx.Tx.Inputs)),
		zap.Int("owned_outputs", owned),
	)
	return nil
}

// Transaction returns a recorded transaction.
func (v *Vault) Transaction(id ledger.SecureHash) (*ledger.SignedTransaction, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	stx, ok := v.txs[id]
	return stx, ok
}

// Dependencies returns the distinct recorded transactions producing the given states.
func (v *Vault) Dependencies(states []ledger.StateAndRef) ([]*ledger.SignedTransaction, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	seen := make(map[ledger.SecureHash]struct{}, len(states))
	deps := make([]*ledger.SignedTransaction, 0, len(states))
	for _, s := range states {
		if _, ok := seen[s.Ref.TxID]; ok {
			continue
		}
		stx, ok := v.txs[s.Ref.TxID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTransaction, s.Ref.TxID.Short())
		}
		seen[s.Ref.TxID] = struct{}{}
		deps = append(deps, stx)
	}
	return deps, nil
}

// State returns an unconsumed state owned by this node and the notary it is bound to.
func (v *Vault) State(ref ledger.StateRef) (ledger.StateAndRef, ledger.Party, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.unconsumed[ref]
	if !ok {
		return ledger.StateAndRef{}, ledger.Party{}, fmt.Errorf("%w: %s", ErrStateNotFound, ref)
	}
	return e.sar, e.notary, nil
}

// Produced returns an output of a recorded transaction whether or not it has been
// consumed since, together with the transaction's notary.
func (v *Vault) Produced(ref ledger.StateRef) (ledger.StateAndRef, ledger.Party, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	stx, ok := v.txs[ref.TxID]
	if !ok || ref.Index < 0 || ref.Index >= len(stx.Tx.Outputs) {
		return ledger.StateAndRef{}, ledger.Party{}, fmt.Errorf("%w: %s", ErrStateNotFound, ref)
	}
	return ledger.StateAndRef{State: stx.Tx.Outputs[ref.Index], Ref: ref}, stx.Tx.Notary, nil
}

// Unconsumed returns this node's unconsumed states of a kind, ordered by reference.
func (v *Vault) Unconsumed(kind ledger.StateKind) []ledger.StateAndRef {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var out []ledger.StateAndRef
	for _, e := range v.unconsumed {
		if e.sar.State.Kind == kind {
			out = append(out, e.sar)
		}
	}
	sortRefs(out)
	return out
}

// SelectCash picks unconsumed cash of amount's currency bound to notary until the
// total covers amount. It returns ErrInsufficientFunds together with the available
// total when it cannot.
func (v *Vault) SelectCash(amount ledger.Amount, notary ledger.Party) ([]ledger.StateAndRef, ledger.Amount, error) {
	v.mu.RLock()
	candidates := make([]ledger.StateAndRef, 0, len(v.unconsumed))
	for _, e := range v.unconsumed {
		if e.sar.State.Kind != ledger.CashKind || e.notary != notary {
			continue
		}
		if e.sar.State.Cash.Amount.Currency != amount.Currency {
			continue
		}
		candidates = append(candidates, e.sar)
	}
	v.mu.RUnlock()
	sortRefs(candidates)

	total := ledger.Zero(amount.Currency)
	var selected []ledger.StateAndRef
	for _, c := range candidates {
		if total.Cmp(amount) >= 0 {
			break
		}
		next, err := total.Add(c.State.Cash.Amount)
		if err != nil {
			return nil, total, err
		}
		total = next
		selected = append(selected, c)
	}

	if total.Cmp(amount) < 0 {
		return nil, total, fmt.Errorf("%w: need %s, have %s at %s", ErrInsufficientFunds, amount, total, notary.Name)
	}
	return selected, total, nil
}

// CashBalance returns the sum of unconsumed cash in currency across all notaries.
func (v *Vault) CashBalance(currency string) ledger.Amount {
	total := ledger.Zero(currency)
	for _, c := range v.Unconsumed(ledger.CashKind) {
		if c.State.Cash.Amount.Currency != total.Currency {
			continue
		}
		if next, err := total.Add(c.State.Cash.Amount); err == nil {
			total = next
		}
	}
	return total
}

// Balances summarizes unconsumed holdings.
type Balances struct {
	Party ledger.Party             `json:"party"`
	Cash  map[string]ledger.Amount `json:"cash"`
	Paper []ledger.StateAndRef     `json:"paper"`
}

// Balances returns cash totals per currency and the paper held.
func (v *Vault) Balances() Balances {
	b := Balances{Party: v.me, Cash: make(map[string]ledger.Amount)}
	for _, c := range v.Unconsumed(ledger.CashKind) {
		ccy := c.State.Cash.Amount.Currency
		cur, ok := b.Cash[ccy]
		if !ok {
			cur = ledger.Zero(ccy)
		}
		if next, err := cur.Add(c.State.Cash.Amount); err == nil {
			b.Cash[ccy] = next
		}
	}
	b.Paper = v.Unconsumed(ledger.PaperKind)
	return b
}

// TransactionCount returns the number of recorded transactions.
func (v *Vault) TransactionCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.txs)
}

func sortRefs(s []ledger.StateAndRef) {
	sort.Slice(s, func(i, j int) bool {
		a, b := s[i].Ref, s[j].Ref
		if a.TxID != b.TxID {
			return a.TxID.String() < b.TxID.String()
		}
		return a.Index < b.Index
	})
}
