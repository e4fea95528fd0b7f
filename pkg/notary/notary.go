// Package notary implements the uniqueness service that finalizes transactions.
//
// A notary checks that a transaction is fully signed and valid, records its input
// references as consumed, and signs the transaction ID. Inputs already consumed by a
// different transaction produce a ConflictError.
package notary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/internal/metrics"
	"github.com/chainsafe/trader-flows/pkg/ledger"
)

var (
	// ErrConflict is returned when an input was consumed by another transaction.
	ErrConflict = errors.New("input state already consumed")
	// ErrInvalid is returned for malformed, unsigned or contract-violating transactions.
	ErrInvalid = errors.New("invalid transaction")
)

// ConflictError lists the inputs of TxID that were already consumed.
type ConflictError struct {
	TxID     ledger.SecureHash                     `json:"txId"`
	Consumed map[ledger.StateRef]ledger.SecureHash `json:"-"`
}

func (e *ConflictError) Error() string {
	refs := make([]string, 0, len(e.Consumed))
	for ref, by := range e.Consumed {
		refs = append(refs, fmt.Sprintf("%s by %s", ref, by.Short()))
	}
	return fmt.Sprintf("%s: tx %s: %s", ErrConflict, e.TxID.Short(), strings.Join(refs, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Service finalizes transactions.
type Service interface {
	Notarize(ctx context.Context, stx *ledger.SignedTransaction) (*ledger.SignedTransaction, error)
}

// UniquenessProvider records which transaction consumed each state reference.
// Commit is all or nothing: either every ref is recorded as consumed by txID or,
// if any ref is consumed by a different transaction, nothing changes and a
// *ConflictError is returned. Committing the same txID again succeeds.
type UniquenessProvider interface {
	Commit(ctx context.Context, refs []ledger.StateRef, txID ledger.SecureHash, requester ledger.Party) error
}

// SimpleNotary validates and signs transactions naming its party as notary.
type SimpleNotary struct {
	signer     ledger.Signer
	uniqueness UniquenessProvider
	logger     *zap.Logger
}

// NewSimpleNotary creates a notary signing with signer.
func NewSimpleNotary(signer ledger.Signer, uniqueness UniquenessProvider, logger *zap.Logger) *SimpleNotary {
	return &SimpleNotary{
		signer:     signer,
		uniqueness: uniqueness,
		logger:     logger.Named("notary"),
	}
}

// Party returns the notary identity.
func (n *SimpleNotary) Party() ledger.Party {
	return n.signer.Party()
}

// Notarize implements Service.
func (n *SimpleNotary) Notarize(ctx context.Context, stx *ledger.SignedTransaction) (*ledger.SignedTransaction, error) {
	if err := n.validate(stx); err != nil {
		metrics.NotaryCommits.WithLabelValues("invalid").Inc()
		n.logger.Warn("rejected invalid transaction", zap.Error(err))
		return nil, err
	}

	id := stx.ID()
	requester := ledger.Party{}
	if len(stx.Sigs) > 0 {
		requester = stx.Sigs[0].By
	}

	if err := n.uniqueness.Commit(ctx, stx.Tx.InputRefs(), id, requester); err != nil {
		if errors.Is(err, ErrConflict) {
			metrics.NotaryCommits.WithLabelValues("conflict").Inc()
			n.logger.Warn("double spend rejected", zap.String("tx_id", id.String()), zap.Error(err))
			return nil, err
		}
		metrics.NotaryCommits.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("commit inputs of %s: %w", id.Short(), err)
	}

	sig, err := n.signer.Sign(id)
	if err != nil {
		metrics.NotaryCommits.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.NotaryCommits.WithLabelValues("committed").Inc()
	n.logger.Info("transaction notarized",
		zap.String("tx_id", id.String()),
		zap.Int("inputs", len(stx.Tx.Inputs)),
		zap.Int("outputs", len(stx.Tx.Outputs)),
	)
	return stx.WithSignature(sig), nil
}

func (n *SimpleNotary) validate(stx *ledger.SignedTransaction) error {
	if stx == nil || stx.Tx == nil {
		return fmt.Errorf("%w: empty transaction", ErrInvalid)
	}
	if stx.Tx.Notary != n.signer.Party() {
		return fmt.Errorf("%w: transaction names notary %s, not %s", ErrInvalid, stx.Tx.Notary, n.signer.Party())
	}
	if err := stx.VerifySignatures(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := ledger.Verify(stx.Tx); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
