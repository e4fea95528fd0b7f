package ledger

import (
	"errors"
	"fmt"
)

// ErrUnresolvedInput is returned when an input cannot be traced to a notarised output.
var ErrUnresolvedInput = errors.New("unresolved input")

// ResolveInputs checks that every input of wtx is the output it claims to be of one
// of deps, and that each such dependency was notarised by wtx's notary.
func ResolveInputs(wtx *WireTransaction, deps []*SignedTransaction) error {
	byID := make(map[SecureHash]*SignedTransaction, len(deps))
	for _, d := range deps {
		if d == nil || d.Tx == nil {
			continue
		}
		byID[d.ID()] = d
	}

	seen := make(map[StateRef]struct{}, len(wtx.Inputs))
	for _, in := range wtx.Inputs {
		if _, dup := seen[in.Ref]; dup {
			return fmt.Errorf("%w: %s: listed more than once", ErrUnresolvedInput, in.Ref)
		}
		seen[in.Ref] = struct{}{}
		dep, ok := byID[in.Ref.TxID]
		if !ok {
			return fmt.Errorf("%w: %s: producing transaction not supplied", ErrUnresolvedInput, in.Ref)
		}
		if !dep.IsNotarized() {
			return fmt.Errorf("%w: %s: producing transaction is not notarised", ErrUnresolvedInput, in.Ref)
		}
		if dep.Tx.Notary != wtx.Notary {
			return fmt.Errorf("%w: %s: notarised by %s, transaction uses %s",
				ErrUnresolvedInput, in.Ref, dep.Tx.Notary, wtx.Notary)
		}
		if in.Ref.Index < 0 || in.Ref.Index >= len(dep.Tx.Outputs) {
			return fmt.Errorf("%w: %s: index out of range", ErrUnresolvedInput, in.Ref)
		}
		if !dep.Tx.Outputs[in.Ref.Index].Equal(in.State) {
			return fmt.Errorf("%w: %s: state does not match producing output", ErrUnresolvedInput, in.Ref)
		}
	}
	return nil
}
