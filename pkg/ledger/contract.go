package ledger

import (
	"errors"
	"fmt"
)

// ErrContractViolation is returned when a transaction breaks the cash or paper rules.
var ErrContractViolation = errors.New("contract violation")

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}

// Verify applies the cash and commercial paper rules to wtx. It checks the
// shape of the transaction, not whether its inputs are unconsumed.
func Verify(wtx *WireTransaction) error {
	if wtx == nil {
		return violation("nil transaction")
	}
	seen := make(map[StateRef]struct{}, len(wtx.Inputs))
	for i, in := range wtx.Inputs {
		if _, dup := seen[in.Ref]; dup {
			return violation("input %d: %s is listed more than once", i, in.Ref)
		}
		seen[in.Ref] = struct{}{}
		if err := in.State.Validate(); err != nil {
			return violation("input %d: %v", i, err)
		}
	}
	for i, out := range wtx.Outputs {
		if err := out.Validate(); err != nil {
			return violation("output %d: %v", i, err)
		}
	}
	if err := verifyCash(wtx); err != nil {
		return err
	}
	return verifyPaper(wtx)
}

func signersOf(wtx *WireTransaction, kind CommandKind) map[Party]struct{} {
	signers := make(map[Party]struct{})
	for _, c := range wtx.Commands {
		if c.Kind != kind {
			continue
		}
		for _, s := range c.Signers {
			signers[s] = struct{}{}
		}
	}
	return signers
}

type cashGroup struct {
	currency  string
	issuerKey string
}

func verifyCash(wtx *WireTransaction) error {
	in := make(map[cashGroup]Amount)
	out := make(map[cashGroup]Amount)
	issuers := make(map[cashGroup]Party)

	movers := signersOf(wtx, CashMove)
	for _, sr := range wtx.Inputs {
		if sr.State.Kind != CashKind {
			continue
		}
		c := sr.State.Cash
		if _, ok := movers[c.Owner]; !ok {
			return violation("cash input %s owner %s has not signed a move", sr.Ref, c.Owner)
		}
		g := cashGroup{currency: c.Amount.Currency, issuerKey: c.Issuer.Key}
		sum, ok := in[g]
		if !ok {
			sum = Zero(c.Amount.Currency)
		}
		in[g], _ = sum.Add(c.Amount)
		issuers[g] = c.Issuer
	}

	for i, s := range wtx.Outputs {
		if s.Kind != CashKind {
			continue
		}
		c := s.Cash
		if !c.Amount.IsPositive() {
			return violation("cash output %d has non-positive amount %s", i, c.Amount)
		}
		g := cashGroup{currency: c.Amount.Currency, issuerKey: c.Issuer.Key}
		sum, ok := out[g]
		if !ok {
			sum = Zero(c.Amount.Currency)
		}
		out[g], _ = sum.Add(c.Amount)
		issuers[g] = c.Issuer
	}

	issueSigners := signersOf(wtx, CashIssue)
	for g, issuer := range issuers {
		inSum, ok := in[g]
		if !ok {
			inSum = Zero(g.currency)
		}
		outSum, ok := out[g]
		if !ok {
			outSum = Zero(g.currency)
		}
		switch outSum.Cmp(inSum) {
		case 1:
			if _, ok := issueSigners[issuer]; !ok {
				return violation("cash of %s issued by %s without its signature", g.currency, issuer)
			}
		case -1:
			return violation("cash of %s issued by %s is not conserved: in %s, out %s",
				g.currency, issuer, inSum, outSum)
		}
	}
	return nil
}

func samePaper(a, b *PaperState) bool {
	return a.Issuer == b.Issuer &&
		string(a.Reference) == string(b.Reference) &&
		a.FaceValue.Equal(b.FaceValue) &&
		a.Maturity.Equal(b.Maturity)
}

func verifyPaper(wtx *WireTransaction) error {
	movers := signersOf(wtx, PaperMove)
	issuers := signersOf(wtx, PaperIssue)

	matched := make([]bool, len(wtx.Outputs))
	for _, sr := range wtx.Inputs {
		if sr.State.Kind != PaperKind {
			continue
		}
		p := sr.State.Paper
		if _, ok := movers[p.Owner]; !ok {
			return violation("paper input %s owner %s has not signed a move", sr.Ref, p.Owner)
		}
		found := false
		for i, s := range wtx.Outputs {
			if matched[i] || s.Kind != PaperKind {
				continue
			}
			if samePaper(p, s.Paper) {
				matched[i] = true
				found = true
				break
			}
		}
		if !found {
			return violation("paper input %s has no matching output", sr.Ref)
		}
	}

	for i, s := range wtx.Outputs {
		if s.Kind != PaperKind || matched[i] {
			continue
		}
		if !s.Paper.FaceValue.IsPositive() {
			return violation("paper output %d has non-positive face value", i)
		}
		if _, ok := issuers[s.Paper.Issuer]; !ok {
			return violation("paper output %d issued by %s without its signature", i, s.Paper.Issuer)
		}
	}
	return nil
}
