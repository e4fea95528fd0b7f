package issuance

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/flow"
	"github.com/chainsafe/trader-flows/pkg/ledger"
)

const (
	StateReceiveProposal  flow.State = "ReceiveProposal"
	StateValidateProposal flow.State = "ValidateProposal"
	StateCountersign      flow.State = "Countersign"
	StateAwaitFinality    flow.State = "AwaitFinality"
)

var issuerTransitions = flow.Transitions{
	flow.StateInit:        {StateReceiveProposal},
	StateReceiveProposal:  {StateValidateProposal},
	StateValidateProposal: {StateCountersign},
	StateCountersign:      {StateAwaitFinality},
	StateAwaitFinality:    {flow.StateFinalized},
}

// Policy is what an issuer agrees to issue.
type Policy struct {
	// MaxAmount caps a single issuance. Zero means no cap.
	MaxAmount  decimal.Decimal
	Currencies []string
}

func (p Policy) allows(currency string) bool {
	if len(p.Currencies) == 0 {
		return true
	}
	for _, c := range p.Currencies {
		if c == currency {
			return true
		}
	}
	return false
}

// Issuer is the responder run on the issuing node.
type Issuer struct {
	session *flow.Session
	policy  Policy
}

// NewResponder returns the responder factory for issuers applying policy.
func NewResponder(policy Policy) flow.ResponderFactory {
	return func(s *flow.Session) flow.Logic {
		return &Issuer{session: s, policy: policy}
	}
}

func (i *Issuer) Name() string { return "issuance.issuer" }

// Run implements flow.Logic.
func (i *Issuer) Run(fc *flow.Context) (*ledger.SignedTransaction, error) {
	m := fc.NewMachine("issuance.issuer", issuerTransitions)
	stx, err := i.run(fc, m)
	return stx, m.Settle(err)
}

func (i *Issuer) run(fc *flow.Context, m *flow.Machine) (*ledger.SignedTransaction, error) {
	ctx := fc.Context()
	requester := i.session.Counterparty()
	log := fc.Logger().With(zap.String("role", "Issuer"))

	var stx *ledger.SignedTransaction
	err := m.Step(StateReceiveProposal, func() error {
		var p proposal
		if err := i.session.Receive(ctx, &p); err != nil {
			return err
		}
		if p.Transaction == nil || p.Transaction.Tx == nil {
			return flow.Fail(flow.ReasonInvalid, "empty proposal")
		}
		stx = p.Transaction
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = m.Step(StateValidateProposal, func() error {
		return i.validate(fc, stx, requester)
	})
	if err != nil {
		log.Warn("issuance rejected", zap.Error(err))
		return nil, err
	}

	err = m.Step(StateCountersign, func() error {
		sig, err := fc.Services().Signer.Sign(stx.ID())
		if err != nil {
			return flow.Wrap(flow.ReasonInternal, err)
		}
		return i.session.Send(ctx, countersignature{Signature: sig})
	})
	if err != nil {
		return nil, err
	}

	var final *ledger.SignedTransaction
	err = m.Step(StateAwaitFinality, func() error {
		var f finality
		if err := i.session.Receive(ctx, &f); err != nil {
			return err
		}
		if f.Transaction == nil || f.Transaction.Tx == nil || f.Transaction.ID() != stx.ID() {
			return flow.Fail(flow.ReasonInvalid, "finalized transaction does not match the countersigned proposal")
		}
		final = f.Transaction
		return fc.Record(final)
	})
	if err != nil {
		return nil, err
	}

	log.Info("issued cash",
		zap.String("owner", requester.Name),
		zap.String("amount", final.Tx.Outputs[0].Cash.Amount.String()),
		zap.String("tx_id", final.ID().String()),
	)
	return final, nil
}

// validate applies the issuer policy. Every failure is a Rejected refusal.
func (i *Issuer) validate(fc *flow.Context, stx *ledger.SignedTransaction, requester ledger.Party) error {
	wtx := stx.Tx
	me := fc.Me()

	if len(wtx.Inputs) != 0 {
		return flow.Fail(flow.ReasonRejected, "issuance must not consume inputs")
	}
	if len(wtx.Outputs) != 1 || wtx.Outputs[0].Kind != ledger.CashKind || wtx.Outputs[0].Cash == nil {
		return flow.Fail(flow.ReasonRejected, "issuance must create exactly one cash state")
	}
	cash := wtx.Outputs[0].Cash
	if cash.Issuer != me {
		return flow.Fail(flow.ReasonRejected, "issuer is %s, not %s", cash.Issuer, me)
	}
	if cash.Owner != requester {
		return flow.Fail(flow.ReasonRejected, "owner %s is not the requesting party %s", cash.Owner, requester)
	}
	if !cash.Amount.IsPositive() {
		return flow.Fail(flow.ReasonRejected, "amount must be positive, got %s", cash.Amount)
	}
	if !i.policy.MaxAmount.IsZero() && cash.Amount.Quantity.GreaterThan(i.policy.MaxAmount) {
		return flow.Fail(flow.ReasonRejected, "amount %s exceeds limit %s", cash.Amount, i.policy.MaxAmount)
	}
	if !i.policy.allows(cash.Amount.Currency) {
		return flow.Fail(flow.ReasonRejected, "currency %s is not issued here", cash.Amount.Currency)
	}
	if len(cash.Reference) == 0 {
		return flow.Fail(flow.ReasonRejected, "issuance reference is empty")
	}
	if net := fc.Services().Network; net != nil && !net.IsNotary(wtx.Notary) {
		return flow.Fail(flow.ReasonRejected, "%s is not a known notary", wtx.Notary)
	}
	if len(wtx.Commands) != 1 || wtx.Commands[0].Kind != ledger.CashIssue {
		return flow.Fail(flow.ReasonRejected, "issuance must carry exactly one %s command", ledger.CashIssue)
	}
	if err := ledger.Verify(wtx); err != nil {
		return flow.Wrap(flow.ReasonRejected, err)
	}
	if err := stx.VerifySignatures(me); err != nil {
		return flow.Wrap(flow.ReasonRejected, err)
	}
	return nil
}
