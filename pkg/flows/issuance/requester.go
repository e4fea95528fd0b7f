package issuance

import (
	"errors"

	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/flow"
	"github.com/chainsafe/trader-flows/pkg/ledger"
)

const (
	StateResolveParties         flow.State = "ResolveParties"
	StateBuildProposal          flow.State = "BuildProposal"
	StateRequestIssuerSignature flow.State = "RequestIssuerSignature"
	StateNotarize               flow.State = "Notarize"
)

var requesterTransitions = flow.Transitions{
	flow.StateInit:              {StateResolveParties},
	StateResolveParties:         {StateBuildProposal},
	StateBuildProposal:          {StateRequestIssuerSignature},
	StateRequestIssuerSignature: {StateNotarize},
	StateNotarize:               {flow.StateFinalized},
}

// Requester asks an issuer to issue cash to this node.
type Requester struct {
	args Args
}

// NewRequester creates requester logic, usable directly as a sub-flow.
func NewRequester(args Args) *Requester {
	return &Requester{args: args}
}

// NewFactory returns the factory for the requester flow. Blank issuer and notary
// names in the arguments are filled from defaultIssuer and defaultNotary.
func NewFactory(defaultIssuer, defaultNotary string) flow.Factory {
	return func(raw any) (flow.Logic, error) {
		args, err := flow.DecodeArgs[Args](raw)
		if err != nil {
			return nil, err
		}
		if args.Issuer == "" {
			args.Issuer = defaultIssuer
		}
		if args.Notary == "" {
			args.Notary = defaultNotary
		}
		if !args.Amount.IsPositive() {
			return nil, flow.Fail(flow.ReasonInvalid, "amount must be positive, got %s", args.Amount)
		}
		if _, err := args.ReferenceBytes(); err != nil {
			return nil, flow.Wrap(flow.ReasonInvalid, err)
		}
		return NewRequester(args), nil
	}
}

func (r *Requester) Name() string { return FlowName }

// Run implements flow.Logic.
func (r *Requester) Run(fc *flow.Context) (*ledger.SignedTransaction, error) {
	m := fc.NewMachine("issuance.requester", requesterTransitions)
	stx, err := r.run(fc, m)
	return stx, m.Settle(err)
}

func (r *Requester) run(fc *flow.Context, m *flow.Machine) (*ledger.SignedTransaction, error) {
	ctx := fc.Context()
	log := fc.Logger().With(zap.String("role", "Requester"), zap.String("counterparty", r.args.Issuer))

	var issuer, notary ledger.Party
	err := m.Step(StateResolveParties, func() error {
		var err error
		if issuer, err = fc.Resolve(r.args.Issuer); err != nil {
			return err
		}
		notary, err = fc.Resolve(r.args.Notary)
		return err
	})
	if err != nil {
		return nil, err
	}

	var stx *ledger.SignedTransaction
	err = m.Step(StateBuildProposal, func() error {
		if !r.args.Amount.IsPositive() {
			return flow.Fail(flow.ReasonInvalid, "amount must be positive, got %s", r.args.Amount)
		}
		ref, err := r.args.ReferenceBytes()
		if err != nil {
			return flow.Wrap(flow.ReasonInvalid, err)
		}
		b := ledger.NewTransactionBuilder(notary).
			AddOutputState(ledger.Cash(ledger.CashState{
				Amount:    r.args.Amount,
				Owner:     fc.Me(),
				Issuer:    issuer,
				Reference: ref,
			})).
			AddCommand(ledger.CashIssue, issuer, fc.Me())
		stx, err = fc.SignNew(b)
		return err
	})
	if err != nil {
		return nil, err
	}

	var session *flow.Session
	err = m.Step(StateRequestIssuerSignature, func() error {
		if issuer == fc.Me() {
			// Issuing to ourselves: our signature is the issuer's.
			return nil
		}
		session = fc.InitiateSession(Protocol, issuer)
		var reply countersignature
		if err := session.SendAndReceive(ctx, proposal{Transaction: stx}, &reply); err != nil {
			return issuerRejected(err)
		}
		if reply.Signature.By != issuer || !reply.Signature.Verify(stx.ID()) {
			return flow.Fail(flow.ReasonInvalid, "countersignature is not a valid signature by %s", issuer)
		}
		stx = stx.WithSignature(reply.Signature)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var notarized *ledger.SignedTransaction
	err = m.Step(StateNotarize, func() error {
		var err error
		notarized, err = fc.Finalize(stx)
		return err
	})
	if err != nil {
		return nil, err
	}

	if session != nil {
		if err := session.Send(ctx, finality{Transaction: notarized}); err != nil {
			// The transaction is final regardless; the issuer only loses its copy.
			log.Warn("failed to send finalized issuance to issuer", zap.Error(err))
		}
	}

	log.Info("cash issued",
		zap.String("amount", r.args.Amount.String()),
		zap.String("tx_id", notarized.ID().String()),
	)
	return notarized, nil
}

// issuerRejected reports a policy refusal by the issuer as IssuerRejected.
func issuerRejected(err error) error {
	var ce *flow.CounterpartyError
	if errors.As(err, &ce) && (ce.Reason == flow.ReasonRejected || ce.Reason == flow.ReasonInvalid) {
		return flow.Wrap(flow.ReasonIssuerRejected, err)
	}
	return err
}
