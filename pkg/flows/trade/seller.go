package trade

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/attachment"
	"github.com/chainsafe/trader-flows/pkg/attachment/prospectus"
	"github.com/chainsafe/trader-flows/pkg/flow"
	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/vault"
)

const (
	StateVerifyAttachment  flow.State = "VerifyAttachment"
	StateAcquirePaper      flow.State = "AcquirePaper"
	StateProposeSwap       flow.State = "ProposeSwap"
	StateCollectSignatures flow.State = "CollectSignatures"
	StateNotarize          flow.State = "Notarize"
)

var sellerTransitions = flow.Transitions{
	flow.StateInit:         {StateVerifyAttachment},
	StateVerifyAttachment:  {StateAcquirePaper},
	StateAcquirePaper:      {StateProposeSwap},
	StateProposeSwap:       {StateCollectSignatures},
	StateCollectSignatures: {StateNotarize},
	StateNotarize:          {flow.StateFinalized},
}

// seller runs the selling side once the buyer and price are known. open returns the
// session to the buyer; for seller initiated trades it is opened lazily so nothing is
// sent before the paper exists.
type seller struct {
	settings Settings
	price    ledger.Amount
	paper    *ledger.StateRef
	open     func() *flow.Session
}

func (s *seller) run(fc *flow.Context, m *flow.Machine) (*ledger.SignedTransaction, error) {
	ctx := fc.Context()
	svc := fc.Services()

	err := m.Step(StateVerifyAttachment, func() error {
		if err := attachment.EnsurePresent(ctx, svc.Attachments, prospectus.Digest, prospectus.Document()); err != nil {
			if errors.Is(err, attachment.ErrCorrupt) {
				return flow.Wrap(flow.ReasonAttachmentCorrupt, err)
			}
			return flow.Wrap(flow.ReasonInternal, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		asset     ledger.StateAndRef
		notary    ledger.Party
		assetDeps []*ledger.SignedTransaction
	)
	err = m.Step(StateAcquirePaper, func() error {
		var err error
		if s.paper != nil {
			asset, notary, err = s.existingPaper(fc, *s.paper)
		} else {
			asset, notary, err = s.issuePaper(fc)
		}
		if err != nil {
			return err
		}
		assetDeps, err = svc.Vault.Dependencies([]ledger.StateAndRef{asset})
		return flow.Wrap(flow.ReasonInternal, err)
	})
	if err != nil {
		return nil, err
	}

	session := s.open()
	log := fc.Logger().With(zap.String("role", "Seller"), zap.String("counterparty", session.Counterparty().Name))

	err = m.Step(StateProposeSwap, func() error {
		id := prospectus.Digest
		return session.Send(ctx, tradeOffer{
			Asset:        asset,
			Price:        s.price,
			Attachment:   &id,
			Dependencies: assetDeps,
		})
	})
	if err != nil {
		return nil, err
	}

	var stx *ledger.SignedTransaction
	err = m.Step(StateCollectSignatures, func() error {
		proposal, err := s.awaitProposal(fc, session)
		if err != nil {
			return err
		}
		if err := s.checkProposal(fc, proposal, asset, notary, session.Counterparty()); err != nil {
			return err
		}
		stx, err = fc.Sign(proposal.Transaction)
		return err
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

	if err := session.Send(ctx, swapResult{Transaction: notarized}); err != nil {
		// The swap is final once notarized; only the buyer's copy is lost.
		log.Warn("failed to send notarized swap to buyer",
			zap.String("tx_id", notarized.ID().String()),
			zap.Error(err),
		)
	}

	log.Info("paper sold",
		zap.String("price", s.price.String()),
		zap.String("paper", asset.Ref.String()),
		zap.String("tx_id", notarized.ID().String()),
	)
	return notarized, nil
}

// existingPaper looks up paper we hold or held. Paper already spent is still offered:
// the notary, not the vault, decides who gets it, and a late trade fails as a conflict.
func (s *seller) existingPaper(fc *flow.Context, ref ledger.StateRef) (ledger.StateAndRef, ledger.Party, error) {
	v := fc.Services().Vault
	sar, notary, err := v.State(ref)
	if errors.Is(err, vault.ErrStateNotFound) {
		sar, notary, err = v.Produced(ref)
	}
	if err != nil {
		if errors.Is(err, vault.ErrStateNotFound) {
			return ledger.StateAndRef{}, ledger.Party{}, flow.Wrap(flow.ReasonRejected, err)
		}
		return ledger.StateAndRef{}, ledger.Party{}, flow.Wrap(flow.ReasonInternal, err)
	}
	if sar.State.Kind != ledger.PaperKind || sar.State.Owner() != fc.Me() {
		return ledger.StateAndRef{}, ledger.Party{}, flow.Fail(flow.ReasonRejected, "state %s is not our commercial paper", ref)
	}
	return sar, notary, nil
}

// issuePaper self-issues a fresh paper with the prospectus attached.
func (s *seller) issuePaper(fc *flow.Context) (ledger.StateAndRef, ledger.Party, error) {
	notary, err := fc.Resolve(s.settings.Notary)
	if err != nil {
		return ledger.StateAndRef{}, ledger.Party{}, err
	}
	ref := uuid.New()
	paper := ledger.PaperState{
		Issuer:    fc.Me(),
		Reference: ref[:],
		Owner:     fc.Me(),
		FaceValue: ledger.NewAmount(s.settings.FaceValueQuantity, s.price.Currency),
		Maturity:  time.Now().UTC().Add(s.settings.Maturity).Truncate(time.Second),
	}
	b := ledger.NewTransactionBuilder(notary).
		AddOutputState(ledger.Paper(paper)).
		AddAttachment(prospectus.Digest).
		AddCommand(ledger.PaperIssue, fc.Me())
	stx, err := fc.SignNew(b)
	if err != nil {
		return ledger.StateAndRef{}, ledger.Party{}, err
	}
	notarized, err := fc.Finalize(stx)
	if err != nil {
		return ledger.StateAndRef{}, ledger.Party{}, err
	}
	fc.Logger().Info("paper issued",
		zap.String("face_value", paper.FaceValue.String()),
		zap.Time("maturity", paper.Maturity),
		zap.String("tx_id", notarized.ID().String()),
	)
	return notarized.Tx.OutRef(0), notary, nil
}

// awaitProposal serves attachment fetches until the buyer sends its proposal.
func (s *seller) awaitProposal(fc *flow.Context, session *flow.Session) (*swapProposal, error) {
	ctx := fc.Context()
	for {
		var msg buyerMessage
		if err := session.Receive(ctx, &msg); err != nil {
			return nil, err
		}
		switch {
		case msg.Proposal != nil:
			return msg.Proposal, nil
		case msg.FetchAttachment != nil:
			id := *msg.FetchAttachment
			data, err := fc.Services().Attachments.Fetch(ctx, id)
			if err != nil {
				if errors.Is(err, attachment.ErrNotFound) {
					return nil, flow.Wrap(flow.ReasonRejected, err)
				}
				return nil, flow.Wrap(flow.ReasonInternal, err)
			}
			if err := session.Send(ctx, attachmentData{ID: id, Data: data}); err != nil {
				return nil, err
			}
		default:
			return nil, flow.Fail(flow.ReasonInvalid, "empty message from buyer")
		}
	}
}

// checkProposal verifies the buyer's swap moves exactly our asset to the buyer, pays
// at least the price to us and touches no other state of ours.
func (s *seller) checkProposal(fc *flow.Context, p *swapProposal, asset ledger.StateAndRef, notary, buyer ledger.Party) error {
	if p.Transaction == nil || p.Transaction.Tx == nil {
		return flow.Fail(flow.ReasonInvalid, "proposal carries no transaction")
	}
	wtx := p.Transaction.Tx
	me := fc.Me()

	if wtx.Notary != notary {
		return flow.Fail(flow.ReasonInvalid, "swap uses notary %s, paper is bound to %s", wtx.Notary, notary)
	}

	foundAsset := false
	for _, in := range wtx.Inputs {
		if in.Ref == asset.Ref {
			foundAsset = true
			continue
		}
		if in.State.Owner() == me {
			return flow.Fail(flow.ReasonRejected, "swap spends our state %s", in.Ref)
		}
	}
	if !foundAsset {
		return flow.Fail(flow.ReasonRejected, "swap does not consume the offered paper %s", asset.Ref)
	}

	paid := ledger.Zero(s.price.Currency)
	paperToBuyer := false
	for _, out := range wtx.Outputs {
		switch out.Kind {
		case ledger.CashKind:
			if out.Cash.Owner == me && out.Cash.Amount.Currency == paid.Currency {
				paid, _ = paid.Add(out.Cash.Amount)
			}
		case ledger.PaperKind:
			if out.Paper.Owner == buyer && samePaper(out.Paper, asset.State.Paper) {
				paperToBuyer = true
			}
		}
	}
	if !paperToBuyer {
		return flow.Fail(flow.ReasonRejected, "swap does not move the paper to %s", buyer)
	}
	if paid.Cmp(s.price) < 0 {
		return flow.Fail(flow.ReasonRejected, "swap pays %s, price is %s", paid, s.price)
	}

	assetDeps, err := fc.Services().Vault.Dependencies([]ledger.StateAndRef{asset})
	if err != nil {
		return flow.Wrap(flow.ReasonInternal, err)
	}
	if err := ledger.ResolveInputs(wtx, append(assetDeps, p.Dependencies...)); err != nil {
		return flow.Wrap(flow.ReasonInvalid, err)
	}
	if err := ledger.Verify(wtx); err != nil {
		return flow.Wrap(flow.ReasonInvalid, err)
	}
	if err := p.Transaction.VerifySignatures(me); err != nil {
		return flow.Wrap(flow.ReasonInvalid, err)
	}
	return nil
}

func samePaper(a, b *ledger.PaperState) bool {
	return a.Issuer == b.Issuer &&
		string(a.Reference) == string(b.Reference) &&
		a.FaceValue.Equal(b.FaceValue) &&
		a.Maturity.Equal(b.Maturity)
}
