package trade

import (
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/attachment"
	"github.com/chainsafe/trader-flows/pkg/flow"
	"github.com/chainsafe/trader-flows/pkg/flows/issuance"
	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/vault"
)

const (
	StateReceiveTradeInfo flow.State = "ReceiveTradeInfo"
	StateSelfFund         flow.State = "SelfFund"
)

var buyerTransitions = flow.Transitions{
	flow.StateInit:         {StateReceiveTradeInfo},
	StateReceiveTradeInfo:  {StateSelfFund},
	StateSelfFund:          {StateProposeSwap},
	StateProposeSwap:       {StateCollectSignatures},
	StateCollectSignatures: {StateNotarize},
	StateNotarize:          {flow.StateFinalized},
}

// buyer runs the buying side over an established session.
type buyer struct {
	session  *flow.Session
	settings Settings
	// expectedPrice is the price the buyer asked for, when it initiated.
	expectedPrice *ledger.Amount
}

func (b *buyer) run(fc *flow.Context, m *flow.Machine) (*ledger.SignedTransaction, error) {
	ctx := fc.Context()
	seller := b.session.Counterparty()
	log := fc.Logger().With(zap.String("role", "Buyer"), zap.String("counterparty", seller.Name))

	var (
		offer  tradeOffer
		notary ledger.Party
	)
	err := m.Step(StateReceiveTradeInfo, func() error {
		if err := b.session.Receive(ctx, &offer); err != nil {
			return err
		}
		var err error
		if notary, err = b.checkOffer(offer, seller); err != nil {
			return err
		}
		if offer.Attachment != nil {
			return b.fetchAttachment(fc, *offer.Attachment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var cash []ledger.StateAndRef
	err = m.Step(StateSelfFund, func() error {
		var err error
		cash, err = b.fund(fc, offer.Price, notary)
		return err
	})
	if err != nil {
		return nil, err
	}

	var proposed *ledger.SignedTransaction
	err = m.Step(StateProposeSwap, func() error {
		builder := ledger.NewTransactionBuilder(notary).AddInputState(offer.Asset)
		for _, c := range cash {
			builder.AddInputState(c)
		}
		moved := *offer.Asset.State.Paper
		moved.Owner = fc.Me()
		builder.AddOutputState(ledger.Paper(moved))
		for _, out := range payment(cash, offer.Price, fc.Me(), seller) {
			builder.AddOutputState(out)
		}
		if offer.Attachment != nil {
			builder.AddAttachment(*offer.Attachment)
		}
		builder.AddCommand(ledger.CashMove, fc.Me()).
			AddCommand(ledger.PaperMove, seller)

		var err error
		proposed, err = fc.SignNew(builder)
		return err
	})
	if err != nil {
		return nil, err
	}

	var result swapResult
	err = m.Step(StateCollectSignatures, func() error {
		deps, err := fc.Services().Vault.Dependencies(cash)
		if err != nil {
			return flow.Wrap(flow.ReasonInternal, err)
		}
		msg := buyerMessage{Proposal: &swapProposal{Transaction: proposed, Dependencies: deps}}
		return b.session.SendAndReceive(ctx, msg, &result)
	})
	if err != nil {
		return nil, err
	}

	err = m.Step(StateNotarize, func() error {
		final := result.Transaction
		if final == nil || final.Tx == nil || final.ID() != proposed.ID() {
			return flow.Fail(flow.ReasonInvalid, "seller returned a different transaction")
		}
		if !final.IsNotarized() {
			return flow.Fail(flow.ReasonInvalid, "seller returned an unnotarized transaction")
		}
		if err := final.VerifySignatures(); err != nil {
			return flow.Wrap(flow.ReasonInvalid, err)
		}
		return fc.Record(final)
	})
	if err != nil {
		return nil, err
	}

	log.Info("paper bought",
		zap.String("price", offer.Price.String()),
		zap.String("paper", offer.Asset.Ref.String()),
		zap.String("tx_id", result.Transaction.ID().String()),
	)
	return result.Transaction, nil
}

// checkOffer validates the offered asset and price and returns the notary the paper
// is bound to.
func (b *buyer) checkOffer(offer tradeOffer, seller ledger.Party) (ledger.Party, error) {
	if !offer.Price.IsPositive() {
		return ledger.Party{}, flow.Fail(flow.ReasonRejected, "price must be positive, got %s", offer.Price)
	}
	if b.expectedPrice != nil && !offer.Price.Equal(*b.expectedPrice) {
		return ledger.Party{}, flow.Fail(flow.ReasonRejected, "offered price %s, asked for %s", offer.Price, *b.expectedPrice)
	}
	if b.settings.MaxPrice.IsPositive() && offer.Price.Quantity.GreaterThan(b.settings.MaxPrice) {
		return ledger.Party{}, flow.Fail(flow.ReasonRejected, "price %s exceeds our limit of %s", offer.Price, b.settings.MaxPrice)
	}

	asset := offer.Asset
	if asset.State.Kind != ledger.PaperKind || asset.State.Paper == nil {
		return ledger.Party{}, flow.Fail(flow.ReasonRejected, "offered state %s is not commercial paper", asset.Ref)
	}
	if asset.State.Paper.Owner != seller {
		return ledger.Party{}, flow.Fail(flow.ReasonRejected, "offered paper is owned by %s, not %s", asset.State.Paper.Owner, seller)
	}

	var producer *ledger.SignedTransaction
	for _, d := range offer.Dependencies {
		if d != nil && d.Tx != nil && d.ID() == asset.Ref.TxID {
			producer = d
			break
		}
	}
	if producer == nil {
		return ledger.Party{}, flow.Fail(flow.ReasonInvalid, "offer lacks the transaction producing %s", asset.Ref)
	}
	// Provenance is checked as if spending the asset, against its own notary.
	probe := &ledger.WireTransaction{Inputs: []ledger.StateAndRef{asset}, Notary: producer.Tx.Notary}
	if err := ledger.ResolveInputs(probe, offer.Dependencies); err != nil {
		return ledger.Party{}, flow.Wrap(flow.ReasonInvalid, err)
	}
	if err := producer.VerifySignatures(); err != nil {
		return ledger.Party{}, flow.Wrap(flow.ReasonInvalid, err)
	}
	return producer.Tx.Notary, nil
}

// fetchAttachment asks the seller for a document we do not hold yet.
func (b *buyer) fetchAttachment(fc *flow.Context, id ledger.SecureHash) error {
	ctx := fc.Context()
	store := fc.Services().Attachments
	ok, err := store.Exists(ctx, id)
	if err != nil {
		return flow.Wrap(flow.ReasonInternal, err)
	}
	if ok {
		return nil
	}

	var data attachmentData
	if err := b.session.SendAndReceive(ctx, buyerMessage{FetchAttachment: &id}, &data); err != nil {
		return err
	}
	if err := attachment.ImportVerified(ctx, store, id, data.Data); err != nil {
		if errors.Is(err, attachment.ErrCorrupt) {
			return flow.Wrap(flow.ReasonAttachmentCorrupt, err)
		}
		return flow.Wrap(flow.ReasonInternal, err)
	}
	fc.Logger().Info("attachment fetched from seller", zap.String("attachment", id.String()))
	return nil
}

// fund selects cash covering price at notary, self-issuing the shortfall once.
func (b *buyer) fund(fc *flow.Context, price ledger.Amount, notary ledger.Party) ([]ledger.StateAndRef, error) {
	v := fc.Services().Vault
	cash, available, err := v.SelectCash(price, notary)
	if err == nil {
		return cash, nil
	}
	if !errors.Is(err, vault.ErrInsufficientFunds) {
		return nil, flow.Wrap(flow.ReasonInternal, err)
	}

	shortfall, err := price.Sub(available)
	if err != nil {
		return nil, flow.Wrap(flow.ReasonInternal, err)
	}
	fc.Logger().Info("self-funding shortfall",
		zap.String("shortfall", shortfall.String()),
		zap.String("issuer", b.settings.Issuer),
	)
	_, err = fc.SubFlow(issuance.NewRequester(issuance.Args{
		Amount:    shortfall,
		Reference: b.settings.IssuanceReference,
		Issuer:    b.settings.Issuer,
		Notary:    notary.Name,
	}))
	if err != nil {
		return nil, err
	}

	cash, _, err = v.SelectCash(price, notary)
	if err != nil {
		// Someone else spent our cash in between; the notary would refuse anyway.
		return nil, flow.Wrap(flow.ReasonRejected, err)
	}
	return cash, nil
}

// payment splits the selected cash into the price for the seller and change for us,
// keeping each issuer's cash separate.
func payment(cash []ledger.StateAndRef, price ledger.Amount, me, seller ledger.Party) []ledger.State {
	type group struct {
		issuer    ledger.Party
		reference []byte
		total     ledger.Amount
	}
	byIssuer := make(map[ledger.Party]*group)
	var order []*group
	for _, c := range cash {
		cs := c.State.Cash
		g, ok := byIssuer[cs.Issuer]
		if !ok {
			g = &group{issuer: cs.Issuer, reference: cs.Reference, total: ledger.Zero(cs.Amount.Currency)}
			byIssuer[cs.Issuer] = g
			order = append(order, g)
		}
		g.total, _ = g.total.Add(cs.Amount)
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].issuer.Name < order[j].issuer.Name })

	remaining := price
	var out []ledger.State
	for _, g := range order {
		pay := g.total
		if pay.Cmp(remaining) > 0 {
			pay = remaining
		}
		change, _ := g.total.Sub(pay)
		remaining, _ = remaining.Sub(pay)

		if pay.IsPositive() {
			out = append(out, ledger.Cash(ledger.CashState{Amount: pay, Owner: seller, Issuer: g.issuer, Reference: g.reference}))
		}
		if change.IsPositive() {
			out = append(out, ledger.Cash(ledger.CashState{Amount: change, Owner: me, Issuer: g.issuer, Reference: g.reference}))
		}
	}
	return out
}
