// Package trade implements the commercial paper for cash swap between a buyer and a
// seller node.
//
// Either side may start a trade. The seller makes sure the prospectus is stored,
// acquires a paper state and offers it. The buyer checks the offer, fetches the
// prospectus if it lacks it, self-funds any shortfall through one issuance and
// proposes the swap. The seller countersigns and notarizes.
package trade

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/trader-flows/pkg/flow"
	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// Settings configure both roles.
type Settings struct {
	// Notary is the notary name used for newly issued paper.
	Notary string
	// FaceValueQuantity of newly issued paper, in the price currency.
	FaceValueQuantity decimal.Decimal
	// Maturity of newly issued paper, from issuance.
	Maturity time.Duration
	// Issuer is the central bank the buyer self-funds from.
	Issuer string
	// IssuanceReference is the hex reference of self-funding issuances.
	IssuanceReference string
	// MaxPrice caps what the buyer pays. Zero means no cap.
	MaxPrice decimal.Decimal
}

// NewBuyFactory returns the factory for buyer initiated trades.
func NewBuyFactory(settings Settings) flow.Factory {
	return func(raw any) (flow.Logic, error) {
		args, err := flow.DecodeArgs[BuyArgs](raw)
		if err != nil {
			return nil, err
		}
		if args.Seller == "" {
			return nil, flow.Fail(flow.ReasonInvalid, "seller is required")
		}
		if !args.Price.IsPositive() {
			return nil, flow.Fail(flow.ReasonInvalid, "price must be positive, got %s", args.Price)
		}
		return &buyInitiator{args: args, settings: settings}, nil
	}
}

// NewSellFactory returns the factory for seller initiated trades.
func NewSellFactory(settings Settings) flow.Factory {
	return func(raw any) (flow.Logic, error) {
		args, err := flow.DecodeArgs[SellArgs](raw)
		if err != nil {
			return nil, err
		}
		if args.Buyer == "" {
			return nil, flow.Fail(flow.ReasonInvalid, "buyer is required")
		}
		if !args.Price.IsPositive() {
			return nil, flow.Fail(flow.ReasonInvalid, "price must be positive, got %s", args.Price)
		}
		return &sellInitiator{args: args, settings: settings}, nil
	}
}

// NewSellerResponder serves buyer initiated trades.
func NewSellerResponder(settings Settings) flow.ResponderFactory {
	return func(s *flow.Session) flow.Logic {
		return &sellerResponder{session: s, settings: settings}
	}
}

// NewBuyerResponder serves seller initiated trades.
func NewBuyerResponder(settings Settings) flow.ResponderFactory {
	return func(s *flow.Session) flow.Logic {
		return &buyerResponder{session: s, settings: settings}
	}
}

type buyInitiator struct {
	args     BuyArgs
	settings Settings
}

func (b *buyInitiator) Name() string { return BuyFlow }

func (b *buyInitiator) Run(fc *flow.Context) (*ledger.SignedTransaction, error) {
	m := fc.NewMachine("trade.buyer", buyerTransitions)
	stx, err := b.run(fc, m)
	return stx, m.Settle(err)
}

func (b *buyInitiator) run(fc *flow.Context, m *flow.Machine) (*ledger.SignedTransaction, error) {
	seller, err := fc.Resolve(b.args.Seller)
	if err != nil {
		return nil, err
	}
	if seller == fc.Me() {
		return nil, flow.Fail(flow.ReasonInvalid, "cannot trade with ourselves")
	}

	s := fc.InitiateSession(BuyProtocol, seller)
	if err := s.Send(fc.Context(), tradeRequest{Price: b.args.Price, Paper: b.args.Paper}); err != nil {
		return nil, err
	}
	price := b.args.Price
	return (&buyer{session: s, settings: b.settings, expectedPrice: &price}).run(fc, m)
}

type buyerResponder struct {
	session  *flow.Session
	settings Settings
}

func (b *buyerResponder) Name() string { return "trade.buyer" }

func (b *buyerResponder) Run(fc *flow.Context) (*ledger.SignedTransaction, error) {
	m := fc.NewMachine("trade.buyer", buyerTransitions)
	stx, err := (&buyer{session: b.session, settings: b.settings}).run(fc, m)
	return stx, m.Settle(err)
}

type sellInitiator struct {
	args     SellArgs
	settings Settings
}

func (s *sellInitiator) Name() string { return SellFlow }

func (s *sellInitiator) Run(fc *flow.Context) (*ledger.SignedTransaction, error) {
	m := fc.NewMachine("trade.seller", sellerTransitions)
	stx, err := s.run(fc, m)
	return stx, m.Settle(err)
}

func (s *sellInitiator) run(fc *flow.Context, m *flow.Machine) (*ledger.SignedTransaction, error) {
	buyerParty, err := fc.Resolve(s.args.Buyer)
	if err != nil {
		return nil, err
	}
	if buyerParty == fc.Me() {
		return nil, flow.Fail(flow.ReasonInvalid, "cannot trade with ourselves")
	}
	sl := &seller{
		settings: s.settings,
		price:    s.args.Price,
		paper:    s.args.Paper,
		open:     func() *flow.Session { return fc.InitiateSession(SellProtocol, buyerParty) },
	}
	return sl.run(fc, m)
}

type sellerResponder struct {
	session  *flow.Session
	settings Settings
}

func (s *sellerResponder) Name() string { return "trade.seller" }

func (s *sellerResponder) Run(fc *flow.Context) (*ledger.SignedTransaction, error) {
	m := fc.NewMachine("trade.seller", sellerTransitions)

	var req tradeRequest
	if err := s.session.Receive(fc.Context(), &req); err != nil {
		return nil, m.Settle(err)
	}
	if !req.Price.IsPositive() {
		return nil, m.Settle(flow.Fail(flow.ReasonRejected, "price must be positive, got %s", req.Price))
	}

	sl := &seller{
		settings: s.settings,
		price:    req.Price,
		paper:    req.Paper,
		open:     func() *flow.Session { return s.session },
	}
	stx, err := sl.run(fc, m)
	return stx, m.Settle(err)
}
