// Package service implements the trader and bank demo operations on top of the
// node's flow gateway.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/trader-flows/pkg/app/errors"
	"github.com/chainsafe/trader-flows/pkg/flow"
	"github.com/chainsafe/trader-flows/pkg/flows/issuance"
	"github.com/chainsafe/trader-flows/pkg/flows/trade"
	"github.com/chainsafe/trader-flows/pkg/identity"
	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/messaging"
	"github.com/chainsafe/trader-flows/pkg/trader"
	"github.com/chainsafe/trader-flows/pkg/vault"
)

// Gateway starts flows. Implemented by *flow.Manager.
type Gateway interface {
	Me() ledger.Party
	Invoke(name string, args any) (*flow.Handle, error)
}

// Directory is the network map as seen by the service.
type Directory interface {
	identity.Resolver
	Nodes() []identity.NodeInfo
}

// Holdings reports the node's vault contents.
type Holdings interface {
	Balances() vault.Balances
	Produced(ref ledger.StateRef) (ledger.StateAndRef, ledger.Party, error)
}

// Service defines the trader and bank operations
//
//go:generate mockery --name Service --output mocks --outpkg mocks --filename mock_service.go --with-expecter
type Service interface {
	CreateTestCash(ctx context.Context, req *trader.CreateCashRequest) (*trader.FlowResponse, error)
	SellCash(ctx context.Context, counterparty string, req *trader.TradeRequest) (*trader.FlowResponse, error)
	SellPaper(ctx context.Context, counterparty string, req *trader.TradeRequest) (*trader.FlowResponse, error)
	IssueAsset(ctx context.Context, req *trader.IssueAssetRequest) (*trader.FlowResponse, error)
	Balances(ctx context.Context) (*vault.Balances, error)
	Parties(ctx context.Context) ([]trader.PartyInfo, error)
}

// Config holds the trading defaults the service fills requests with.
type Config struct {
	IssuerName        string
	NotaryName        string
	Currency          string
	IssuanceReference string
	AwaitTimeout      time.Duration
}

type traderService struct {
	gateway   Gateway
	directory Directory
	holdings  Holdings
	cfg       Config
	logger    *zap.Logger
}

// NewService creates a new trader service
func NewService(gateway Gateway, directory Directory, holdings Holdings, cfg Config, logger *zap.Logger) Service {
	return &traderService{
		gateway:   gateway,
		directory: directory,
		holdings:  holdings,
		cfg:       cfg,
		logger:    logger,
	}
}

// CreateTestCash issues cash from the central bank to this node and waits for it.
func (s *traderService) CreateTestCash(ctx context.Context, req *trader.CreateCashRequest) (*trader.FlowResponse, error) {
	amount, err := s.amount(string(req.Amount), req.Currency)
	if err != nil {
		return nil, err
	}
	notaryName := req.Notary
	if notaryName == "" {
		notaryName = s.cfg.NotaryName
	}

	return s.run(ctx, issuance.FlowName, issuance.Args{
		Amount:    amount,
		Reference: s.cfg.IssuanceReference,
		Issuer:    s.cfg.IssuerName,
		Notary:    notaryName,
	}, "test cash issued", anyFailure)
}

// SellCash buys paper from counterparty, paying cash. The counterparty is resolved
// before anything starts.
func (s *traderService) SellCash(ctx context.Context, counterparty string, req *trader.TradeRequest) (*trader.FlowResponse, error) {
	price, err := s.tradeTerms(ctx, counterparty, req)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, trade.BuyFlow, trade.BuyArgs{
		Seller: counterparty,
		Price:  price,
		Paper:  req.Paper,
	}, "sale completed", anyFailure)
}

// SellPaper sells paper to counterparty for cash. A named paper must be one this
// node's vault has recorded. Double spends and an unreachable buyer or notary are
// reported apart from other failures.
func (s *traderService) SellPaper(ctx context.Context, counterparty string, req *trader.TradeRequest) (*trader.FlowResponse, error) {
	price, err := s.tradeTerms(ctx, counterparty, req)
	if err != nil {
		return nil, err
	}
	if req.Paper != nil {
		sar, _, err := s.holdings.Produced(*req.Paper)
		if errors.Is(err, vault.ErrStateNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, fmt.Sprintf("unknown paper %s", req.Paper))
		}
		if err != nil {
			return nil, apperrors.GeneralError(err)
		}
		if sar.State.Kind != ledger.PaperKind {
			return nil, apperrors.BadRequestError(nil, fmt.Sprintf("state %s is not commercial paper", req.Paper))
		}
	}
	return s.run(ctx, trade.SellFlow, trade.SellArgs{
		Buyer: counterparty,
		Price: price,
		Paper: req.Paper,
	}, "sale completed", classifiedFailure)
}

// IssueAsset requests an issuance from the named bank to this node.
func (s *traderService) IssueAsset(ctx context.Context, req *trader.IssueAssetRequest) (*trader.FlowResponse, error) {
	me := s.gateway.Me()
	if req.IssueToPartyName != me.Name {
		return nil, apperrors.BadRequestError(nil, fmt.Sprintf("can only issue to %s", me.Name))
	}
	amount, err := s.amount(string(req.Amount), req.Currency)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{req.IssuerBankName, req.NotaryName} {
		if _, err := s.directory.Resolve(ctx, name); err != nil {
			return nil, resolveError(name, err)
		}
	}

	return s.run(ctx, issuance.FlowName, issuance.Args{
		Amount:    amount,
		Reference: req.IssueToPartyRefAsString,
		Issuer:    req.IssuerBankName,
		Notary:    req.NotaryName,
	}, "asset issued", anyFailure)
}

// Balances returns the node's cash totals and paper holdings.
func (s *traderService) Balances(_ context.Context) (*vault.Balances, error) {
	b := s.holdings.Balances()
	return &b, nil
}

// Parties lists the network map.
func (s *traderService) Parties(_ context.Context) ([]trader.PartyInfo, error) {
	nodes := s.directory.Nodes()
	out := make([]trader.PartyInfo, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, trader.PartyInfo{
			Name:    n.Party.Name,
			Key:     n.Party.Key,
			Address: n.Address,
			Notary:  n.Notary,
		})
	}
	return out, nil
}

func (s *traderService) tradeTerms(ctx context.Context, counterparty string, req *trader.TradeRequest) (ledger.Amount, error) {
	party, err := s.directory.Resolve(ctx, counterparty)
	if err != nil {
		return ledger.Amount{}, resolveError(counterparty, err)
	}
	if party == s.gateway.Me() {
		return ledger.Amount{}, apperrors.BadRequestError(nil, "cannot trade with ourselves")
	}
	return s.amount(string(req.Amount), req.Currency)
}

func (s *traderService) amount(quantity, currency string) (ledger.Amount, error) {
	if currency == "" {
		currency = s.cfg.Currency
	}
	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return ledger.Amount{}, apperrors.BadRequestError(err, "invalid amount")
	}
	if !q.IsPositive() {
		return ledger.Amount{}, apperrors.BadRequestError(nil, "amount must be positive")
	}
	return ledger.NewAmount(q, currency), nil
}

// run starts a flow and blocks until it finishes or the await timeout passes.
func (s *traderService) run(ctx context.Context, name string, args any, message string, failed failureMapper) (*trader.FlowResponse, error) {
	h, err := s.gateway.Invoke(name, args)
	if err != nil {
		switch {
		case errors.Is(err, flow.ErrStopped):
			return nil, apperrors.GeneralError(err)
		case errors.Is(err, flow.ErrUnknownFlow):
			return nil, apperrors.NotSupportedError(err, fmt.Sprintf("%s is not available on this node", name))
		}
		return nil, apperrors.BadRequestError(err, err.Error())
	}

	if s.cfg.AwaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AwaitTimeout)
		defer cancel()
	}
	res, err := h.Await(ctx)
	if err != nil {
		return nil, apperrors.TimeoutError(err, fmt.Sprintf("flow %s still running, outcome unknown", h.ID()))
	}
	if !res.OK() {
		return nil, failed(name, res)
	}
	return &trader.FlowResponse{
		FlowID:        h.ID().String(),
		TransactionID: res.Transaction.ID().String(),
		Message:       message,
	}, nil
}

// failureMapper turns a failed flow result into a service error.
type failureMapper func(name string, res flow.Result) error

// anyFailure reports every failed flow as a bad request.
func anyFailure(name string, res flow.Result) error {
	return apperrors.BadRequestError(res.Err, fmt.Sprintf("%s failed: %s", name, res.Reason()))
}

// classifiedFailure gives double spends and unreachable peers their own categories.
func classifiedFailure(name string, res flow.Result) error {
	message := fmt.Sprintf("%s failed: %s", name, res.Reason())
	switch {
	case res.Reason() == flow.ReasonConflict:
		return apperrors.ConflictError(res.Err, message)
	case errors.Is(res.Err, messaging.ErrUnreachable):
		return apperrors.DependencyError(res.Err, message)
	}
	return anyFailure(name, res)
}

func resolveError(name string, err error) error {
	if errors.Is(err, identity.ErrNotFound) {
		return apperrors.BadRequestError(err, fmt.Sprintf("unknown party %q", name))
	}
	return apperrors.GeneralError(err)
}
