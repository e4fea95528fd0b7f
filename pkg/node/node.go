// Package node assembles one trader network node: identity, vault, attachment store,
// notary access, flow gateway with the issuance and trade flows, and the trader API.
package node

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/attachment"
	"github.com/chainsafe/trader-flows/pkg/config"
	"github.com/chainsafe/trader-flows/pkg/flow"
	"github.com/chainsafe/trader-flows/pkg/flows/issuance"
	"github.com/chainsafe/trader-flows/pkg/flows/trade"
	"github.com/chainsafe/trader-flows/pkg/identity"
	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/messaging"
	"github.com/chainsafe/trader-flows/pkg/notary"
	"github.com/chainsafe/trader-flows/pkg/trader/service"
	"github.com/chainsafe/trader-flows/pkg/vault"
)

// Params are the collaborators a node is built from.
type Params struct {
	Signer      ledger.Signer
	Directory   *identity.Directory
	Attachments attachment.Store
	Transport   messaging.Transport
	// Uniqueness makes this node a notary when set.
	Uniqueness notary.UniquenessProvider
	// HTTPClient reaches remote notaries.
	HTTPClient *http.Client

	Issuer config.IssuerConfig
	Trader config.TraderConfig
	Flows  config.FlowsConfig
	Logger *zap.Logger
}

// Node is a running node.
type Node struct {
	Party       ledger.Party
	Directory   *identity.Directory
	Vault       *vault.Vault
	Attachments attachment.Store
	Flows       *flow.Manager
	Trader      service.Service
	// Notary is nil unless the node runs a notary.
	Notary *notary.SimpleNotary

	notaries *notary.Pool
	logger   *zap.Logger
}

// New wires a node. Flows are registered and ready to run on return.
func New(p Params) (*Node, error) {
	if p.Signer == nil || p.Directory == nil || p.Attachments == nil || p.Transport == nil {
		return nil, fmt.Errorf("signer, directory, attachments and transport are required")
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	me := p.Signer.Party()
	if _, err := p.Directory.Lookup(me); err != nil {
		return nil, fmt.Errorf("node %s is not in the network map: %w", me.Name, err)
	}

	settings, err := TradeSettings(p.Trader)
	if err != nil {
		return nil, err
	}
	policy, err := IssuerPolicy(p.Issuer)
	if err != nil {
		return nil, err
	}

	n := &Node{
		Party:       me,
		Directory:   p.Directory,
		Vault:       vault.New(me, p.Logger),
		Attachments: p.Attachments,
		notaries:    notary.NewPool(p.Directory, p.HTTPClient),
		logger:      p.Logger,
	}
	if p.Uniqueness != nil {
		n.Notary = notary.NewSimpleNotary(p.Signer, p.Uniqueness, p.Logger)
		n.notaries.Register(me, n.Notary)
	}

	hub := &flow.ServiceHub{
		Identity:    p.Directory,
		Network:     p.Directory,
		Attachments: p.Attachments,
		Notary:      n.notaries,
		Vault:       n.Vault,
		Signer:      p.Signer,
	}
	n.Flows = flow.NewManager(me, hub, p.Transport,
		flow.WithLogger(p.Logger),
		flow.WithResultTTL(p.Flows.ResultTTL),
		flow.WithSessionBuffer(p.Flows.SessionBuffer),
		flow.WithReceiveTimeout(p.Flows.ReceiveTimeout),
	)

	n.Flows.RegisterInitiating(issuance.FlowName, issuance.NewFactory(p.Trader.IssuerName, p.Trader.NotaryName))
	n.Flows.RegisterInitiating(trade.BuyFlow, trade.NewBuyFactory(settings))
	n.Flows.RegisterInitiating(trade.SellFlow, trade.NewSellFactory(settings))
	n.Flows.RegisterResponder(trade.BuyProtocol, trade.NewSellerResponder(settings))
	n.Flows.RegisterResponder(trade.SellProtocol, trade.NewBuyerResponder(settings))
	if p.Issuer.Enabled {
		n.Flows.RegisterResponder(issuance.Protocol, issuance.NewResponder(policy))
	}

	n.Trader = service.NewLog(service.NewService(n.Flows, p.Directory, n.Vault, service.Config{
		IssuerName:        p.Trader.IssuerName,
		NotaryName:        p.Trader.NotaryName,
		Currency:          p.Trader.Currency,
		IssuanceReference: p.Trader.IssuanceReference,
		AwaitTimeout:      p.Trader.AwaitTimeout,
	}, p.Logger), p.Logger)

	p.Logger.Info("Node assembled",
		zap.String("party", me.String()),
		zap.Bool("notary", n.Notary != nil),
		zap.Bool("issuer", p.Issuer.Enabled),
		zap.Strings("flows", n.Flows.Flows()),
	)
	return n, nil
}

// RegisterRoutes mounts the p2p endpoint, the notary endpoint when this node is a
// notary, and the trader API.
func (n *Node) RegisterRoutes(r chi.Router) {
	messaging.RegisterRoutes(r, n.Party, n.Directory, n.Flows, n.logger)
	if n.Notary != nil {
		notary.RegisterRoutes(r, n.Notary, n.logger)
	}
	service.RegisterRoutes(r, n.Trader, n.logger)
}

// Stop stops the flow manager, failing running flows.
func (n *Node) Stop() {
	n.Flows.Stop()
}
