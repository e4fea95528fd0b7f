package flow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/internal/metrics"
	"github.com/chainsafe/trader-flows/pkg/attachment"
	"github.com/chainsafe/trader-flows/pkg/identity"
	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/notary"
	"github.com/chainsafe/trader-flows/pkg/vault"
)

// NetworkMap answers questions about network membership beyond name resolution.
type NetworkMap interface {
	IsNotary(p ledger.Party) bool
}

// ServiceHub is what a node offers its flows.
type ServiceHub struct {
	Identity    identity.Resolver
	Network     NetworkMap
	Attachments attachment.Store
	Notary      notary.Service
	Vault       *vault.Vault
	Signer      ledger.Signer
}

// Context is handed to a running flow. It is used by the flow's goroutine only.
type Context struct {
	ctx      context.Context
	m        *Manager
	runID    uuid.UUID
	flow     string
	logger   *zap.Logger
	sessions []*Session
}

// Context returns the context flow I/O should use.
func (c *Context) Context() context.Context { return c.ctx }

// RunID identifies the top level invocation this flow belongs to.
func (c *Context) RunID() uuid.UUID { return c.runID }

// Me returns the node's party.
func (c *Context) Me() ledger.Party { return c.m.me }

// Services returns the node services.
func (c *Context) Services() *ServiceHub { return c.m.services }

// Logger returns a logger carrying the flow fields.
func (c *Context) Logger() *zap.Logger { return c.logger }

// NewMachine creates a state machine logging through this flow.
func (c *Context) NewMachine(name string, table Transitions) *Machine {
	return NewMachine(name, table, c.logger)
}

// InitiateSession opens a session for protocol with counterparty. Nothing is sent
// until the first Send.
func (c *Context) InitiateSession(protocol string, counterparty ledger.Party) *Session {
	s := newSession(uuid.New(), protocol, c.m.me, counterparty, false, c.m)
	c.m.addSession(s)
	c.sessions = append(c.sessions, s)
	return s
}

// SubFlow runs logic to completion on the calling goroutine and returns its result.
// Sessions opened by the sub-flow are closed when it returns, and on failure the
// sub-flow's counterparties are told why.
func (c *Context) SubFlow(logic Logic) (*ledger.SignedTransaction, error) {
	child := &Context{
		ctx:    c.ctx,
		m:      c.m,
		runID:  c.runID,
		flow:   logic.Name(),
		logger: c.m.logger.With(zap.String("flow", logic.Name()), zap.String("flow_id", c.runID.String()), zap.String("parent", c.flow)),
	}
	metrics.FlowsStarted.WithLabelValues(logic.Name(), "subflow").Inc()

	stx, err := logic.Run(child)
	child.finish(err)
	if err != nil {
		metrics.FlowsCompleted.WithLabelValues(logic.Name(), string(ReasonOf(err))).Inc()
		return nil, err
	}
	metrics.FlowsCompleted.WithLabelValues(logic.Name(), "finalized").Inc()
	return stx, nil
}

// Resolve looks a party up by name. A miss is UnknownCounterparty.
func (c *Context) Resolve(name string) (ledger.Party, error) {
	p, err := c.m.services.Identity.Resolve(c.ctx, name)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ledger.Party{}, Wrap(ReasonUnknownCounterparty, err)
		}
		return ledger.Party{}, Wrap(ReasonInternal, err)
	}
	return p, nil
}

// Sign adds this node's signature to stx.
func (c *Context) Sign(stx *ledger.SignedTransaction) (*ledger.SignedTransaction, error) {
	sig, err := c.m.services.Signer.Sign(stx.ID())
	if err != nil {
		return nil, Wrap(ReasonInternal, err)
	}
	return stx.WithSignature(sig), nil
}

// SignNew seals a builder and signs it as this node.
func (c *Context) SignNew(b *ledger.TransactionBuilder) (*ledger.SignedTransaction, error) {
	wtx, err := b.ToWireTransaction()
	if err != nil {
		return nil, Wrap(ReasonInvalid, err)
	}
	stx, err := ledger.NewSignedTransaction(wtx, c.m.services.Signer)
	if err != nil {
		return nil, Wrap(ReasonInternal, err)
	}
	return stx, nil
}

// Finalize notarizes a fully signed transaction and records it in the vault.
// Notary conflicts are final and never retried.
func (c *Context) Finalize(stx *ledger.SignedTransaction) (*ledger.SignedTransaction, error) {
	notarized, err := c.m.services.Notary.Notarize(c.ctx, stx)
	if err != nil {
		reason := ReasonOf(err)
		c.logger.Warn("notarization failed",
			zap.String("tx_id", stx.ID().String()),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		return nil, Wrap(reason, err)
	}
	if err := c.Record(notarized); err != nil {
		return nil, err
	}
	c.logger.Info("transaction finalized", zap.String("tx_id", notarized.ID().String()))
	return notarized, nil
}

// Record stores a notarized transaction in the vault.
func (c *Context) Record(stx *ledger.SignedTransaction) error {
	if err := c.m.services.Vault.Record(stx); err != nil {
		if errors.Is(err, vault.ErrNotNotarized) {
			return Wrap(ReasonInvalid, err)
		}
		return Wrap(ReasonInternal, err)
	}
	return nil
}

// finish closes the flow's sessions, telling counterparties about a failure.
func (c *Context) finish(err error) {
	for _, s := range c.sessions {
		if err != nil {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), c.m.notifyTimeout)
			_ = s.Reject(ctx, ReasonOf(err), err.Error())
			cancel()
		}
		s.close()
		c.m.removeSession(s.id)
	}
	c.sessions = nil
}
