package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/chainsafe/trader-flows/internal/metrics"
	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// Transport sends envelopes to other nodes.
type Transport interface {
	Send(ctx context.Context, env *Envelope) error
}

// Handler receives envelopes addressed to this node.
type Handler interface {
	Deliver(ctx context.Context, env *Envelope) error
}

// InMemoryNetwork connects handlers in one process. Delivery is synchronous.
type InMemoryNetwork struct {
	mu       sync.RWMutex
	handlers map[ledger.Party]Handler
	down     map[ledger.Party]bool
}

// NewInMemoryNetwork creates an empty network.
func NewInMemoryNetwork() *InMemoryNetwork {
	return &InMemoryNetwork{
		handlers: make(map[ledger.Party]Handler),
		down:     make(map[ledger.Party]bool),
	}
}

// Join attaches the handler for party to the network.
func (n *InMemoryNetwork) Join(party ledger.Party, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[party] = h
}

// SetDown marks party unreachable, or reachable again.
func (n *InMemoryNetwork) SetDown(party ledger.Party, down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down[party] = down
}

// Send implements Transport.
func (n *InMemoryNetwork) Send(ctx context.Context, env *Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	n.mu.RLock()
	h, ok := n.handlers[env.Recipient]
	down := n.down[env.Recipient] || n.down[env.Sender]
	n.mu.RUnlock()

	if !ok || down {
		return fmt.Errorf("%w: %s", ErrUnreachable, env.Recipient)
	}

	metrics.MessagesTotal.WithLabelValues("out", string(env.Kind)).Inc()
	metrics.MessagesTotal.WithLabelValues("in", string(env.Kind)).Inc()
	return h.Deliver(ctx, env)
}
