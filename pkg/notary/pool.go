package notary

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// AddressBook resolves the base URL of a party's node.
type AddressBook interface {
	AddressOf(p ledger.Party) (string, error)
}

// Pool routes a transaction to the notary it names: a local instance when one is
// registered, otherwise an HTTP client for the notary's node.
type Pool struct {
	mu         sync.RWMutex
	services   map[ledger.Party]Service
	addresses  AddressBook
	httpClient *http.Client
}

// NewPool creates a pool. addresses may be nil when every notary is local.
func NewPool(addresses AddressBook, httpClient *http.Client) *Pool {
	return &Pool{
		services:   make(map[ledger.Party]Service),
		addresses:  addresses,
		httpClient: httpClient,
	}
}

// Register makes svc the handler for transactions naming party as notary.
func (p *Pool) Register(party ledger.Party, svc Service) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.services[party] = svc
}

// Notarize implements Service.
func (p *Pool) Notarize(ctx context.Context, stx *ledger.SignedTransaction) (*ledger.SignedTransaction, error) {
	if stx == nil || stx.Tx == nil {
		return nil, fmt.Errorf("%w: empty transaction", ErrInvalid)
	}
	svc, err := p.serviceFor(stx.Tx.Notary)
	if err != nil {
		return nil, err
	}
	return svc.Notarize(ctx, stx)
}

func (p *Pool) serviceFor(party ledger.Party) (Service, error) {
	p.mu.RLock()
	svc, ok := p.services[party]
	p.mu.RUnlock()
	if ok {
		return svc, nil
	}
	if p.addresses == nil {
		return nil, fmt.Errorf("%w: unknown notary %s", ErrInvalid, party)
	}

	addr, err := p.addresses.AddressOf(party)
	if err != nil {
		return nil, fmt.Errorf("%w: notary %s: %w", ErrInvalid, party, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if svc, ok := p.services[party]; ok {
		return svc, nil
	}
	svc = NewClient(addr, p.httpClient)
	p.services[party] = svc
	return svc, nil
}
