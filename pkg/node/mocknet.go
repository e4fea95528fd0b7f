package node

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/creasty/defaults"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/attachment"
	"github.com/chainsafe/trader-flows/pkg/config"
	"github.com/chainsafe/trader-flows/pkg/identity"
	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/messaging"
	"github.com/chainsafe/trader-flows/pkg/notary"
)

// MockNodeOptions customise a node on a MockNetwork.
type MockNodeOptions struct {
	Notary bool
	Issuer bool
	// Attachments defaults to a fresh memory store.
	Attachments attachment.Store
	// Configure may adjust the defaulted config sections.
	Configure func(trader *config.TraderConfig, issuer *config.IssuerConfig, flows *config.FlowsConfig)
}

// MockNetwork runs several nodes in one process on an in-memory transport and a
// shared network map. Notaries are reached directly, without HTTP.
type MockNetwork struct {
	mu        sync.Mutex
	seed      []byte
	transport *messaging.InMemoryNetwork
	directory *identity.Directory
	nodes     map[string]*Node
	order     []*Node
	logger    *zap.Logger
}

// NewMockNetwork creates an empty network.
func NewMockNetwork(logger *zap.Logger) *MockNetwork {
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := sha256.Sum256([]byte("trader-flows mock network"))
	return &MockNetwork{
		seed:      seed[:],
		transport: messaging.NewInMemoryNetwork(),
		directory: identity.NewDirectory(),
		nodes:     make(map[string]*Node),
		logger:    logger,
	}
}

// CreateNode adds a node called name.
func (m *MockNetwork) CreateNode(name string, opts MockNodeOptions) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[name]; ok {
		return nil, fmt.Errorf("node %s already exists", name)
	}
	signer, err := NodeSigner(name, m.seed)
	if err != nil {
		return nil, err
	}
	m.directory.Register(identity.NodeInfo{
		Party:   signer.Party(),
		Address: "mem://" + name,
		Notary:  opts.Notary,
	})

	var cfg config.NodeConfig
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("default config: %w", err)
	}
	cfg.Issuer.Enabled = opts.Issuer
	if opts.Configure != nil {
		opts.Configure(&cfg.Trader, &cfg.Issuer, &cfg.Flows)
	}

	store := opts.Attachments
	if store == nil {
		store = attachment.NewMemoryStore()
	}
	var uniqueness notary.UniquenessProvider
	if opts.Notary {
		uniqueness = notary.NewMemoryUniqueness()
	}

	n, err := New(Params{
		Signer:      signer,
		Directory:   m.directory,
		Attachments: store,
		Transport:   m.transport,
		Uniqueness:  uniqueness,
		Issuer:      cfg.Issuer,
		Trader:      cfg.Trader,
		Flows:       cfg.Flows,
		Logger:      m.logger.With(zap.String("node", name)),
	})
	if err != nil {
		return nil, err
	}
	m.transport.Join(n.Party, n.Flows)

	for _, other := range m.order {
		if other.Notary != nil {
			n.notaries.Register(other.Party, other.Notary)
		}
		if n.Notary != nil {
			other.notaries.Register(n.Party, n.Notary)
		}
	}
	m.nodes[name] = n
	m.order = append(m.order, n)
	return n, nil
}

// Node returns the node called name, or nil.
func (m *MockNetwork) Node(name string) *Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nodes[name]
}

// Directory returns the shared network map.
func (m *MockNetwork) Directory() *identity.Directory { return m.directory }

// SetDown makes a node unreachable, or reachable again.
func (m *MockNetwork) SetDown(p ledger.Party, down bool) {
	m.transport.SetDown(p, down)
}

// Stop stops every node.
func (m *MockNetwork) Stop() {
	m.mu.Lock()
	nodes := append([]*Node(nil), m.order...)
	m.mu.Unlock()
	for _, n := range nodes {
		n.Stop()
	}
}
