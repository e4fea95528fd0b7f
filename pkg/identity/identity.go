// Package identity resolves human readable party names to ledger identities and
// network addresses.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// ErrNotFound is returned when a name or key is not in the directory.
var ErrNotFound = errors.New("party not found")

// Resolver maps a party name to its identity. Implementations must be side-effect free.
type Resolver interface {
	Resolve(ctx context.Context, name string) (ledger.Party, error)
}

// NodeInfo is a directory entry.
type NodeInfo struct {
	Party   ledger.Party
	Address string
	Notary  bool
}

// Directory is an in-memory network map safe for concurrent use.
type Directory struct {
	mu     sync.RWMutex
	byName map[string]NodeInfo
	byKey  map[string]NodeInfo
}

// NewDirectory creates a directory holding nodes.
func NewDirectory(nodes ...NodeInfo) *Directory {
	d := &Directory{
		byName: make(map[string]NodeInfo),
		byKey:  make(map[string]NodeInfo),
	}
	for _, n := range nodes {
		d.Register(n)
	}
	return d
}

// Register adds or replaces an entry.
func (d *Directory) Register(info NodeInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.byName[info.Party.Name]; ok {
		delete(d.byKey, old.Party.Key)
	}
	d.byName[info.Party.Name] = info
	d.byKey[info.Party.Key] = info
}

// Resolve implements Resolver.
func (d *Directory) Resolve(_ context.Context, name string) (ledger.Party, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	info, ok := d.byName[name]
	if !ok {
		return ledger.Party{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return info.Party, nil
}

// Lookup returns the entry for a party, matched by key.
func (d *Directory) Lookup(p ledger.Party) (NodeInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	info, ok := d.byKey[p.Key]
	if !ok || info.Party.Name != p.Name {
		return NodeInfo{}, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return info, nil
}

// AddressOf returns the network address of p.
func (d *Directory) AddressOf(p ledger.Party) (string, error) {
	info, err := d.Lookup(p)
	if err != nil {
		return "", err
	}
	if info.Address == "" {
		return "", fmt.Errorf("party %s has no network address", p)
	}
	return info.Address, nil
}

// IsNotary reports whether p is registered as a notary.
func (d *Directory) IsNotary(p ledger.Party) bool {
	info, err := d.Lookup(p)
	return err == nil && info.Notary
}

// Notaries returns every notary, ordered by name.
func (d *Directory) Notaries() []ledger.Party {
	var out []ledger.Party
	for _, n := range d.Nodes() {
		if n.Notary {
			out = append(out, n.Party)
		}
	}
	return out
}

// Nodes returns every entry, ordered by name.
func (d *Directory) Nodes() []NodeInfo {
	d.mu.RLock()
	out := make([]NodeInfo, 0, len(d.byName))
	for _, n := range d.byName {
		out = append(out, n)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Party.Name < out[j].Party.Name })
	return out
}
