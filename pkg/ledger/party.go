// Package ledger holds the transaction data model shared by every flow: parties,
// amounts, states, commands, transaction builders and signed transactions.
package ledger

import (
	"fmt"
	"sort"
)

// Party identifies a network participant. Key is the hex encoded compressed
// secp256k1 public key the party signs with.
type Party struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// IsZero reports whether p is the empty party.
func (p Party) IsZero() bool {
	return p.Name == "" && p.Key == ""
}

func (p Party) String() string {
	if len(p.Key) > 8 {
		return fmt.Sprintf("%s(%s)", p.Name, p.Key[:8])
	}
	return p.Name
}

// uniqueParties returns the distinct parties in ps ordered by key.
func uniqueParties(ps []Party) []Party {
	seen := make(map[Party]struct{}, len(ps))
	out := make([]Party, 0, len(ps))
	for _, p := range ps {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
