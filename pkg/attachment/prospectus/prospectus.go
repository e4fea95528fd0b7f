// Package prospectus embeds the commercial paper prospectus that accompanies every
// paper sale, together with its well-known digest.
package prospectus

import (
	"bytes"
	_ "embed"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

//go:embed bank-of-london-cp.txt
var document []byte

// Digest identifies the prospectus in every attachment store.
var Digest = ledger.MustParseSecureHash("608a05846ce34e53567efab61a8e56056826e3bd028c62047f57e984756bdc61")

// Document returns a copy of the prospectus bytes.
func Document() []byte {
	return bytes.Clone(document)
}
