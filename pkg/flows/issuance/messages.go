package issuance

import (
	"github.com/chainsafe/trader-flows/pkg/ledger"
)

const (
	// FlowName is the name the requester flow is invoked by.
	FlowName = "issuance"
	// Protocol names the requester/issuer session.
	Protocol = "issuance.v1"
)

// Args are the invocation arguments of the requester flow.
type Args struct {
	Amount ledger.Amount `json:"amount"`
	// Reference tells apart concurrent issuances to the same owner. See
	// ledger.ParseReference for the accepted forms.
	Reference string `json:"reference"`
	Issuer    string `json:"issuer"`
	Notary    string `json:"notary"`
}

// ReferenceBytes decodes Reference.
func (a Args) ReferenceBytes() ([]byte, error) {
	return ledger.ParseReference(a.Reference)
}

// proposal carries the requester-signed issuance transaction to the issuer.
type proposal struct {
	Transaction *ledger.SignedTransaction `json:"transaction"`
}

// countersignature is the issuer's reply.
type countersignature struct {
	Signature ledger.Signature `json:"signature"`
}

// finality returns the notarized transaction to the issuer.
type finality struct {
	Transaction *ledger.SignedTransaction `json:"transaction"`
}
