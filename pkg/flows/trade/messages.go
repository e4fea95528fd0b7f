package trade

import (
	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// Flow names and session protocols.
const (
	BuyFlow      = "trade.buy"
	SellFlow     = "trade.sell"
	BuyProtocol  = "trade.buy.v1"
	SellProtocol = "trade.sell.v1"
)

// BuyArgs start a purchase from Seller. The buyer's node initiates.
type BuyArgs struct {
	Seller string        `json:"seller"`
	Price  ledger.Amount `json:"price"`
	// Paper optionally names an existing paper state of the seller to buy.
	Paper *ledger.StateRef `json:"paper,omitempty"`
}

// SellArgs start a sale to Buyer. The seller's node initiates.
type SellArgs struct {
	Buyer string        `json:"buyer"`
	Price ledger.Amount `json:"price"`
	// Paper optionally names an existing paper state to sell instead of issuing one.
	Paper *ledger.StateRef `json:"paper,omitempty"`
}

// tradeRequest opens a buyer initiated trade.
type tradeRequest struct {
	Price ledger.Amount    `json:"price"`
	Paper *ledger.StateRef `json:"paper,omitempty"`
}

// tradeOffer describes the asset for sale. Dependencies prove the asset's provenance.
type tradeOffer struct {
	Asset        ledger.StateAndRef          `json:"asset"`
	Price        ledger.Amount               `json:"price"`
	Attachment   *ledger.SecureHash          `json:"attachment,omitempty"`
	Dependencies []*ledger.SignedTransaction `json:"dependencies"`
}

// buyerMessage is what a buyer sends after the offer: attachment fetches, then the proposal.
type buyerMessage struct {
	FetchAttachment *ledger.SecureHash `json:"fetchAttachment,omitempty"`
	Proposal        *swapProposal      `json:"proposal,omitempty"`
}

type attachmentData struct {
	ID   ledger.SecureHash `json:"id"`
	Data []byte            `json:"data"`
}

// swapProposal is the buyer-signed swap with the transactions producing the buyer's cash.
type swapProposal struct {
	Transaction  *ledger.SignedTransaction   `json:"transaction"`
	Dependencies []*ledger.SignedTransaction `json:"dependencies"`
}

type swapResult struct {
	Transaction *ledger.SignedTransaction `json:"transaction"`
}
