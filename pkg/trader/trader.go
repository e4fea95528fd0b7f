// Package trader holds the request and response types of the trader and bank demo APIs.
package trader

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// NewValidator returns a validator that also knows the "reference" tag, which
// accepts what ledger.ParseReference accepts.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("reference", func(fl validator.FieldLevel) bool {
		_, err := ledger.ParseReference(fl.Field().String())
		return err == nil
	})
	return v
}

// Quantity is a decimal amount sent either as a JSON number or as a string.
type Quantity string

// UnmarshalJSON implements json.Unmarshaler.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = Quantity(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a number or a numeric string: %w", err)
	}
	*q = Quantity(n)
	return nil
}

// CreateCashRequest asks the central bank to issue test cash to this node.
type CreateCashRequest struct {
	Amount   Quantity `json:"amount" validate:"required,numeric"`
	Currency string   `json:"currency" validate:"omitempty,len=3"`
	Notary   string   `json:"notary"`
}

// TradeRequest starts a paper for cash trade with the party named in the path.
type TradeRequest struct {
	Amount   Quantity `json:"amount" validate:"required,numeric"`
	Currency string   `json:"currency" validate:"omitempty,len=3"`
	// Paper optionally names an existing paper state to trade.
	Paper *ledger.StateRef `json:"paper,omitempty"`
}

// IssueAssetRequest mirrors the bank's issue-asset-request form.
type IssueAssetRequest struct {
	Amount                  Quantity `json:"amount" validate:"required,numeric"`
	Currency                string   `json:"currency" validate:"required,len=3"`
	IssueToPartyRefAsString string   `json:"issueToPartyRefAsString" validate:"required,reference"`
	IssueToPartyName        string   `json:"issueToPartyName" validate:"required"`
	IssuerBankName          string   `json:"issuerBankName" validate:"required"`
	NotaryName              string   `json:"notaryName" validate:"required"`
}

// FlowResponse reports a finished flow.
type FlowResponse struct {
	FlowID        string `json:"flowId"`
	TransactionID string `json:"transactionId"`
	Message       string `json:"message"`
}

// PartyInfo is a network map entry.
type PartyInfo struct {
	Name    string `json:"name"`
	Key     string `json:"key"`
	Address string `json:"address,omitempty"`
	Notary  bool   `json:"notary"`
}
