package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// StateKind tags the payload of a State.
type StateKind string

const (
	CashKind  StateKind = "cash"
	PaperKind StateKind = "commercial-paper"
)

// CashState is a claim on an issuer for an amount of currency.
// Issuer and Reference together identify the deposit the cash was issued against.
type CashState struct {
	Amount    Amount `json:"amount"`
	Owner     Party  `json:"owner"`
	Issuer    Party  `json:"issuer"`
	Reference []byte `json:"reference"`
}

// PaperState is a commercial paper note redeemable for FaceValue at Maturity.
type PaperState struct {
	Issuer    Party     `json:"issuer"`
	Reference []byte    `json:"reference"`
	Owner     Party     `json:"owner"`
	FaceValue Amount    `json:"faceValue"`
	Maturity  time.Time `json:"maturity"`
}

// State is a ledger output. Exactly one of Cash or Paper is set, matching Kind.
type State struct {
	Kind  StateKind   `json:"kind"`
	Cash  *CashState  `json:"cash,omitempty"`
	Paper *PaperState `json:"paper,omitempty"`
}

// Cash wraps a cash state.
func Cash(c CashState) State {
	return State{Kind: CashKind, Cash: &c}
}

// Paper wraps a commercial paper state.
func Paper(p PaperState) State {
	return State{Kind: PaperKind, Paper: &p}
}

// Owner returns the party owning the state.
func (s State) Owner() Party {
	switch s.Kind {
	case CashKind:
		if s.Cash != nil {
			return s.Cash.Owner
		}
	case PaperKind:
		if s.Paper != nil {
			return s.Paper.Owner
		}
	}
	return Party{}
}

// Validate checks the tag matches the payload.
func (s State) Validate() error {
	switch s.Kind {
	case CashKind:
		if s.Cash == nil || s.Paper != nil {
			return fmt.Errorf("cash state payload mismatch")
		}
	case PaperKind:
		if s.Paper == nil || s.Cash != nil {
			return fmt.Errorf("paper state payload mismatch")
		}
	default:
		return fmt.Errorf("unknown state kind %q", s.Kind)
	}
	return nil
}

// StateRef points at output Index of transaction TxID.
type StateRef struct {
	TxID  SecureHash `json:"txId"`
	Index int        `json:"index"`
}

func (r StateRef) String() string {
	return fmt.Sprintf("%s(%d)", r.TxID, r.Index)
}

// StateAndRef pairs a state with the reference it was created at.
type StateAndRef struct {
	State State    `json:"state"`
	Ref   StateRef `json:"ref"`
}

// Equal compares two states by their canonical encoding.
func (s State) Equal(o State) bool {
	a, errA := json.Marshal(s)
	b, errB := json.Marshal(o)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}
