// Package messaging carries flow session envelopes between nodes.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

var (
	// ErrUnreachable is returned when the recipient node cannot be reached.
	ErrUnreachable = errors.New("recipient unreachable")
	// ErrBadEnvelope is returned for envelopes that fail validation or signature checks.
	ErrBadEnvelope = errors.New("bad envelope")
)

// Kind distinguishes session messages.
type Kind string

const (
	// KindInit opens a session on the recipient and carries the first payload.
	KindInit Kind = "init"
	// KindData carries a payload on an open session.
	KindData Kind = "data"
	// KindError tells the counterparty the sending flow failed.
	KindError Kind = "error"
)

// Envelope is one message of a flow session.
type Envelope struct {
	SessionID uuid.UUID       `json:"sessionId"`
	Sender    ledger.Party    `json:"sender"`
	Recipient ledger.Party    `json:"recipient"`
	Kind      Kind            `json:"kind"`
	Protocol  string          `json:"protocol,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Message   string          `json:"message,omitempty"`
	Signature []byte          `json:"signature,omitempty"`
}

// Validate checks the envelope is well formed.
func (e *Envelope) Validate() error {
	switch {
	case e == nil:
		return fmt.Errorf("%w: nil", ErrBadEnvelope)
	case e.SessionID == uuid.Nil:
		return fmt.Errorf("%w: missing session id", ErrBadEnvelope)
	case e.Sender.IsZero() || e.Recipient.IsZero():
		return fmt.Errorf("%w: missing sender or recipient", ErrBadEnvelope)
	}
	switch e.Kind {
	case KindInit:
		if e.Protocol == "" {
			return fmt.Errorf("%w: init without protocol", ErrBadEnvelope)
		}
	case KindData, KindError:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrBadEnvelope, e.Kind)
	}
	return nil
}

// Digest is the hash the sender signs. It covers every field except the signature.
func (e *Envelope) Digest() ledger.SecureHash {
	unsigned := *e
	unsigned.Signature = nil
	raw, err := json.Marshal(&unsigned)
	if err != nil {
		panic(fmt.Sprintf("messaging: encode envelope: %v", err))
	}
	return ledger.HashOf(raw)
}

// Sign sets Sender to the signer's party and signs the envelope.
func (e *Envelope) Sign(signer ledger.Signer) error {
	e.Sender = signer.Party()
	sig, err := signer.Sign(e.Digest())
	if err != nil {
		return err
	}
	e.Signature = sig.Bytes
	return nil
}

// VerifySignature checks the envelope was signed by its sender's key.
func (e *Envelope) VerifySignature() error {
	sig := ledger.Signature{By: e.Sender, Bytes: e.Signature}
	if len(e.Signature) == 0 || !sig.Verify(e.Digest()) {
		return fmt.Errorf("%w: signature does not match sender %s", ErrBadEnvelope, e.Sender)
	}
	return nil
}
