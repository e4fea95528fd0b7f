package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CommandKind names the intent a command signs off on.
type CommandKind string

const (
	CashIssue  CommandKind = "cash.issue"
	CashMove   CommandKind = "cash.move"
	PaperIssue CommandKind = "paper.issue"
	PaperMove  CommandKind = "paper.move"
)

// Command declares an intent and the parties that must sign for it.
type Command struct {
	Kind    CommandKind `json:"kind"`
	Signers []Party     `json:"signers"`
}

// WireTransaction is a sealed, unsigned transaction. Its ID commits to every field.
type WireTransaction struct {
	Inputs      []StateAndRef `json:"inputs"`
	Outputs     []State       `json:"outputs"`
	Attachments []SecureHash  `json:"attachments"`
	Commands    []Command     `json:"commands"`
	Notary      Party         `json:"notary"`
	Salt        uuid.UUID     `json:"salt"`
}

// ID returns the SHA-256 digest of the transaction's canonical JSON encoding.
func (wtx *WireTransaction) ID() SecureHash {
	raw, err := json.Marshal(wtx)
	if err != nil {
		// Every field type marshals; a failure here is a programming error.
		panic(fmt.Sprintf("ledger: encode transaction: %v", err))
	}
	return HashOf(raw)
}

// InputRefs returns the references of all inputs in order.
func (wtx *WireTransaction) InputRefs() []StateRef {
	refs := make([]StateRef, len(wtx.Inputs))
	for i, in := range wtx.Inputs {
		refs[i] = in.Ref
	}
	return refs
}

// OutRef returns output i together with its reference.
func (wtx *WireTransaction) OutRef(i int) StateAndRef {
	return StateAndRef{State: wtx.Outputs[i], Ref: StateRef{TxID: wtx.ID(), Index: i}}
}

// OutRefsOfKind returns every output of the given kind with its reference.
func (wtx *WireTransaction) OutRefsOfKind(kind StateKind) []StateAndRef {
	id := wtx.ID()
	var out []StateAndRef
	for i, s := range wtx.Outputs {
		if s.Kind == kind {
			out = append(out, StateAndRef{State: s, Ref: StateRef{TxID: id, Index: i}})
		}
	}
	return out
}

// RequiredSigners returns the distinct signers named by all commands.
func (wtx *WireTransaction) RequiredSigners() []Party {
	var all []Party
	for _, c := range wtx.Commands {
		all = append(all, c.Signers...)
	}
	return uniqueParties(all)
}

// HasAttachment reports whether id is attached.
func (wtx *WireTransaction) HasAttachment(id SecureHash) bool {
	for _, a := range wtx.Attachments {
		if a == id {
			return true
		}
	}
	return false
}

// ErrBuilderSealed is returned when a builder is used after ToWireTransaction.
var ErrBuilderSealed = errors.New("transaction builder already sealed")

// TransactionBuilder accumulates a proposed transaction. It is owned by a single
// flow and becomes unusable once sealed.
type TransactionBuilder struct {
	notary      Party
	inputs      []StateAndRef
	outputs     []State
	attachments []SecureHash
	commands    []Command
	sealed      bool
	err         error
}

// NewTransactionBuilder starts a transaction to be notarised by notary.
func NewTransactionBuilder(notary Party) *TransactionBuilder {
	return &TransactionBuilder{notary: notary}
}

func (b *TransactionBuilder) check() bool {
	if b.sealed && b.err == nil {
		b.err = ErrBuilderSealed
	}
	return b.err == nil
}

// AddInputState consumes sr.
func (b *TransactionBuilder) AddInputState(sr StateAndRef) *TransactionBuilder {
	if !b.check() {
		return b
	}
	for _, in := range b.inputs {
		if in.Ref == sr.Ref {
			b.err = fmt.Errorf("duplicate input %s", sr.Ref)
			return b
		}
	}
	b.inputs = append(b.inputs, sr)
	return b
}

// AddOutputState creates s.
func (b *TransactionBuilder) AddOutputState(s State) *TransactionBuilder {
	if !b.check() {
		return b
	}
	if err := s.Validate(); err != nil {
		b.err = err
		return b
	}
	b.outputs = append(b.outputs, s)
	return b
}

// AddAttachment references a document by digest. Duplicates are ignored.
func (b *TransactionBuilder) AddAttachment(id SecureHash) *TransactionBuilder {
	if !b.check() {
		return b
	}
	for _, a := range b.attachments {
		if a == id {
			return b
		}
	}
	b.attachments = append(b.attachments, id)
	return b
}

// AddCommand declares an intent signed by signers.
func (b *TransactionBuilder) AddCommand(kind CommandKind, signers ...Party) *TransactionBuilder {
	if !b.check() {
		return b
	}
	if len(signers) == 0 {
		b.err = fmt.Errorf("command %s has no signers", kind)
		return b
	}
	b.commands = append(b.commands, Command{Kind: kind, Signers: uniqueParties(signers)})
	return b
}

// ToWireTransaction seals the builder and returns the immutable transaction.
func (b *TransactionBuilder) ToWireTransaction() (*WireTransaction, error) {
	if !b.check() {
		return nil, b.err
	}
	if b.notary.IsZero() {
		return nil, fmt.Errorf("transaction has no notary")
	}
	if len(b.outputs) == 0 && len(b.inputs) == 0 {
		return nil, fmt.Errorf("transaction is empty")
	}
	if len(b.commands) == 0 {
		return nil, fmt.Errorf("transaction has no commands")
	}
	b.sealed = true
	return &WireTransaction{
		Inputs:      append([]StateAndRef(nil), b.inputs...),
		Outputs:     append([]State(nil), b.outputs...),
		Attachments: append([]SecureHash{}, b.attachments...),
		Commands:    append([]Command(nil), b.commands...),
		Notary:      b.notary,
		Salt:        uuid.New(),
	}, nil
}
