package flow

import (
	"errors"
	"fmt"

	"github.com/chainsafe/trader-flows/pkg/attachment"
	"github.com/chainsafe/trader-flows/pkg/identity"
	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/notary"
	"github.com/chainsafe/trader-flows/pkg/vault"
)

var (
	// ErrUnknownFlow is returned by Invoke for a name nobody registered.
	ErrUnknownFlow = errors.New("unknown flow")
	// ErrBadArgs is returned by Invoke when the arguments do not fit the flow.
	ErrBadArgs = errors.New("invalid flow arguments")
	// ErrOutcomeUnknown is returned by Await when the caller stops waiting before the
	// flow finished. The flow keeps running.
	ErrOutcomeUnknown = errors.New("flow outcome unknown")
	// ErrStopped is returned when starting flows on a stopped manager.
	ErrStopped = errors.New("flow manager stopped")
)

// Reason classifies why a flow failed.
type Reason string

const (
	ReasonUnknownCounterparty Reason = "UnknownCounterparty"
	ReasonIssuerRejected      Reason = "IssuerRejected"
	ReasonRejected            Reason = "Rejected"
	ReasonAttachmentCorrupt   Reason = "AttachmentCorrupt"
	ReasonConflict            Reason = "Conflict"
	ReasonInvalid             Reason = "Invalid"
	ReasonInternal            Reason = "Internal"
)

// Error is a classified flow failure.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fail returns a flow failure with the given reason.
func Fail(reason Reason, format string, args ...any) error {
	return &Error{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err under reason. A nil err stays nil.
func Wrap(reason Reason, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Reason: reason, Err: err}
}

// CounterpartyError reports that the mirrored flow on another node failed.
type CounterpartyError struct {
	Party   ledger.Party
	Reason  Reason
	Message string
}

func (e *CounterpartyError) Error() string {
	return fmt.Sprintf("counterparty %s failed (%s): %s", e.Party.Name, e.Reason, e.Message)
}

// ReasonOf maps any error onto the failure taxonomy. Classified errors keep their
// reason, known collaborator sentinels map to theirs, anything else is Internal.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	var ce *CounterpartyError
	if errors.As(err, &ce) {
		return ce.Reason
	}

	switch {
	case errors.Is(err, identity.ErrNotFound):
		return ReasonUnknownCounterparty
	case errors.Is(err, attachment.ErrCorrupt):
		return ReasonAttachmentCorrupt
	case errors.Is(err, notary.ErrConflict):
		return ReasonConflict
	case errors.Is(err, notary.ErrInvalid),
		errors.Is(err, ledger.ErrContractViolation),
		errors.Is(err, ledger.ErrBadSignature),
		errors.Is(err, ledger.ErrMissingSignature),
		errors.Is(err, ledger.ErrUnresolvedInput),
		errors.Is(err, ErrBadArgs):
		return ReasonInvalid
	case errors.Is(err, vault.ErrInsufficientFunds):
		return ReasonRejected
	}
	return ReasonInternal
}
