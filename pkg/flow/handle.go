package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// Result is the outcome of one flow invocation: a finalized transaction or an error.
type Result struct {
	Transaction *ledger.SignedTransaction
	Err         error
}

// OK reports whether the flow finalized.
func (r Result) OK() bool {
	return r.Err == nil
}

// Reason returns the failure reason, empty on success.
func (r Result) Reason() Reason {
	return ReasonOf(r.Err)
}

// Handle refers to a started flow. Its Result is bound exactly once.
type Handle struct {
	id      uuid.UUID
	flow    string
	started time.Time

	once   sync.Once
	done   chan struct{}
	result Result
}

func newHandle(flow string) *Handle {
	return &Handle{
		id:      uuid.New(),
		flow:    flow,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// ID returns the run ID.
func (h *Handle) ID() uuid.UUID { return h.id }

// Flow returns the flow name.
func (h *Handle) Flow() string { return h.flow }

// Started returns when the flow was started.
func (h *Handle) Started() time.Time { return h.started }

// Done is closed once the result is bound.
func (h *Handle) Done() <-chan struct{} { return h.done }

// resolve binds r unless a result is already bound. It reports whether r was bound.
func (h *Handle) resolve(r Result) bool {
	bound := false
	h.once.Do(func() {
		h.result = r
		bound = true
		close(h.done)
	})
	return bound
}

// Await blocks until the flow finishes or ctx ends. Every call after the flow
// finished returns the same Result. When ctx ends first the error is
// ErrOutcomeUnknown and the flow is left running.
func (h *Handle) Await(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	default:
	}

	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: flow %s (%s): %w", ErrOutcomeUnknown, h.flow, h.id, ctx.Err())
	}
}

// Result returns the bound result without blocking.
func (h *Handle) Result() (Result, bool) {
	select {
	case <-h.done:
		return h.result, true
	default:
		return Result{}, false
	}
}
