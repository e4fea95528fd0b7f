package flow

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/internal/metrics"
)

// State is a step of a role's state machine.
type State string

const (
	StateInit      State = "Init"
	StateFinalized State = "Finalized"
	StateFailed    State = "Failed"
)

// Transitions lists, per state, the states a role may move to next. Failed is
// reachable from every non-terminal state and need not be listed.
type Transitions map[State][]State

// Machine tracks the current state of one flow role. It is owned by the flow's
// goroutine and is not safe for concurrent use.
type Machine struct {
	name    string
	current State
	allowed map[State]map[State]struct{}
	history []State
	logger  *zap.Logger
}

// NewMachine creates a machine in StateInit. name labels logs and metrics,
// e.g. "issuance.issuer".
func NewMachine(name string, table Transitions, logger *zap.Logger) *Machine {
	allowed := make(map[State]map[State]struct{}, len(table))
	for from, tos := range table {
		set := make(map[State]struct{}, len(tos))
		for _, to := range tos {
			set[to] = struct{}{}
		}
		allowed[from] = set
	}
	return &Machine{
		name:    name,
		current: StateInit,
		allowed: allowed,
		history: []State{StateInit},
		logger:  logger,
	}
}

// Current returns the current state.
func (m *Machine) Current() State { return m.current }

// History returns every state visited, in order.
func (m *Machine) History() []State {
	return append([]State(nil), m.history...)
}

// Terminal reports whether the machine reached Finalized or Failed.
func (m *Machine) Terminal() bool {
	return m.current == StateFinalized || m.current == StateFailed
}

// Transition moves to the next state. Moves not in the table are Internal errors.
func (m *Machine) Transition(to State) error {
	if !m.legal(to) {
		return Fail(ReasonInternal, "%s: illegal transition %s -> %s", m.name, m.current, to)
	}

	m.logger.Debug("state transition",
		zap.String("machine", m.name),
		zap.String("from", string(m.current)),
		zap.String("to", string(to)),
	)
	metrics.StateTransitions.WithLabelValues(m.name, string(to)).Inc()

	m.current = to
	m.history = append(m.history, to)
	return nil
}

// Settle moves to Finalized when err is nil and to Failed otherwise, returning err.
func (m *Machine) Settle(err error) error {
	if m.Terminal() {
		return err
	}
	if err != nil {
		_ = m.Transition(StateFailed)
		return err
	}
	return m.Transition(StateFinalized)
}

func (m *Machine) legal(to State) bool {
	if m.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	_, ok := m.allowed[m.current][to]
	return ok
}

// Step transitions to state and runs fn. It stops at the first error.
func (m *Machine) Step(state State, fn func() error) error {
	if err := m.Transition(state); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", state, err)
	}
	return nil
}
