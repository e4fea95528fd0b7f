// Package flow runs multi-party flows: the invocation gateway, per-run contexts,
// counterparty sessions and per-role state machines.
//
// A flow is started with Invoke and runs on its own goroutine until it finalizes or
// fails. Callers wait on the returned Handle. Responder flows are started by the
// first envelope of a session arriving for a registered protocol.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/internal/metrics"
	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/messaging"
)

const (
	defaultResultTTL     = 10 * time.Minute
	defaultSessionBuffer = 16
	defaultNotifyTimeout = 5 * time.Second
)

// Logic is the body of a flow.
type Logic interface {
	Name() string
	Run(fc *Context) (*ledger.SignedTransaction, error)
}

// Factory builds initiating flow logic from invocation arguments.
type Factory func(args any) (Logic, error)

// ResponderFactory builds responder logic for a newly opened session. The session's
// first Receive yields the initiator's opening message.
type ResponderFactory func(s *Session) Logic

// DecodeArgs converts invocation arguments into T. It accepts T, *T, or JSON.
func DecodeArgs[T any](args any) (T, error) {
	var out T
	switch v := args.(type) {
	case T:
		return v, nil
	case *T:
		if v == nil {
			return out, fmt.Errorf("%w: nil %T", ErrBadArgs, v)
		}
		return *v, nil
	case json.RawMessage:
		if err := json.Unmarshal(v, &out); err != nil {
			return out, fmt.Errorf("%w: %w", ErrBadArgs, err)
		}
		return out, nil
	case []byte:
		if err := json.Unmarshal(v, &out); err != nil {
			return out, fmt.Errorf("%w: %w", ErrBadArgs, err)
		}
		return out, nil
	default:
		return out, fmt.Errorf("%w: got %T, want %T", ErrBadArgs, args, out)
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithResultTTL sets how long finished handles stay retrievable by ID.
func WithResultTTL(d time.Duration) Option {
	return func(m *Manager) { m.resultTTL = d }
}

// WithSessionBuffer sets the per-session inbound queue length.
func WithSessionBuffer(n int) Option {
	return func(m *Manager) { m.sessionBuffer = n }
}

// WithReceiveTimeout bounds every Session.Receive. Zero waits as long as the flow's context.
func WithReceiveTimeout(d time.Duration) Option {
	return func(m *Manager) { m.receiveTimeout = d }
}

// Stats counts flows handled by a manager.
type Stats struct {
	Started   int64 `json:"started"`
	Running   int64 `json:"running"`
	Finalized int64 `json:"finalized"`
	Failed    int64 `json:"failed"`
}

// Manager is the node's flow gateway. It starts flows, routes session envelopes to
// them and keeps their handles.
type Manager struct {
	me        ledger.Party
	services  *ServiceHub
	transport messaging.Transport
	logger    *zap.Logger

	resultTTL      time.Duration
	sessionBuffer  int
	receiveTimeout time.Duration
	notifyTimeout  time.Duration

	mu         sync.RWMutex
	initiating map[string]Factory
	responders map[string]ResponderFactory
	handles    map[uuid.UUID]*Handle
	sessions   map[uuid.UUID]*Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started   atomic.Int64
	running   atomic.Int64
	finalized atomic.Int64
	failed    atomic.Int64
	stopped   atomic.Bool
}

// NewManager creates a gateway for the node me.
func NewManager(me ledger.Party, services *ServiceHub, transport messaging.Transport, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		me:            me,
		services:      services,
		transport:     transport,
		logger:        zap.NewNop(),
		resultTTL:     defaultResultTTL,
		sessionBuffer: defaultSessionBuffer,
		notifyTimeout: defaultNotifyTimeout,
		initiating:    make(map[string]Factory),
		responders:    make(map[string]ResponderFactory),
		handles:       make(map[uuid.UUID]*Handle),
		sessions:      make(map[uuid.UUID]*Session),
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sessionBuffer < 1 {
		m.sessionBuffer = 1
	}
	if m.resultTTL <= 0 {
		m.resultTTL = defaultResultTTL
	}
	m.logger = m.logger.Named("flows").With(zap.String("node", me.Name))
	return m
}

// Me returns the node's party.
func (m *Manager) Me() ledger.Party { return m.me }

// RegisterInitiating makes a flow startable by name.
func (m *Manager) RegisterInitiating(name string, f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initiating[name] = f
}

// RegisterResponder serves sessions opened for protocol.
func (m *Manager) RegisterResponder(protocol string, f ResponderFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responders[protocol] = f
}

// Flows returns the names of the registered initiating flows.
func (m *Manager) Flows() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.initiating))
	for name := range m.initiating {
		names = append(names, name)
	}
	return names
}

// Invoke starts the named flow and returns without waiting for it. Unknown names
// and arguments the flow cannot use fail immediately.
func (m *Manager) Invoke(name string, args any) (*Handle, error) {
	m.mu.RLock()
	f, ok := m.initiating[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlow, name)
	}

	logic, err := f(args)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	return m.Start(logic)
}

// Start runs logic as a new top level flow.
func (m *Manager) Start(logic Logic) (*Handle, error) {
	return m.launch(logic, "initiator", nil)
}

// Handle returns the handle of a running or recently finished flow.
func (m *Manager) Handle(id uuid.UUID) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[id]
	return h, ok
}

// Deliver implements messaging.Handler. Envelopes for open sessions are queued for
// their flow; an init envelope for a registered protocol starts its responder.
func (m *Manager) Deliver(ctx context.Context, env *messaging.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	if env.Recipient != m.me {
		return fmt.Errorf("%w: addressed to %s", messaging.ErrBadEnvelope, env.Recipient.Name)
	}

	// Lookup and responder registration happen under one lock so a repeated
	// init envelope cannot start a second responder for the same session.
	m.mu.Lock()
	s, ok := m.sessions[env.SessionID]
	var opened *Session
	f, known := m.responders[env.Protocol]
	if !ok && known && env.Kind == messaging.KindInit {
		opened = newSession(env.SessionID, env.Protocol, m.me, env.Sender, true, m)
		opened.inbox <- env
		m.sessions[opened.id] = opened
	}
	m.mu.Unlock()

	if ok && env.Kind == messaging.KindInit {
		m.logger.Debug("dropping repeated session init",
			zap.String("session_id", env.SessionID.String()),
			zap.String("sender", env.Sender.Name),
		)
		return nil
	}
	if ok {
		pushCtx, cancel := mergeDone(ctx, m.ctx)
		defer cancel()
		return s.push(pushCtx, env)
	}

	switch env.Kind {
	case messaging.KindInit:
		if opened == nil {
			return fmt.Errorf("%w: no responder for protocol %q", messaging.ErrBadEnvelope, env.Protocol)
		}
		return m.openResponder(opened, f)
	case messaging.KindError:
		// The flow already finished on this side.
		m.logger.Debug("dropping error for closed session",
			zap.String("session_id", env.SessionID.String()),
			zap.String("sender", env.Sender.Name),
			zap.String("reason", env.Reason),
		)
		return nil
	default:
		return fmt.Errorf("%w: unknown session %s", messaging.ErrBadEnvelope, env.SessionID)
	}
}

// openResponder starts f on a session already registered by Deliver.
func (m *Manager) openResponder(s *Session, f ResponderFactory) error {
	if _, err := m.launch(f(s), "responder", s); err != nil {
		m.removeSession(s.id)
		return err
	}
	return nil
}

func (m *Manager) launch(logic Logic, role string, responderSession *Session) (*Handle, error) {
	if m.stopped.Load() {
		return nil, ErrStopped
	}

	h := newHandle(logic.Name())
	fields := []zap.Field{
		zap.String("flow", logic.Name()),
		zap.String("flow_id", h.id.String()),
		zap.String("role", role),
	}
	if responderSession != nil {
		fields = append(fields, zap.String("counterparty", responderSession.counterparty.Name))
	}
	fc := &Context{
		ctx:    m.ctx,
		m:      m,
		runID:  h.id,
		flow:   logic.Name(),
		logger: m.logger.With(fields...),
	}
	if responderSession != nil {
		fc.sessions = append(fc.sessions, responderSession)
	}

	m.mu.Lock()
	m.handles[h.id] = h
	m.mu.Unlock()

	m.started.Inc()
	m.running.Inc()
	metrics.FlowsStarted.WithLabelValues(logic.Name(), role).Inc()
	metrics.FlowsInFlight.WithLabelValues(logic.Name()).Inc()

	m.wg.Add(1)
	go m.run(h, logic, fc)
	return h, nil
}

func (m *Manager) run(h *Handle, logic Logic, fc *Context) {
	defer m.wg.Done()
	fc.logger.Info("flow started")

	stx, err := m.execute(logic, fc)
	fc.finish(err)

	m.running.Dec()
	metrics.FlowsInFlight.WithLabelValues(logic.Name()).Dec()
	metrics.FlowDuration.WithLabelValues(logic.Name()).Observe(time.Since(h.started).Seconds())

	if err != nil {
		m.failed.Inc()
		reason := ReasonOf(err)
		metrics.FlowsCompleted.WithLabelValues(logic.Name(), string(reason)).Inc()
		fc.logger.Warn("flow failed", zap.String("reason", string(reason)), zap.Error(err))
		h.resolve(Result{Err: err})
	} else {
		m.finalized.Inc()
		metrics.FlowsCompleted.WithLabelValues(logic.Name(), "finalized").Inc()
		fields := []zap.Field{zap.Duration("duration", time.Since(h.started))}
		if stx != nil {
			fields = append(fields, zap.String("tx_id", stx.ID().String()))
		}
		fc.logger.Info("flow finalized", fields...)
		h.resolve(Result{Transaction: stx})
	}

	time.AfterFunc(m.resultTTL, func() {
		m.mu.Lock()
		delete(m.handles, h.id)
		m.mu.Unlock()
	})
}

// execute runs logic, turning a panic into an Internal failure so the handle
// always resolves.
func (m *Manager) execute(logic Logic, fc *Context) (stx *ledger.SignedTransaction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Fail(ReasonInternal, "flow panicked: %v", r)
		}
	}()
	return logic.Run(fc)
}

func (m *Manager) addSession(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.id] = s
}

func (m *Manager) removeSession(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Stats returns flow counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Started:   m.started.Load(),
		Running:   m.running.Load(),
		Finalized: m.finalized.Load(),
		Failed:    m.failed.Load(),
	}
}

// Stop refuses new flows, cancels running ones and waits for them to finish.
func (m *Manager) Stop() {
	if m.stopped.Swap(true) {
		return
	}
	m.logger.Info("stopping flow manager", zap.Int64("running", m.running.Load()))
	m.cancel()
	m.wg.Wait()
	m.logger.Info("flow manager stopped")
}

// mergeDone returns a context cancelled when either a or b is done.
func mergeDone(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
