package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/messaging"
)

// Session is a flow's conversation with one counterparty flow on another node.
// Messages are routed by session ID and only accepted from the counterparty.
type Session struct {
	id           uuid.UUID
	protocol     string
	me           ledger.Party
	counterparty ledger.Party
	transport    messaging.Transport
	inbox        chan *messaging.Envelope
	timeout      time.Duration
	logger       *zap.Logger

	mu           sync.Mutex
	opened       bool
	closed       bool
	remoteFailed bool
}

func newSession(id uuid.UUID, protocol string, me, counterparty ledger.Party, opened bool, m *Manager) *Session {
	return &Session{
		id:           id,
		protocol:     protocol,
		me:           me,
		counterparty: counterparty,
		transport:    m.transport,
		inbox:        make(chan *messaging.Envelope, m.sessionBuffer),
		timeout:      m.receiveTimeout,
		opened:       opened,
		logger: m.logger.With(
			zap.String("session_id", id.String()),
			zap.String("protocol", protocol),
			zap.String("counterparty", counterparty.Name),
		),
	}
}

// ID returns the session ID.
func (s *Session) ID() uuid.UUID { return s.id }

// Protocol returns the protocol the session was opened for.
func (s *Session) Protocol() string { return s.protocol }

// Counterparty returns the party on the other end.
func (s *Session) Counterparty() ledger.Party { return s.counterparty }

// Send encodes v and sends it to the counterparty. The first send of an initiating
// session opens the session on the counterparty's node.
func (s *Session) Send(ctx context.Context, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return Fail(ReasonInternal, "encode %T: %w", v, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Fail(ReasonInternal, "session %s is closed", s.id)
	}
	kind := messaging.KindData
	if !s.opened {
		kind = messaging.KindInit
		s.opened = true
	}
	s.mu.Unlock()

	env := &messaging.Envelope{
		SessionID: s.id,
		Sender:    s.me,
		Recipient: s.counterparty,
		Kind:      kind,
		Payload:   payload,
	}
	if kind == messaging.KindInit {
		env.Protocol = s.protocol
	}

	if err := s.transport.Send(ctx, env); err != nil {
		return Fail(ReasonInternal, "send to %s: %w", s.counterparty.Name, err)
	}
	s.logger.Debug("sent", zap.String("kind", string(kind)), zap.String("type", fmt.Sprintf("%T", v)))
	return nil
}

// Receive waits for the next message and decodes it into v. If the counterparty
// failed the result is a *CounterpartyError carrying its reason.
func (s *Session) Receive(ctx context.Context, v any) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var env *messaging.Envelope
	select {
	case env = <-s.inbox:
	case <-ctx.Done():
		return Fail(ReasonInternal, "waiting for %s on %s: %w", s.counterparty.Name, s.protocol, ctx.Err())
	}

	if env.Kind == messaging.KindError {
		s.mu.Lock()
		s.remoteFailed = true
		s.mu.Unlock()
		return &CounterpartyError{Party: s.counterparty, Reason: Reason(env.Reason), Message: env.Message}
	}

	if err := json.Unmarshal(env.Payload, v); err != nil {
		return Fail(ReasonInvalid, "decode %T from %s: %w", v, s.counterparty.Name, err)
	}
	s.logger.Debug("received", zap.String("kind", string(env.Kind)), zap.String("type", fmt.Sprintf("%T", v)))
	return nil
}

// SendAndReceive sends out and waits for the reply into in.
func (s *Session) SendAndReceive(ctx context.Context, out, in any) error {
	if err := s.Send(ctx, out); err != nil {
		return err
	}
	return s.Receive(ctx, in)
}

// Reject tells the counterparty this side failed, then closes the session.
// Sessions never opened or whose counterparty already failed are only closed.
func (s *Session) Reject(ctx context.Context, reason Reason, message string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	notify := s.opened && !s.remoteFailed
	s.mu.Unlock()

	if !notify {
		return nil
	}

	env := &messaging.Envelope{
		SessionID: s.id,
		Sender:    s.me,
		Recipient: s.counterparty,
		Kind:      messaging.KindError,
		Reason:    string(reason),
		Message:   message,
	}
	if err := s.transport.Send(ctx, env); err != nil {
		s.logger.Warn("failed to notify counterparty of failure", zap.Error(err))
		return err
	}
	return nil
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// push queues an inbound envelope for Receive.
func (s *Session) push(ctx context.Context, env *messaging.Envelope) error {
	if env.Sender != s.counterparty {
		return fmt.Errorf("%w: session %s does not belong to %s", messaging.ErrBadEnvelope, s.id, env.Sender.Name)
	}
	select {
	case s.inbox <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
