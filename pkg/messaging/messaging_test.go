package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/identity"
	"github.com/chainsafe/trader-flows/pkg/keys"
	"github.com/chainsafe/trader-flows/pkg/ledger"
)

type recorder struct {
	mu   sync.Mutex
	got  []*Envelope
	fail error
}

func (r *recorder) Deliver(_ context.Context, env *Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.got = append(r.got, env)
	return nil
}

func (r *recorder) envelopes() []*Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Envelope(nil), r.got...)
}

func newSigner(t *testing.T, name string) ledger.Signer {
	t.Helper()
	kp, err := keys.GenerateKeyPair()
	require.NoError(t, err)
	return ledger.NewSigner(name, kp)
}

func initEnvelope(from, to ledger.Party) *Envelope {
	return &Envelope{
		SessionID: uuid.New(),
		Sender:    from,
		Recipient: to,
		Kind:      KindInit,
		Protocol:  "trade.sell",
		Payload:   json.RawMessage(`{"price":"500"}`),
	}
}

func TestEnvelopeSignature(t *testing.T) {
	a := newSigner(t, "BankA")
	b := newSigner(t, "BankB")

	env := initEnvelope(ledger.Party{}, b.Party())
	require.NoError(t, env.Sign(a))
	assert.Equal(t, a.Party(), env.Sender)
	require.NoError(t, env.VerifySignature())

	env.Payload = json.RawMessage(`{"price":"5"}`)
	assert.True(t, errors.Is(env.VerifySignature(), ErrBadEnvelope))

	env.Signature = nil
	assert.True(t, errors.Is(env.VerifySignature(), ErrBadEnvelope))
}

func TestEnvelopeValidate(t *testing.T) {
	a := newSigner(t, "BankA").Party()
	b := newSigner(t, "BankB").Party()

	cases := map[string]*Envelope{
		"nil":          nil,
		"no session":   {Sender: a, Recipient: b, Kind: KindData},
		"no recipient": {SessionID: uuid.New(), Sender: a, Kind: KindData},
		"no protocol":  {SessionID: uuid.New(), Sender: a, Recipient: b, Kind: KindInit},
		"bad kind":     {SessionID: uuid.New(), Sender: a, Recipient: b, Kind: "close"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(env.Validate(), ErrBadEnvelope))
		})
	}

	assert.NoError(t, initEnvelope(a, b).Validate())
}

func TestInMemoryNetwork(t *testing.T) {
	a := newSigner(t, "BankA").Party()
	b := newSigner(t, "BankB").Party()
	ctx := context.Background()

	net := NewInMemoryNetwork()
	rb := &recorder{}
	net.Join(b, rb)

	require.NoError(t, net.Send(ctx, initEnvelope(a, b)))
	assert.Len(t, rb.envelopes(), 1)

	err := net.Send(ctx, initEnvelope(b, a))
	assert.True(t, errors.Is(err, ErrUnreachable))

	net.SetDown(b, true)
	err = net.Send(ctx, initEnvelope(a, b))
	assert.True(t, errors.Is(err, ErrUnreachable))
	net.SetDown(b, false)

	require.NoError(t, net.Send(ctx, initEnvelope(a, b)))
	assert.Len(t, rb.envelopes(), 2)
}

func TestHTTPTransport(t *testing.T) {
	a := newSigner(t, "BankA")
	b := newSigner(t, "BankB")
	stranger := newSigner(t, "Mallory")
	ctx := context.Background()

	rb := &recorder{}
	r := chi.NewRouter()
	dir := identity.NewDirectory()
	RegisterRoutes(r, b.Party(), dir, rb, zap.NewNop())
	srv := httptest.NewServer(r)
	defer srv.Close()

	dir.Register(identity.NodeInfo{Party: a.Party(), Address: "http://unused"})
	dir.Register(identity.NodeInfo{Party: b.Party(), Address: srv.URL})

	transport := NewHTTPTransport(a, dir, srv.Client(), zap.NewNop())
	env := initEnvelope(ledger.Party{}, b.Party())
	require.NoError(t, transport.Send(ctx, env))

	got := rb.envelopes()
	require.Len(t, got, 1)
	assert.Equal(t, a.Party(), got[0].Sender)
	assert.Equal(t, env.SessionID, got[0].SessionID)
	assert.JSONEq(t, `{"price":"500"}`, string(got[0].Payload))

	// unknown to the directory
	rogue := NewHTTPTransport(stranger, identity.NewDirectory(identity.NodeInfo{Party: b.Party(), Address: srv.URL}), srv.Client(), zap.NewNop())
	assert.Error(t, rogue.Send(ctx, initEnvelope(ledger.Party{}, b.Party())))

	// handler failure surfaces to the sender
	rb.mu.Lock()
	rb.fail = errors.New("boom")
	rb.mu.Unlock()
	assert.Error(t, transport.Send(ctx, initEnvelope(ledger.Party{}, b.Party())))

	// unknown recipient
	err := transport.Send(ctx, initEnvelope(ledger.Party{}, stranger.Party()))
	assert.True(t, errors.Is(err, ErrUnreachable))
}
