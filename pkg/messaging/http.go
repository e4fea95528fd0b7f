package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/internal/metrics"
	apperrors "github.com/chainsafe/trader-flows/pkg/app/errors"
	apphttp "github.com/chainsafe/trader-flows/pkg/app/http"
	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// MessagesPath is the route nodes accept envelopes on.
const MessagesPath = "/p2p/messages"

// AddressBook resolves a party's node address.
type AddressBook interface {
	AddressOf(p ledger.Party) (string, error)
}

// HTTPTransport signs envelopes with the node key and posts them to the recipient node.
type HTTPTransport struct {
	signer     ledger.Signer
	addresses  AddressBook
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPTransport creates an HTTP transport sending as signer.
func NewHTTPTransport(signer ledger.Signer, addresses AddressBook, httpClient *http.Client, logger *zap.Logger) *HTTPTransport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPTransport{
		signer:     signer,
		addresses:  addresses,
		httpClient: httpClient,
		logger:     logger.Named("p2p"),
	}
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, env *Envelope) error {
	if err := env.Sign(t.signer); err != nil {
		return fmt.Errorf("sign envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return err
	}

	addr, err := t.addresses.AddressOf(env.Recipient)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnreachable, env.Recipient, err)
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(addr, "/")+MessagesPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("p2p", "send").Inc()
		return fmt.Errorf("%w: %s: %w", ErrUnreachable, env.Recipient, err)
	}
	defer resp.Body.Close()

	metrics.MessagesTotal.WithLabelValues("out", string(env.Kind)).Inc()
	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("peer %s rejected envelope: status %d: %s", env.Recipient, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	t.logger.Debug("envelope sent",
		zap.String("session_id", env.SessionID.String()),
		zap.String("recipient", env.Recipient.Name),
		zap.String("kind", string(env.Kind)),
	)
	return nil
}

// Receiver serves inbound envelopes for one node.
type Receiver struct {
	me      ledger.Party
	peers   AddressBook
	handler Handler
	logger  *zap.Logger
}

// RegisterRoutes registers the inbound envelope endpoint on the given chi router.
// Envelopes must be addressed to me, signed by their sender and come from a party
// known to peers.
func RegisterRoutes(r chi.Router, me ledger.Party, peers AddressBook, handler Handler, logger *zap.Logger) {
	rc := &Receiver{
		me:      me,
		peers:   peers,
		handler: handler,
		logger:  logger.Named("p2p"),
	}
	r.Post(MessagesPath, apphttp.HandleError(rc.receive))
}

func (rc *Receiver) receive(w http.ResponseWriter, r *http.Request) error {
	var env Envelope
	if err := apphttp.DecodeJSON(r, &env); err != nil {
		return err
	}
	if err := env.Validate(); err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}
	if env.Recipient != rc.me {
		return apperrors.BadRequestError(nil, "envelope is not addressed to this node")
	}
	if _, err := rc.peers.AddressOf(env.Sender); err != nil {
		return apperrors.ForbiddenError(err, "unknown sender")
	}
	if err := env.VerifySignature(); err != nil {
		metrics.ErrorsTotal.WithLabelValues("p2p", "signature").Inc()
		return apperrors.UnAuthorizedError(err, "invalid envelope signature")
	}

	metrics.MessagesTotal.WithLabelValues("in", string(env.Kind)).Inc()
	if err := rc.handler.Deliver(r.Context(), &env); err != nil {
		if errors.Is(err, ErrBadEnvelope) {
			return apperrors.BadRequestError(err, err.Error())
		}
		rc.logger.Warn("failed to deliver envelope",
			zap.String("session_id", env.SessionID.String()),
			zap.String("sender", env.Sender.Name),
			zap.Error(err),
		)
		return apperrors.GeneralError(err)
	}

	w.WriteHeader(http.StatusAccepted)
	return nil
}
