package notary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// Client calls a remote notary node over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a notary client for the node at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Notarize implements Service.
func (c *Client) Notarize(ctx context.Context, stx *ledger.SignedTransaction) (*ledger.SignedTransaction, error) {
	body, err := json.Marshal(stx)
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+NotarizePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notary request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read notary response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var notarized ledger.SignedTransaction
		if err := json.Unmarshal(raw, &notarized); err != nil {
			return nil, fmt.Errorf("decode notary response: %w", err)
		}
		if notarized.ID() != stx.ID() {
			return nil, fmt.Errorf("notary returned transaction %s for %s", notarized.ID().Short(), stx.ID().Short())
		}
		return &notarized, nil
	case http.StatusConflict:
		var body ConflictResponse
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConflict, strings.TrimSpace(string(raw)))
		}
		conflict := &ConflictError{TxID: stx.ID(), Consumed: make(map[ledger.StateRef]ledger.SecureHash, len(body.Consumed))}
		for _, c := range body.Consumed {
			conflict.Consumed[c.Ref] = c.ConsumedBy
		}
		return nil, conflict
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrInvalid, errorMessage(raw))
	default:
		return nil, fmt.Errorf("notary returned status %d: %s", resp.StatusCode, errorMessage(raw))
	}
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
