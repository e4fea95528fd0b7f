// Package client is an HTTP client for a node's trader, bank and network APIs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/chainsafe/trader-flows/pkg/trader"
	"github.com/chainsafe/trader-flows/pkg/trader/service"
	"github.com/chainsafe/trader-flows/pkg/vault"
)

// APIError is a non-2xx answer from the node.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("node returned status %d: %s", e.StatusCode, e.Message)
}

// Client calls one node.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the node at baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// CreateTestCash self-issues cash on the node.
func (c *Client) CreateTestCash(ctx context.Context, req *trader.CreateCashRequest) (*trader.FlowResponse, error) {
	var out trader.FlowResponse
	return &out, c.do(ctx, http.MethodPut, service.TraderPrefix+"/create-test-cash", req, &out)
}

// SellCash has the node buy paper from counterparty.
func (c *Client) SellCash(ctx context.Context, counterparty string, req *trader.TradeRequest) (*trader.FlowResponse, error) {
	var out trader.FlowResponse
	path := service.TraderPrefix + "/" + url.PathEscape(counterparty) + "/sell-cash"
	return &out, c.do(ctx, http.MethodPost, path, req, &out)
}

// SellPaper has the node sell paper to counterparty.
func (c *Client) SellPaper(ctx context.Context, counterparty string, req *trader.TradeRequest) (*trader.FlowResponse, error) {
	var out trader.FlowResponse
	path := service.TraderPrefix + "/" + url.PathEscape(counterparty) + "/sell-paper"
	return &out, c.do(ctx, http.MethodPost, path, req, &out)
}

// IssueAsset asks the node to request issuance from a bank.
func (c *Client) IssueAsset(ctx context.Context, req *trader.IssueAssetRequest) (*trader.FlowResponse, error) {
	var out trader.FlowResponse
	return &out, c.do(ctx, http.MethodPost, service.BankPrefix+"/issue-asset-request", req, &out)
}

// Balances returns the node's holdings.
func (c *Client) Balances(ctx context.Context) (*vault.Balances, error) {
	var out vault.Balances
	return &out, c.do(ctx, http.MethodGet, service.TraderPrefix+"/balances", nil, &out)
}

// Parties returns the node's network map.
func (c *Client) Parties(ctx context.Context) ([]trader.PartyInfo, error) {
	var out []trader.PartyInfo
	return out, c.do(ctx, http.MethodGet, service.NetworkPrefix+"/parties", nil, &out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
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
