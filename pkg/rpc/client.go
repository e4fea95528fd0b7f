package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/atomic"
)

// Client calls a node's JSON-RPC endpoint.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	nextID     atomic.Int64
}

// NewClient creates a client for the node at baseURL. token may be empty.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		url:        strings.TrimRight(baseURL, "/") + Path,
		token:      token,
		httpClient: httpClient,
	}
}

// Error implements error so RPC failures can be returned directly.
func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s: %v", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes method and decodes its result into out. RPC level failures are *Error.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	req := Request{JSONRPC: "2.0", Method: method, ID: c.nextID.Add(1)}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
		req.Params = raw
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

// StartFlow starts flow with args and returns its ID.
func (c *Client) StartFlow(ctx context.Context, flow string, args any) (*FlowStartResult, error) {
	params := FlowStartParams{Flow: flow}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode args: %w", err)
		}
		params.Args = raw
	}
	var out FlowStartResult
	if err := c.Call(ctx, "flow_start", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AwaitFlow waits up to timeoutMs for the flow's outcome. Zero uses the server default.
func (c *Client) AwaitFlow(ctx context.Context, id string, timeoutMs int64) (*FlowAwaitResult, error) {
	var out FlowAwaitResult
	if err := c.Call(ctx, "flow_await", FlowAwaitParams{ID: id, TimeoutMs: timeoutMs}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
