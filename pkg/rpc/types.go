package rpc

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 Types
// https://www.jsonrpc.org/specification

// Request represents a JSON-RPC 2.0 request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id"`
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error represents a JSON-RPC 2.0 error
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	// Custom error codes (application-specific)
	Unauthorized = -32001
	NotFound     = -32002
	Forbidden    = -32003
	Unavailable  = -32004
)

// Error messages
var errorMessages = map[int]string{
	ParseError:     "Parse error",
	InvalidRequest: "Invalid Request",
	MethodNotFound: "Method not found",
	InvalidParams:  "Invalid params",
	InternalError:  "Internal error",
	Unauthorized:   "Unauthorized",
	NotFound:       "Not found",
	Forbidden:      "Forbidden",
	Unavailable:    "Service unavailable",
}

// NewError creates a new JSON-RPC error
func NewError(code int, data interface{}) *Error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = "Unknown error"
	}
	return &Error{
		Code:    code,
		Message: msg,
		Data:    data,
	}
}

// NewErrorWithMessage creates a new JSON-RPC error with a custom message
func NewErrorWithMessage(code int, message string, data interface{}) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// Validate validates the JSON-RPC request
func (r *Request) Validate() error {
	if r.JSONRPC != "2.0" {
		return fmt.Errorf("invalid jsonrpc version: expected 2.0")
	}
	if r.Method == "" {
		return fmt.Errorf("method is required")
	}
	return nil
}

// SuccessResponse creates a successful JSON-RPC response
func SuccessResponse(id interface{}, result interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// ErrorResponse creates an error JSON-RPC response
func ErrorResponse(id interface{}, err *Error) *Response {
	return &Response{
		JSONRPC: "2.0",
		Error:   err,
		ID:      id,
	}
}

// =============================================================================
// RPC Method Parameters
// =============================================================================

// FlowStartParams represents parameters for flow_start
type FlowStartParams struct {
	Flow string          `json:"flow"`
	Args json.RawMessage `json:"args,omitempty"`
}

// FlowAwaitParams represents parameters for flow_await
type FlowAwaitParams struct {
	ID        string `json:"id"`
	TimeoutMs int64  `json:"timeoutMs,omitempty"` // Optional - defaults to the server's await timeout
}

// =============================================================================
// RPC Method Results
// =============================================================================

// FlowStartResult represents a started flow
type FlowStartResult struct {
	ID   string `json:"id"`
	Flow string `json:"flow"`
}

// FlowAwaitResult represents the outcome of a flow. Done is false when the
// timeout elapsed first; the flow keeps running and may be awaited again.
type FlowAwaitResult struct {
	ID            string `json:"id"`
	Flow          string `json:"flow"`
	Done          bool   `json:"done"`
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Error         string `json:"error,omitempty"`
}
