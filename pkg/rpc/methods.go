package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/auth"
	"github.com/chainsafe/trader-flows/pkg/flow"
	"github.com/chainsafe/trader-flows/pkg/trader"
)

// MethodHandler handles JSON-RPC method dispatch
type MethodHandler struct {
	server *Server
}

// NewMethodHandler creates a new method handler
func NewMethodHandler(server *Server) *MethodHandler {
	return &MethodHandler{server: server}
}

// Methods that require authentication
var authenticatedMethods = map[string]bool{
	"flow_start": true,
	"flow_await": true,
}

// RequiresAuth returns true if the method requires authentication
func (h *MethodHandler) RequiresAuth(method string) bool {
	return authenticatedMethods[method]
}

// Handle dispatches the method call
func (h *MethodHandler) Handle(ctx context.Context, method string, params json.RawMessage) (interface{}, *Error) {
	switch method {
	case "network_parties":
		return h.handleParties(ctx)
	case "vault_balances":
		return h.handleBalances(ctx)
	case "flow_start":
		return h.handleFlowStart(ctx, params)
	case "flow_await":
		return h.handleFlowAwait(ctx, params)
	default:
		return nil, NewError(MethodNotFound, method)
	}
}

// =============================================================================
// Public Methods (No Auth Required)
// =============================================================================

func (h *MethodHandler) handleParties(_ context.Context) (interface{}, *Error) {
	nodes := h.server.directory.Nodes()
	out := make([]trader.PartyInfo, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, trader.PartyInfo{
			Name:    n.Party.Name,
			Key:     n.Party.Key,
			Address: n.Address,
			Notary:  n.Notary,
		})
	}
	return out, nil
}

func (h *MethodHandler) handleBalances(_ context.Context) (interface{}, *Error) {
	b := h.server.holdings.Balances()
	return &b, nil
}

// =============================================================================
// Authenticated Methods
// =============================================================================

// handleFlowStart starts a registered flow. The caller needs StartFlow.<flow> or StartFlow.*.
func (h *MethodHandler) handleFlowStart(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p FlowStartParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	if p.Flow == "" {
		return nil, NewError(InvalidParams, "flow is required")
	}

	if h.server.authEnabled() {
		claims, _ := auth.ClaimsFromContext(ctx)
		if !claims.CanStart(p.Flow) {
			return nil, NewError(Forbidden, "missing permission "+auth.StartFlowPermission(p.Flow))
		}
	}

	args := p.Args
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	handle, err := h.server.gateway.Invoke(p.Flow, args)
	switch {
	case errors.Is(err, flow.ErrUnknownFlow):
		return nil, NewError(MethodNotFound, err.Error())
	case errors.Is(err, flow.ErrStopped):
		return nil, NewError(Unavailable, err.Error())
	case err != nil:
		return nil, NewError(InvalidParams, err.Error())
	}

	h.server.logger.Info("Flow started",
		zap.String("flow", p.Flow),
		zap.String("flow_id", handle.ID().String()),
		zap.String("subject", auth.SubjectFromContext(ctx)))

	return &FlowStartResult{ID: handle.ID().String(), Flow: handle.Flow()}, nil
}

// handleFlowAwait waits up to timeoutMs for a started flow's result
func (h *MethodHandler) handleFlowAwait(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p FlowAwaitParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, err.Error())
	}
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, NewError(InvalidParams, "invalid flow id")
	}
	if p.TimeoutMs < 0 {
		return nil, NewError(InvalidParams, "timeoutMs must not be negative")
	}

	handle, ok := h.server.gateway.Handle(id)
	if !ok {
		return nil, NewError(NotFound, "flow "+p.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, awaitTimeout(p.TimeoutMs, h.server.config.AwaitTimeout))
	defer cancel()

	out := &FlowAwaitResult{ID: p.ID, Flow: handle.Flow()}
	res, err := handle.Await(ctx)
	if err != nil {
		return out, nil
	}

	out.Done = true
	out.Success = res.OK()
	if res.OK() {
		out.TransactionID = res.Transaction.ID().String()
	} else {
		out.Reason = string(res.Reason())
		out.Error = res.Err.Error()
	}
	return out, nil
}

// awaitTimeout is requested milliseconds capped at limit. Zero means limit.
func awaitTimeout(requestedMs int64, limit time.Duration) time.Duration {
	if requestedMs <= 0 || requestedMs >= limit.Milliseconds() {
		return limit
	}
	return time.Duration(requestedMs) * time.Millisecond
}
