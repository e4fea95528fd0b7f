package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/auth"
	"github.com/chainsafe/trader-flows/pkg/flow"
	"github.com/chainsafe/trader-flows/pkg/identity"
	"github.com/chainsafe/trader-flows/pkg/vault"
)

// Path is where the JSON-RPC endpoint is mounted.
const Path = "/rpc"

// Gateway starts flows and finds them again by ID.
type Gateway interface {
	Invoke(name string, args any) (*flow.Handle, error)
	Handle(id uuid.UUID) (*flow.Handle, bool)
}

// Directory lists the network map.
type Directory interface {
	Nodes() []identity.NodeInfo
}

// Holdings reports vault balances.
type Holdings interface {
	Balances() vault.Balances
}

// Config holds server settings.
type Config struct {
	// AwaitTimeout is the flow_await default and upper bound.
	AwaitTimeout time.Duration
}

// Server handles JSON-RPC requests for the flow gateway
type Server struct {
	config       Config
	gateway      Gateway
	directory    Directory
	holdings     Holdings
	jwtValidator *auth.JWTValidator
	logger       *zap.Logger
	handler      *MethodHandler
}

// NewServer creates a new RPC server. A nil validator disables authentication.
func NewServer(
	cfg Config,
	gateway Gateway,
	directory Directory,
	holdings Holdings,
	jwtValidator *auth.JWTValidator,
	logger *zap.Logger,
) *Server {
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = time.Minute
	}
	s := &Server{
		config:       cfg,
		gateway:      gateway,
		directory:    directory,
		holdings:     holdings,
		jwtValidator: jwtValidator,
		logger:       logger.Named("rpc"),
	}

	// Create method handler
	s.handler = NewMethodHandler(s)

	return s
}

// ServeHTTP handles HTTP requests
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Read request body
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		s.writeError(w, nil, NewError(ParseError, "failed to read request"))
		return
	}

	// Parse JSON-RPC request
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, nil, NewError(ParseError, err.Error()))
		return
	}

	// Validate request
	if err := req.Validate(); err != nil {
		s.writeError(w, req.ID, NewError(InvalidRequest, err.Error()))
		return
	}

	ctx := r.Context()

	// Authenticate if required
	if s.jwtValidator != nil && s.handler.RequiresAuth(req.Method) {
		authCtx, err := s.authenticate(ctx, r)
		if err != nil {
			s.logger.Warn("Authentication failed",
				zap.String("method", req.Method),
				zap.Error(err))
			s.writeError(w, req.ID, NewError(Unauthorized, err.Error()))
			return
		}
		ctx = authCtx
	}

	// Handle the method
	result, rpcErr := s.handler.Handle(ctx, req.Method, req.Params)
	if rpcErr != nil {
		s.writeError(w, req.ID, rpcErr)
		return
	}

	// Write success response
	s.writeResponse(w, SuccessResponse(req.ID, result))
}

// authenticate verifies the bearer token and returns a context carrying its claims
func (s *Server) authenticate(ctx context.Context, r *http.Request) (context.Context, error) {
	token, err := auth.BearerToken(r)
	if err != nil {
		return nil, &AuthError{Message: "no valid authentication provided"}
	}
	claims, err := s.jwtValidator.ValidateToken(token)
	if err != nil {
		return nil, &AuthError{Message: "invalid token: " + err.Error()}
	}
	return auth.WithClaims(ctx, claims), nil
}

// authEnabled reports whether callers must present tokens
func (s *Server) authEnabled() bool {
	return s.jwtValidator != nil
}

// writeResponse writes a JSON-RPC response
func (s *Server) writeResponse(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("Failed to write response", zap.Error(err))
	}
}

// writeError writes a JSON-RPC error response
func (s *Server) writeError(w http.ResponseWriter, id interface{}, err *Error) {
	s.writeResponse(w, ErrorResponse(id, err))
}

// AuthError represents an authentication error
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
