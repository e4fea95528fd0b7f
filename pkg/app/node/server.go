// Package node implements app.Runner for a trader network node.
package node

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	apphttp "github.com/chainsafe/trader-flows/pkg/app/http"
	"github.com/chainsafe/trader-flows/pkg/attachment"
	"github.com/chainsafe/trader-flows/pkg/auth"
	"github.com/chainsafe/trader-flows/pkg/config"
	"github.com/chainsafe/trader-flows/pkg/messaging"
	"github.com/chainsafe/trader-flows/pkg/node"
	"github.com/chainsafe/trader-flows/pkg/notary"
	"github.com/chainsafe/trader-flows/pkg/pgutil"
	"github.com/chainsafe/trader-flows/pkg/rpc"
)

// Server holds cfg to init a node.
type Server struct {
	cfg *config.NodeConfig
}

// NewServer initializes a new node server.
func NewServer(cfg *config.NodeConfig) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("node config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewNodeLogger(cfg.Logging, cfg.Node.Name)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting node",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("notary", cfg.Notary.Enabled),
		zap.Bool("issuer", cfg.Issuer.Enabled),
	)

	seed, err := SeedFromEnv(cfg.Node.SeedEnv)
	if err != nil {
		return err
	}

	var db *bun.DB
	if cfg.UsesDatabase() {
		db, err = pgutil.ConnectDB(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		logger.Info("Connected to database",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database),
		)
	}

	n, err := s.assemble(seed, db, logger)
	if err != nil {
		return err
	}
	defer n.Stop()

	validator, err := s.jwtValidator()
	if err != nil {
		return err
	}

	router := NewRouter(cfg, n, validator, logger)
	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

func (s *Server) assemble(seed []byte, db *bun.DB, logger *zap.Logger) (*node.Node, error) {
	cfg := s.cfg

	directory, err := node.DirectoryFromConfig(cfg.Network, seed)
	if err != nil {
		return nil, err
	}
	if derived := cfg.Network.DerivedKeyPeers(); len(derived) > 0 {
		logger.Warn("peer keys derived from the shared network seed; any seed holder can sign as these peers",
			zap.Strings("peers", derived))
	}
	signer, err := node.NodeSigner(cfg.Node.Name, seed)
	if err != nil {
		return nil, err
	}

	attachments, err := attachment.NewFromConfig(&cfg.Attachments, db, logger)
	if err != nil {
		return nil, fmt.Errorf("create attachment store: %w", err)
	}

	var uniqueness notary.UniquenessProvider
	if cfg.Notary.Enabled {
		switch cfg.Notary.Uniqueness {
		case "postgres":
			uniqueness = notary.NewPGUniqueness(db)
		default:
			uniqueness = notary.NewMemoryUniqueness()
		}
	}

	httpClient := &http.Client{Timeout: cfg.Network.RequestTimeout}
	return node.New(node.Params{
		Signer:      signer,
		Directory:   directory,
		Attachments: attachments,
		Transport:   messaging.NewHTTPTransport(signer, directory, httpClient, logger),
		Uniqueness:  uniqueness,
		HTTPClient:  httpClient,
		Issuer:      cfg.Issuer,
		Trader:      cfg.Trader,
		Flows:       cfg.Flows,
		Logger:      logger,
	})
}

func (s *Server) jwtValidator() (*auth.JWTValidator, error) {
	if !s.cfg.Auth.Enabled {
		return nil, nil
	}
	secret := os.Getenv(s.cfg.Auth.SecretEnv)
	if secret == "" {
		return nil, fmt.Errorf("jwt secret not set: env=%s", s.cfg.Auth.SecretEnv)
	}
	return auth.NewJWTValidator([]byte(secret), s.cfg.Auth.Issuer), nil
}

// NewRouter builds the node's HTTP surface: health, metrics, p2p, notary, trader API and JSON-RPC.
// A nil validator leaves the JSON-RPC endpoint unauthenticated.
func NewRouter(cfg *config.NodeConfig, n *node.Node, validator *auth.JWTValidator, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if cfg.Monitoring.Enabled {
		r.Handle(cfg.Monitoring.Path, promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", cfg.Monitoring.Path))
	}

	n.RegisterRoutes(r)

	r.Handle(rpc.Path, rpc.NewServer(
		rpc.Config{AwaitTimeout: cfg.Trader.AwaitTimeout},
		n.Flows, n.Directory, n.Vault, validator, logger,
	))
	logger.Info("JSON-RPC endpoint enabled", zap.String("path", rpc.Path), zap.Bool("auth", validator != nil))

	return r
}

// SeedFromEnv reads the network seed from env. Hex and base64 are accepted.
func SeedFromEnv(env string) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(env))
	if raw == "" {
		return nil, fmt.Errorf("network seed not set: env=%s (hint: openssl rand -hex 32)", env)
	}
	if seed, err := hex.DecodeString(strings.TrimPrefix(raw, "0x")); err == nil {
		return seed, nil
	}
	seed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid network seed in %s: want hex or base64", env)
	}
	return seed, nil
}
