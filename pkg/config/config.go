// Package config loads and validates the node configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// NodeConfig represents the configuration of a single trader network node
type NodeConfig struct {
	Node        NodeIdentityConfig `yaml:"node"`
	Server      ServerConfig       `yaml:"server"`
	Database    DatabaseConfig     `yaml:"database"`
	Logging     LoggingConfig      `yaml:"logging"`
	Network     NetworkConfig      `yaml:"network"`
	Attachments AttachmentConfig   `yaml:"attachments"`
	Notary      NotaryConfig       `yaml:"notary"`
	Issuer      IssuerConfig       `yaml:"issuer"`
	Trader      TraderConfig       `yaml:"trader"`
	Flows       FlowsConfig        `yaml:"flows"`
	Auth        AuthConfig         `yaml:"auth"`
	Monitoring  MonitoringConfig   `yaml:"monitoring"`
}

// NodeIdentityConfig names the node and points at the network seed its key is derived from
type NodeIdentityConfig struct {
	Name    string `yaml:"name" validate:"required"`
	SeedEnv string `yaml:"seed_env" default:"TRADER_NETWORK_SEED" validate:"required"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"90s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"60s"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"5432"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database" default:"trader_node"`
	SSLMode  string `yaml:"ssl_mode" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// PeerConfig is one entry of the static network map
type PeerConfig struct {
	Name      string `yaml:"name" validate:"required"`
	Address   string `yaml:"address" validate:"omitempty,url"`
	PublicKey string `yaml:"public_key" validate:"omitempty,hexadecimal"`
	Notary    bool   `yaml:"notary"`
}

// NetworkConfig contains the network map and p2p transport settings.
// A peer without public_key gets the key derived from the shared network seed, so
// every seed holder can sign as that peer. Set require_peer_keys outside demos.
type NetworkConfig struct {
	Peers           []PeerConfig  `yaml:"peers" validate:"dive"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"15s"`
	RequirePeerKeys bool          `yaml:"require_peer_keys"`
}

// DerivedKeyPeers names the peers whose keys come from the shared seed.
func (c NetworkConfig) DerivedKeyPeers() []string {
	var names []string
	for _, p := range c.Peers {
		if p.PublicKey == "" {
			names = append(names, p.Name)
		}
	}
	return names
}

// S3Config contains S3 attachment backend settings
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix" default:"attachments"`
	Region       string `yaml:"region" default:"us-east-1"`
	Endpoint     string `yaml:"endpoint"`
	AccessKeyEnv string `yaml:"access_key_env" default:"TRADER_S3_ACCESS_KEY"`
	SecretKeyEnv string `yaml:"secret_key_env" default:"TRADER_S3_SECRET_KEY"`
}

// AttachmentConfig selects the attachment store backend
type AttachmentConfig struct {
	Backend string   `yaml:"backend" default:"memory" validate:"oneof=memory file postgres s3"`
	Dir     string   `yaml:"dir" default:"./data/attachments"`
	S3      S3Config `yaml:"s3"`
}

// NotaryConfig enables the notary service on this node
type NotaryConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Uniqueness string `yaml:"uniqueness" default:"memory" validate:"oneof=memory postgres"`
}

// IssuerConfig enables the cash issuer responder and sets its policy
type IssuerConfig struct {
	Enabled    bool     `yaml:"enabled"`
	MaxAmount  string   `yaml:"max_amount" default:"1000000" validate:"numeric"`
	Currencies []string `yaml:"currencies" default:"[\"USD\",\"GBP\",\"EUR\",\"CHF\"]" validate:"dive,len=3"`
}

// TraderConfig contains the trading defaults of this node
type TraderConfig struct {
	IssuerName        string        `yaml:"issuer_name" default:"BankOfCorda" validate:"required"`
	NotaryName        string        `yaml:"notary_name" default:"Notary" validate:"required"`
	Currency          string        `yaml:"currency" default:"USD" validate:"len=3"`
	IssuanceReference string        `yaml:"issuance_reference" default:"01" validate:"reference"`
	PaperFaceValue    string        `yaml:"paper_face_value" default:"1000" validate:"numeric"`
	PaperMaturity     time.Duration `yaml:"paper_maturity" default:"720h"`
	MaxPrice          string        `yaml:"max_price" default:"1000000" validate:"numeric"`
	AwaitTimeout      time.Duration `yaml:"await_timeout" default:"60s"`
}

// FlowsConfig contains flow manager settings
type FlowsConfig struct {
	ResultTTL      time.Duration `yaml:"result_ttl" default:"10m"`
	SessionBuffer  int           `yaml:"session_buffer" default:"16" validate:"min=1"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout" default:"2m"`
}

// AuthConfig contains JSON-RPC authentication settings
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SecretEnv string `yaml:"secret_env" default:"TRADER_JWT_SECRET"`
	Issuer    string `yaml:"issuer" default:"trader-network"`
}

// MonitoringConfig contains metrics settings
type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// Load reads, defaults and validates the node configuration file
func Load(configPath string) (*NodeConfig, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(raw)
}

// Parse defaults and validates a YAML node configuration
func Parse(raw []byte) (*NodeConfig, error) {
	var cfg NodeConfig
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *NodeConfig) error {
	v := validator.New()
	if err := v.RegisterValidation("reference", func(fl validator.FieldLevel) bool {
		_, err := ledger.ParseReference(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}
	if err := v.Struct(cfg); err != nil {
		return err
	}
	if cfg.Attachments.Backend == "s3" && cfg.Attachments.S3.Bucket == "" {
		return fmt.Errorf("attachments.s3.bucket is required for the s3 backend")
	}
	if cfg.Database.User == "" && cfg.UsesDatabase() {
		return fmt.Errorf("database.user is required when a postgres backend is selected")
	}

	seen := make(map[string]struct{}, len(cfg.Network.Peers))
	for _, p := range cfg.Network.Peers {
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("network.peers: duplicate peer %q", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// UsesDatabase reports whether any configured backend needs PostgreSQL
func (c *NodeConfig) UsesDatabase() bool {
	return c.Attachments.Backend == "postgres" || (c.Notary.Enabled && c.Notary.Uniqueness == "postgres")
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
