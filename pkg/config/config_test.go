package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
node:
  name: Bank A
server:
  port: 10005
network:
  peers:
    - name: Notary
      address: http://localhost:10002
      notary: true
    - name: BankOfCorda
      address: http://localhost:10003
    - name: Bank B
      address: http://localhost:10006
monitoring:
  enabled: false
trader:
  paper_maturity: 48h
`

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Bank A", cfg.Node.Name)
	assert.Equal(t, "TRADER_NETWORK_SEED", cfg.Node.SeedEnv)
	assert.Equal(t, 10005, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Attachments.Backend)
	assert.Equal(t, "BankOfCorda", cfg.Trader.IssuerName)
	assert.Equal(t, "Notary", cfg.Trader.NotaryName)
	assert.Equal(t, 48*time.Hour, cfg.Trader.PaperMaturity)
	assert.Equal(t, []string{"USD", "GBP", "EUR", "CHF"}, cfg.Issuer.Currencies)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Equal(t, "/metrics", cfg.Monitoring.Path)
	require.Len(t, cfg.Network.Peers, 3)
	assert.True(t, cfg.Network.Peers[0].Notary)
	assert.False(t, cfg.UsesDatabase())
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing node name", "server:\n  port: 8080\n"},
		{"bad attachment backend", "node:\n  name: A\nattachments:\n  backend: ftp\n"},
		{"s3 without bucket", "node:\n  name: A\nattachments:\n  backend: s3\n"},
		{"postgres without user", "node:\n  name: A\nattachments:\n  backend: postgres\n"},
		{"duplicate peers", "node:\n  name: A\nnetwork:\n  peers:\n    - name: B\n    - name: B\n"},
		{"bad log level", "node:\n  name: A\nlogging:\n  level: loud\n"},
		{"bad issuance reference", "node:\n  name: A\ntrader:\n  issuance_reference: xyz\n"},
		{"empty hex issuance reference", "node:\n  name: A\ntrader:\n  issuance_reference: \"0x\"\n"},
		{"bad yaml", "node: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestParseAcceptsIssuanceReferenceForms(t *testing.T) {
	for _, ref := range []string{"1", "01", "0x01", "255", "abc", "0xdeadbeef"} {
		t.Run(ref, func(t *testing.T) {
			cfg, err := Parse([]byte("node:\n  name: A\ntrader:\n  issuance_reference: \"" + ref + "\"\n"))
			require.NoError(t, err)
			assert.Equal(t, ref, cfg.Trader.IssuanceReference)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(LoggingConfig{Level: "verbose", Format: "json"})
	assert.Error(t, err)
}
