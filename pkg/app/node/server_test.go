package node

import (
	"bytes"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/config"
	"github.com/chainsafe/trader-flows/pkg/node"
)

const testSeedHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testConfig(t *testing.T, name string) *config.NodeConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(`
node:
  name: ` + name + `
notary:
  enabled: true
network:
  peers:
    - name: Notary
      address: http://localhost:10001
      notary: true
    - name: BankA
      address: http://localhost:10002
`))
	require.NoError(t, err)
	return cfg
}

func TestSeedFromEnv(t *testing.T) {
	t.Setenv("TEST_SEED", testSeedHex)
	seed, err := SeedFromEnv("TEST_SEED")
	require.NoError(t, err)
	assert.Len(t, seed, 32)

	t.Setenv("TEST_SEED", "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8=")
	b64, err := SeedFromEnv("TEST_SEED")
	require.NoError(t, err)
	assert.Equal(t, seed, b64)

	t.Setenv("TEST_SEED", "")
	_, err = SeedFromEnv("TEST_SEED")
	assert.Error(t, err)

	t.Setenv("TEST_SEED", "not a seed!")
	_, err = SeedFromEnv("TEST_SEED")
	assert.Error(t, err)
}

func TestServer_Assemble(t *testing.T) {
	seed, err := hex.DecodeString(testSeedHex)
	require.NoError(t, err)

	n, err := NewServer(testConfig(t, "Notary")).assemble(seed, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(n.Stop)
	assert.Equal(t, "Notary", n.Party.Name)
	assert.NotNil(t, n.Notary)

	// A node missing from its own network map cannot start.
	_, err = NewServer(testConfig(t, "BankZ")).assemble(seed, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestServer_JWTValidator(t *testing.T) {
	cfg := testConfig(t, "BankA")
	v, err := NewServer(cfg).jwtValidator()
	require.NoError(t, err)
	assert.Nil(t, v)

	cfg.Auth.Enabled = true
	t.Setenv(cfg.Auth.SecretEnv, "")
	_, err = NewServer(cfg).jwtValidator()
	assert.Error(t, err)

	t.Setenv(cfg.Auth.SecretEnv, "s3cret")
	v, err = NewServer(cfg).jwtValidator()
	require.NoError(t, err)
	assert.True(t, v.IsConfigured())
}

func TestNewRouter(t *testing.T) {
	net := node.NewMockNetwork(zap.NewNop())
	t.Cleanup(net.Stop)
	n, err := net.CreateNode("BankA", node.MockNodeOptions{Notary: true})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(testConfig(t, "BankA"), n, nil, zap.NewNop()))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/traderdemo/balances")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/rpc", "application/json",
		bytes.NewBufferString(`{"jsonrpc":"2.0","method":"network_parties","id":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), `"BankA"`)
}
