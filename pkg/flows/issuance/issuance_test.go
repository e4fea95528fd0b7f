package issuance_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/trader-flows/pkg/config"
	"github.com/chainsafe/trader-flows/pkg/flow"
	"github.com/chainsafe/trader-flows/pkg/flows/issuance"
	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/node"
)

type network struct {
	mock               *node.MockNetwork
	bankA, bank, notar *node.Node
}

func newNetwork(t *testing.T, configure func(*config.TraderConfig, *config.IssuerConfig, *config.FlowsConfig)) *network {
	t.Helper()
	m := node.NewMockNetwork(nil)
	t.Cleanup(m.Stop)

	notaryNode, err := m.CreateNode("Notary", node.MockNodeOptions{Notary: true})
	require.NoError(t, err)
	bank, err := m.CreateNode("BankOfCorda", node.MockNodeOptions{Issuer: true, Configure: configure})
	require.NoError(t, err)
	bankA, err := m.CreateNode("BankA", node.MockNodeOptions{})
	require.NoError(t, err)
	return &network{mock: m, bankA: bankA, bank: bank, notar: notaryNode}
}

func usd(t *testing.T, q string) ledger.Amount {
	t.Helper()
	a, err := ledger.ParseAmount(q, "USD")
	require.NoError(t, err)
	return a
}

func await(t *testing.T, h *flow.Handle) flow.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := h.Await(ctx)
	require.NoError(t, err)
	return res
}

func TestIssuance_BankAFromCentralBank(t *testing.T) {
	n := newNetwork(t, nil)

	h, err := n.bankA.Flows.Invoke(issuance.FlowName, issuance.Args{
		Amount:    usd(t, "1000"),
		Reference: "01",
		Issuer:    "BankOfCorda",
		Notary:    "Notary",
	})
	require.NoError(t, err)
	res := await(t, h)
	require.True(t, res.OK(), "issuance failed: %v", res.Err)

	stx := res.Transaction
	require.True(t, stx.IsNotarized())
	require.Len(t, stx.Tx.Outputs, 1)
	out := stx.Tx.Outputs[0]
	require.Equal(t, ledger.CashKind, out.Kind)
	assert.True(t, out.Cash.Amount.Equal(usd(t, "1000")))
	assert.Equal(t, n.bankA.Party, out.Cash.Owner)
	assert.Equal(t, n.bank.Party, out.Cash.Issuer)
	assert.Equal(t, []byte{0x01}, out.Cash.Reference)
	assert.NoError(t, stx.VerifySignatures())

	assert.True(t, n.bankA.Vault.CashBalance("USD").Equal(usd(t, "1000")))

	// Awaiting again returns the same bound result.
	again := await(t, h)
	assert.Same(t, res.Transaction, again.Transaction)

	// The issuer keeps its copy once told about finality.
	require.Eventually(t, func() bool {
		_, ok := n.bank.Vault.Transaction(stx.ID())
		return ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestIssuance_UnknownIssuer(t *testing.T) {
	n := newNetwork(t, nil)

	h, err := n.bankA.Flows.Invoke(issuance.FlowName, issuance.Args{
		Amount:    usd(t, "10"),
		Reference: "01",
		Issuer:    "BankOfNowhere",
		Notary:    "Notary",
	})
	require.NoError(t, err)
	res := await(t, h)
	require.False(t, res.OK())
	assert.Equal(t, flow.ReasonUnknownCounterparty, res.Reason())
	assert.Equal(t, 0, n.bankA.Vault.TransactionCount())
}

func TestIssuance_PolicyRejections(t *testing.T) {
	n := newNetwork(t, func(_ *config.TraderConfig, issuer *config.IssuerConfig, _ *config.FlowsConfig) {
		issuer.MaxAmount = "5000"
		issuer.Currencies = []string{"USD"}
	})

	cases := map[string]issuance.Args{
		"over max amount": {Amount: usd(t, "5000.01"), Reference: "01", Issuer: "BankOfCorda", Notary: "Notary"},
		"currency":        {Amount: ledger.NewAmount(decimal.NewFromInt(10), "CHF"), Reference: "01", Issuer: "BankOfCorda", Notary: "Notary"},
		"empty reference": {Amount: usd(t, "10"), Reference: "", Issuer: "BankOfCorda", Notary: "Notary"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			h, err := n.bankA.Flows.Invoke(issuance.FlowName, args)
			require.NoError(t, err)
			res := await(t, h)
			require.False(t, res.OK())
			assert.Equal(t, flow.ReasonIssuerRejected, res.Reason())
		})
	}
	assert.Equal(t, 0, n.bankA.Vault.TransactionCount())
}

func TestIssuance_IssuerThatIsNotAnIssuer(t *testing.T) {
	n := newNetwork(t, nil)

	// BankA serves no issuance protocol, so the session fails fast.
	h, err := n.bank.Flows.Invoke(issuance.FlowName, issuance.Args{
		Amount:    usd(t, "10"),
		Reference: "01",
		Issuer:    "BankA",
		Notary:    "Notary",
	})
	require.NoError(t, err)
	res := await(t, h)
	require.False(t, res.OK())
}

func TestIssuance_SelfIssue(t *testing.T) {
	n := newNetwork(t, nil)

	h, err := n.bank.Flows.Invoke(issuance.FlowName, issuance.Args{
		Amount:    usd(t, "250"),
		Reference: "0a0b",
		Issuer:    "BankOfCorda",
		Notary:    "Notary",
	})
	require.NoError(t, err)
	res := await(t, h)
	require.True(t, res.OK(), "self issuance failed: %v", res.Err)
	assert.True(t, n.bank.Vault.CashBalance("USD").Equal(usd(t, "250")))
}

func TestIssuance_FactoryValidation(t *testing.T) {
	n := newNetwork(t, nil)

	_, err := n.bankA.Flows.Invoke(issuance.FlowName, issuance.Args{Amount: usd(t, "0"), Reference: "01"})
	require.Error(t, err)
	assert.Equal(t, flow.ReasonInvalid, flow.ReasonOf(err))

	_, err = n.bankA.Flows.Invoke(issuance.FlowName, issuance.Args{Amount: usd(t, "1"), Reference: "zz"})
	require.Error(t, err)
	assert.Equal(t, flow.ReasonInvalid, flow.ReasonOf(err))

	_, err = n.bankA.Flows.Invoke(issuance.FlowName, "not args")
	require.ErrorIs(t, err, flow.ErrBadArgs)
}
