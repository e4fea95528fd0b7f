package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chainsafe/trader-flows/pkg/app/errors"
	"github.com/chainsafe/trader-flows/pkg/flows/trade"
	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/notary"
	"github.com/chainsafe/trader-flows/pkg/trader"
)

// notarizeThen calls next after every successful notarization of a transaction
// that spends inputs.
type notarizeThen struct {
	svc  notary.Service
	next func()
}

func (n *notarizeThen) Notarize(ctx context.Context, stx *ledger.SignedTransaction) (*ledger.SignedTransaction, error) {
	out, err := n.svc.Notarize(ctx, stx)
	if err == nil && len(stx.Tx.Inputs) > 0 {
		n.next()
	}
	return out, err
}

func TestMockNetwork_SellerFinalizesWhenBuyerDropsAfterNotarization(t *testing.T) {
	m := NewMockNetwork(nil)
	t.Cleanup(m.Stop)

	notaryNode, err := m.CreateNode("Notary", MockNodeOptions{Notary: true})
	require.NoError(t, err)
	_, err = m.CreateNode("BankOfCorda", MockNodeOptions{Issuer: true})
	require.NoError(t, err)
	seller, err := m.CreateNode("BankA", MockNodeOptions{})
	require.NoError(t, err)
	buyer, err := m.CreateNode("BankB", MockNodeOptions{})
	require.NoError(t, err)

	seller.notaries.Register(notaryNode.Party, &notarizeThen{
		svc:  notaryNode.Notary,
		next: func() { m.SetDown(buyer.Party, true) },
	})

	price, err := ledger.ParseAmount("500", "USD")
	require.NoError(t, err)
	h, err := seller.Flows.Invoke(trade.SellFlow, trade.SellArgs{Buyer: "BankB", Price: price})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	res, err := h.Await(ctx)
	require.NoError(t, err)
	require.True(t, res.OK(), "seller failed: %v", res.Err)
	assert.True(t, res.Transaction.IsNotarized())

	stats := seller.Flows.Stats()
	assert.Equal(t, int64(1), stats.Finalized)
	assert.Equal(t, int64(0), stats.Failed)
	assert.True(t, seller.Vault.CashBalance("USD").Equal(price))
	assert.Empty(t, seller.Vault.Unconsumed(ledger.PaperKind))
}

func newTradingNetwork(t *testing.T, traders ...string) *MockNetwork {
	t.Helper()
	m := NewMockNetwork(nil)
	t.Cleanup(m.Stop)

	_, err := m.CreateNode("Notary", MockNodeOptions{Notary: true})
	require.NoError(t, err)
	_, err = m.CreateNode("BankOfCorda", MockNodeOptions{Issuer: true})
	require.NoError(t, err)
	for _, name := range traders {
		_, err := m.CreateNode(name, MockNodeOptions{})
		require.NoError(t, err)
	}
	return m
}

func TestTrader_SellSpentPaperIsConflict(t *testing.T) {
	m := newTradingNetwork(t, "BankA", "BankB", "BankC", "BankD")
	ctx := context.Background()
	bankB := m.Node("BankB")

	resp, err := bankB.Trader.SellCash(ctx, "BankA", &trader.TradeRequest{Amount: "500"})
	require.NoError(t, err)
	txID, err := ledger.ParseSecureHash(resp.TransactionID)
	require.NoError(t, err)
	stx, ok := bankB.Vault.Transaction(txID)
	require.True(t, ok)
	papers := stx.Tx.OutRefsOfKind(ledger.PaperKind)
	require.Len(t, papers, 1)
	ref := papers[0].Ref

	_, err = bankB.Trader.SellPaper(ctx, "BankC", &trader.TradeRequest{Amount: "600", Paper: &ref})
	require.NoError(t, err)

	_, err = bankB.Trader.SellPaper(ctx, "BankD", &trader.TradeRequest{Amount: "600", Paper: &ref})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataConflict), "got %v", err)
}

func TestTrader_SellUnknownPaperIsNotFound(t *testing.T) {
	m := newTradingNetwork(t, "BankA", "BankB")
	bankA := m.Node("BankA")

	bogus := ledger.StateRef{TxID: ledger.HashOf([]byte("no such transaction")), Index: 0}
	before := bankA.Flows.Stats().Started
	_, err := bankA.Trader.SellPaper(context.Background(), "BankB", &trader.TradeRequest{Amount: "500", Paper: &bogus})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryResourceNotFound), "got %v", err)
	assert.Equal(t, before, bankA.Flows.Stats().Started)
}

func TestTrader_UnreachableBuyerIsDependencyFailure(t *testing.T) {
	m := newTradingNetwork(t, "BankA", "BankB")
	m.SetDown(m.Node("BankB").Party, true)

	_, err := m.Node("BankA").Trader.SellPaper(context.Background(), "BankB", &trader.TradeRequest{Amount: "500"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDependencyFailure), "got %v", err)
}

func TestTrader_CashFailuresStayBadRequests(t *testing.T) {
	m := newTradingNetwork(t, "BankA")
	m.SetDown(m.Node("BankOfCorda").Party, true)

	_, err := m.Node("BankA").Trader.CreateTestCash(context.Background(), &trader.CreateCashRequest{Amount: "1000"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError), "got %v", err)
}
