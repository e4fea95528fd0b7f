package trade_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/trader-flows/pkg/attachment"
	"github.com/chainsafe/trader-flows/pkg/attachment/prospectus"
	"github.com/chainsafe/trader-flows/pkg/config"
	"github.com/chainsafe/trader-flows/pkg/flow"
	"github.com/chainsafe/trader-flows/pkg/flows/issuance"
	"github.com/chainsafe/trader-flows/pkg/flows/trade"
	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/node"
)

func usd(t *testing.T, q string) ledger.Amount {
	t.Helper()
	a, err := ledger.ParseAmount(q, "USD")
	require.NoError(t, err)
	return a
}

func await(t *testing.T, h *flow.Handle) flow.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	res, err := h.Await(ctx)
	require.NoError(t, err)
	return res
}

// newNetwork starts a notary, the central bank and the named trading nodes.
func newNetwork(t *testing.T, traders map[string]node.MockNodeOptions) *node.MockNetwork {
	t.Helper()
	m := node.NewMockNetwork(nil)
	t.Cleanup(m.Stop)

	_, err := m.CreateNode("Notary", node.MockNodeOptions{Notary: true})
	require.NoError(t, err)
	_, err = m.CreateNode("BankOfCorda", node.MockNodeOptions{Issuer: true})
	require.NoError(t, err)
	for name, opts := range traders {
		_, err := m.CreateNode(name, opts)
		require.NoError(t, err)
	}
	return m
}

func issueCash(t *testing.T, n *node.Node, amount ledger.Amount) {
	t.Helper()
	h, err := n.Flows.Invoke(issuance.FlowName, issuance.Args{
		Amount: amount, Reference: "01", Issuer: "BankOfCorda", Notary: "Notary",
	})
	require.NoError(t, err)
	res := await(t, h)
	require.True(t, res.OK(), "issuance failed: %v", res.Err)
}

// ownedPaper returns the only paper output of stx.
func paperOutput(t *testing.T, stx *ledger.SignedTransaction) ledger.StateAndRef {
	t.Helper()
	papers := stx.Tx.OutRefsOfKind(ledger.PaperKind)
	require.Len(t, papers, 1)
	return papers[0]
}

func TestBuy_BuyerWithoutCashSelfFunds(t *testing.T) {
	m := newNetwork(t, map[string]node.MockNodeOptions{"BankA": {}, "BankB": {}})
	seller, buyer := m.Node("BankA"), m.Node("BankB")

	h, err := buyer.Flows.Invoke(trade.BuyFlow, trade.BuyArgs{Seller: "BankA", Price: usd(t, "500")})
	require.NoError(t, err)
	res := await(t, h)
	require.True(t, res.OK(), "trade failed: %v", res.Err)

	swap := res.Transaction
	require.True(t, swap.IsNotarized())
	require.NoError(t, swap.VerifySignatures())
	assert.True(t, swap.Tx.HasAttachment(prospectus.Digest))

	paper := paperOutput(t, swap)
	assert.Equal(t, buyer.Party, paper.State.Paper.Owner)
	assert.Equal(t, seller.Party, paper.State.Paper.Issuer)

	// One nested issuance of exactly the shortfall, spent in full.
	assert.Equal(t, 2, buyer.Vault.TransactionCount())
	assert.True(t, buyer.Vault.CashBalance("USD").Equal(usd(t, "0")))
	assert.True(t, seller.Vault.CashBalance("USD").Equal(usd(t, "500")))

	held := buyer.Vault.Unconsumed(ledger.PaperKind)
	require.Len(t, held, 1)
	assert.Equal(t, paper.Ref, held[0].Ref)
	assert.Empty(t, seller.Vault.Unconsumed(ledger.PaperKind))

	// The buyer fetched the prospectus from the seller.
	ok, err := buyer.Attachments.Exists(context.Background(), prospectus.Digest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuy_BuyerWithEnoughCashSkipsIssuance(t *testing.T) {
	m := newNetwork(t, map[string]node.MockNodeOptions{"BankA": {}, "BankB": {}})
	seller, buyer := m.Node("BankA"), m.Node("BankB")
	issueCash(t, buyer, usd(t, "800"))

	h, err := buyer.Flows.Invoke(trade.BuyFlow, trade.BuyArgs{Seller: "BankA", Price: usd(t, "500")})
	require.NoError(t, err)
	res := await(t, h)
	require.True(t, res.OK(), "trade failed: %v", res.Err)

	// Issuance plus swap, no second issuance; change comes back to the buyer.
	assert.Equal(t, 2, buyer.Vault.TransactionCount())
	assert.True(t, buyer.Vault.CashBalance("USD").Equal(usd(t, "300")))
	assert.True(t, seller.Vault.CashBalance("USD").Equal(usd(t, "500")))
}

func TestBuy_PartialCashIssuesShortfall(t *testing.T) {
	m := newNetwork(t, map[string]node.MockNodeOptions{"BankA": {}, "BankB": {}})
	buyer := m.Node("BankB")
	issueCash(t, buyer, usd(t, "200"))

	h, err := buyer.Flows.Invoke(trade.BuyFlow, trade.BuyArgs{Seller: "BankA", Price: usd(t, "500")})
	require.NoError(t, err)
	res := await(t, h)
	require.True(t, res.OK(), "trade failed: %v", res.Err)

	// First issuance, nested issuance of 300, swap.
	assert.Equal(t, 3, buyer.Vault.TransactionCount())
	assert.True(t, buyer.Vault.CashBalance("USD").Equal(usd(t, "0")))
}

func TestSell_SellerInitiated(t *testing.T) {
	m := newNetwork(t, map[string]node.MockNodeOptions{"BankA": {}, "BankB": {}})
	seller, buyer := m.Node("BankA"), m.Node("BankB")

	h, err := seller.Flows.Invoke(trade.SellFlow, trade.SellArgs{Buyer: "BankB", Price: usd(t, "750")})
	require.NoError(t, err)
	res := await(t, h)
	require.True(t, res.OK(), "trade failed: %v", res.Err)

	assert.Equal(t, buyer.Party, paperOutput(t, res.Transaction).State.Paper.Owner)
	assert.True(t, seller.Vault.CashBalance("USD").Equal(usd(t, "750")))
	require.Eventually(t, func() bool {
		return len(buyer.Vault.Unconsumed(ledger.PaperKind)) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestBuy_ResaleOfExistingPaper(t *testing.T) {
	m := newNetwork(t, map[string]node.MockNodeOptions{"BankA": {}, "BankB": {}, "BankC": {}})

	h, err := m.Node("BankB").Flows.Invoke(trade.BuyFlow, trade.BuyArgs{Seller: "BankA", Price: usd(t, "500")})
	require.NoError(t, err)
	first := await(t, h)
	require.True(t, first.OK(), "first trade failed: %v", first.Err)
	ref := paperOutput(t, first.Transaction).Ref

	h, err = m.Node("BankC").Flows.Invoke(trade.BuyFlow, trade.BuyArgs{Seller: "BankB", Price: usd(t, "600"), Paper: &ref})
	require.NoError(t, err)
	second := await(t, h)
	require.True(t, second.OK(), "resale failed: %v", second.Err)

	paper := paperOutput(t, second.Transaction)
	assert.Equal(t, m.Node("BankC").Party, paper.State.Paper.Owner)
	assert.Equal(t, m.Node("BankA").Party, paper.State.Paper.Issuer)
	assert.True(t, m.Node("BankB").Vault.CashBalance("USD").Equal(usd(t, "600")))
}

func TestBuy_ConcurrentBuyersOfSamePaper(t *testing.T) {
	m := newNetwork(t, map[string]node.MockNodeOptions{"BankA": {}, "BankB": {}, "BankC": {}, "BankD": {}})

	h, err := m.Node("BankB").Flows.Invoke(trade.BuyFlow, trade.BuyArgs{Seller: "BankA", Price: usd(t, "500")})
	require.NoError(t, err)
	first := await(t, h)
	require.True(t, first.OK(), "first trade failed: %v", first.Err)
	ref := paperOutput(t, first.Transaction).Ref

	buyers := []string{"BankC", "BankD"}
	results := make([]flow.Result, len(buyers))
	var wg sync.WaitGroup
	for i, name := range buyers {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			h, err := m.Node(name).Flows.Invoke(trade.BuyFlow, trade.BuyArgs{Seller: "BankB", Price: usd(t, "600"), Paper: &ref})
			if err != nil {
				results[i] = flow.Result{Err: err}
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			res, err := h.Await(ctx)
			if err != nil {
				res = flow.Result{Err: err}
			}
			results[i] = res
		}(i, name)
	}
	wg.Wait()

	finalized := 0
	for i, res := range results {
		if res.OK() {
			finalized++
			continue
		}
		assert.Equal(t, flow.ReasonConflict, res.Reason(), "%s: %v", buyers[i], res.Err)
	}
	assert.Equal(t, 1, finalized)
	assert.True(t, m.Node("BankB").Vault.CashBalance("USD").Equal(usd(t, "600")))
}

func TestBuy_UnknownSeller(t *testing.T) {
	m := newNetwork(t, map[string]node.MockNodeOptions{"BankB": {}})
	buyer := m.Node("BankB")

	h, err := buyer.Flows.Invoke(trade.BuyFlow, trade.BuyArgs{Seller: "Nobody", Price: usd(t, "500")})
	require.NoError(t, err)
	res := await(t, h)
	require.False(t, res.OK())
	assert.Equal(t, flow.ReasonUnknownCounterparty, res.Reason())
	assert.Equal(t, 0, buyer.Vault.TransactionCount())
}

func TestBuy_PriceAboveBuyerLimit(t *testing.T) {
	m := newNetwork(t, map[string]node.MockNodeOptions{
		"BankA": {},
		"BankB": {Configure: func(tc *config.TraderConfig, _ *config.IssuerConfig, _ *config.FlowsConfig) {
			tc.MaxPrice = "100"
		}},
	})
	buyer := m.Node("BankB")

	h, err := m.Node("BankA").Flows.Invoke(trade.SellFlow, trade.SellArgs{Buyer: "BankB", Price: usd(t, "500")})
	require.NoError(t, err)
	res := await(t, h)
	require.False(t, res.OK())
	assert.Equal(t, flow.ReasonRejected, res.Reason())
	assert.Equal(t, 0, buyer.Vault.TransactionCount())
}

func TestBuy_SellerUnknownPaper(t *testing.T) {
	m := newNetwork(t, map[string]node.MockNodeOptions{"BankA": {}, "BankB": {}})

	bogus := ledger.StateRef{TxID: ledger.HashOf([]byte("no such transaction")), Index: 0}
	h, err := m.Node("BankB").Flows.Invoke(trade.BuyFlow, trade.BuyArgs{Seller: "BankA", Price: usd(t, "500"), Paper: &bogus})
	require.NoError(t, err)
	res := await(t, h)
	require.False(t, res.OK())
	assert.Equal(t, flow.ReasonRejected, res.Reason())
}

// corruptStore stores whatever it is given but reports a different digest.
type corruptStore struct {
	*attachment.MemoryStore
}

func (s corruptStore) Import(ctx context.Context, data []byte) (ledger.SecureHash, error) {
	return s.MemoryStore.Import(ctx, append(data, '!'))
}

func TestBuy_SellerWithCorruptProspectus(t *testing.T) {
	m := newNetwork(t, map[string]node.MockNodeOptions{
		"BankA": {Attachments: corruptStore{attachment.NewMemoryStore()}},
		"BankB": {},
	})

	h, err := m.Node("BankB").Flows.Invoke(trade.BuyFlow, trade.BuyArgs{Seller: "BankA", Price: usd(t, "500")})
	require.NoError(t, err)
	res := await(t, h)
	require.False(t, res.OK())
	assert.Equal(t, flow.ReasonAttachmentCorrupt, res.Reason())
	assert.Equal(t, 0, m.Node("BankA").Vault.TransactionCount())
}

func TestFactories_RejectBadArgs(t *testing.T) {
	m := newNetwork(t, map[string]node.MockNodeOptions{"BankA": {}})
	flows := m.Node("BankA").Flows

	_, err := flows.Invoke(trade.BuyFlow, trade.BuyArgs{Price: usd(t, "1")})
	assert.Equal(t, flow.ReasonInvalid, flow.ReasonOf(err))
	_, err = flows.Invoke(trade.BuyFlow, trade.BuyArgs{Seller: "BankB", Price: usd(t, "-1")})
	assert.Equal(t, flow.ReasonInvalid, flow.ReasonOf(err))
	_, err = flows.Invoke(trade.SellFlow, trade.SellArgs{Buyer: "", Price: usd(t, "1")})
	assert.Equal(t, flow.ReasonInvalid, flow.ReasonOf(err))
	_, err = flows.Invoke(trade.SellFlow, []byte(`{"buyer":"BankB","price":{"quantity":"5","currency":"USD"}}`))
	assert.NoError(t, err)
}
