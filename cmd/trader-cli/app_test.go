package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/trader-flows/pkg/auth"
	"github.com/chainsafe/trader-flows/pkg/ledger"
	"github.com/chainsafe/trader-flows/pkg/trader"
	"github.com/chainsafe/trader-flows/pkg/trader/service"
	"github.com/chainsafe/trader-flows/pkg/trader/service/mocks"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"trader-cli"}, args...))
	return out.String(), err
}

func traderServer(t *testing.T, svc service.Service) string {
	t.Helper()
	r := chi.NewRouter()
	service.RegisterRoutes(r, svc, zap.NewNop())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestCreateCash(t *testing.T) {
	svc := mocks.NewService(t)
	svc.EXPECT().
		CreateTestCash(mock.Anything, &trader.CreateCashRequest{Amount: "1000", Currency: "GBP"}).
		Return(&trader.FlowResponse{FlowID: "f-1", TransactionID: "tx-1"}, nil)
	url := traderServer(t, svc)

	out, err := run(t, "--node", url, "create-cash", "--amount", "1000", "--currency", "GBP")
	require.NoError(t, err)
	var resp trader.FlowResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "tx-1", resp.TransactionID)
}

func TestSellPaperWithExistingPaper(t *testing.T) {
	txID := ledger.HashOf([]byte("paper"))
	svc := mocks.NewService(t)
	svc.EXPECT().
		SellPaper(mock.Anything, "BankB", &trader.TradeRequest{
			Amount: "500",
			Paper:  &ledger.StateRef{TxID: txID, Index: 1},
		}).
		Return(&trader.FlowResponse{FlowID: "f-2"}, nil)
	url := traderServer(t, svc)

	_, err := run(t, "--node", url, "sell-paper", "--amount", "500",
		"--paper-tx", txID.String(), "--paper-index", "1", "BankB")
	require.NoError(t, err)
}

func TestSellCashNeedsCounterparty(t *testing.T) {
	_, err := run(t, "sell-cash", "--amount", "500")
	assert.Error(t, err)

	_, err = run(t, "sell-cash", "--amount", "500", "--paper-tx", "zz", "BankA")
	assert.Error(t, err)
}

func TestFlowStartRejectsBadArgs(t *testing.T) {
	_, err := run(t, "flow", "start", "--args", "{not json", "issuance")
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "s3cret")
	out, err := run(t, "token", "--secret-env", "TEST_JWT_SECRET", "--permission", auth.StartAnyFlow)
	require.NoError(t, err)

	claims, err := auth.NewJWTValidator([]byte("s3cret"), "trader-network").ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "trader-cli", claims.Subject)
	assert.True(t, claims.CanStart("trade.buy"))

	t.Setenv("TEST_JWT_SECRET", "")
	_, err = run(t, "token", "--secret-env", "TEST_JWT_SECRET", "--permission", auth.StartAnyFlow)
	assert.Error(t, err)
}
