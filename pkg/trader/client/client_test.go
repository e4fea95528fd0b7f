package client

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/trader-flows/pkg/app/errors"
	"github.com/chainsafe/trader-flows/pkg/trader"
	"github.com/chainsafe/trader-flows/pkg/trader/service"
	"github.com/chainsafe/trader-flows/pkg/trader/service/mocks"
	"github.com/chainsafe/trader-flows/pkg/vault"
)

func newClient(t *testing.T, svc service.Service) *Client {
	t.Helper()
	r := chi.NewRouter()
	service.RegisterRoutes(r, svc, zap.NewNop())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", nil)
}

func TestClient_CreateTestCash(t *testing.T) {
	svc := mocks.NewService(t)
	svc.EXPECT().
		CreateTestCash(mock.Anything, &trader.CreateCashRequest{Amount: "1000"}).
		Return(&trader.FlowResponse{FlowID: "f-1", TransactionID: "tx-1"}, nil)

	resp, err := newClient(t, svc).CreateTestCash(t.Context(), &trader.CreateCashRequest{Amount: "1000"})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", resp.TransactionID)
}

func TestClient_SellCashEscapesParty(t *testing.T) {
	svc := mocks.NewService(t)
	svc.EXPECT().
		SellCash(mock.Anything, "Bank A", &trader.TradeRequest{Amount: "500"}).
		Return(&trader.FlowResponse{FlowID: "f-2"}, nil)

	resp, err := newClient(t, svc).SellCash(t.Context(), "Bank A", &trader.TradeRequest{Amount: "500"})
	require.NoError(t, err)
	assert.Equal(t, "f-2", resp.FlowID)
}

func TestClient_SellPaperFailure(t *testing.T) {
	svc := mocks.NewService(t)
	svc.EXPECT().
		SellPaper(mock.Anything, "BankB", &trader.TradeRequest{Amount: "500"}).
		Return(nil, apperrors.BadRequestError(errors.New("boom"), "trade.sell failed: Conflict"))

	_, err := newClient(t, svc).SellPaper(t.Context(), "BankB", &trader.TradeRequest{Amount: "500"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "trade.sell failed: Conflict", apiErr.Message)
}

func TestClient_IssueAssetBalancesParties(t *testing.T) {
	svc := mocks.NewService(t)
	issue := &trader.IssueAssetRequest{
		Amount: "10", Currency: "GBP", IssueToPartyRefAsString: "01",
		IssueToPartyName: "BankA", IssuerBankName: "BankOfCorda", NotaryName: "Notary",
	}
	svc.EXPECT().IssueAsset(mock.Anything, issue).Return(&trader.FlowResponse{FlowID: "f-3"}, nil)
	svc.EXPECT().Balances(mock.Anything).Return(&vault.Balances{}, nil)
	svc.EXPECT().Parties(mock.Anything).Return([]trader.PartyInfo{{Name: "BankA"}, {Name: "Notary", Notary: true}}, nil)
	c := newClient(t, svc)

	resp, err := c.IssueAsset(t.Context(), issue)
	require.NoError(t, err)
	assert.Equal(t, "f-3", resp.FlowID)

	_, err = c.Balances(t.Context())
	require.NoError(t, err)

	parties, err := c.Parties(t.Context())
	require.NoError(t, err)
	require.Len(t, parties, 2)
	assert.True(t, parties[1].Notary)
}
