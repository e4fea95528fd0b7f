package service

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/trader-flows/pkg/app/errors"
	apphttp "github.com/chainsafe/trader-flows/pkg/app/http"
	"github.com/chainsafe/trader-flows/pkg/trader"
)

// Route prefixes of the demo APIs.
const (
	TraderPrefix  = "/api/traderdemo"
	BankPrefix    = "/api/bank"
	NetworkPrefix = "/api/network"
)

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service  Service
	validate *validator.Validate
	logger   *zap.Logger
}

// RegisterRoutes registers the trader, bank and network endpoints on the given chi router
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service:  service,
		validate: trader.NewValidator(),
		logger:   logger,
	}

	r.Route(TraderPrefix, func(r chi.Router) {
		r.Put("/create-test-cash", apphttp.HandleError(h.createTestCash))
		r.Post("/{party}/sell-cash", apphttp.HandleError(h.sellCash))
		r.Post("/{party}/sell-paper", apphttp.HandleError(h.sellPaper))
		r.Get("/balances", apphttp.HandleError(h.balances))
	})
	r.Post(BankPrefix+"/issue-asset-request", apphttp.HandleError(h.issueAsset))
	r.Get(NetworkPrefix+"/parties", apphttp.HandleError(h.parties))
}

func (h *HTTP) decode(r *http.Request, v any) error {
	if err := apphttp.DecodeJSON(r, v); err != nil {
		return err
	}
	if err := h.validate.Struct(v); err != nil {
		return apperrors.BadRequestError(err, err.Error())
	}
	return nil
}

func (h *HTTP) createTestCash(w http.ResponseWriter, r *http.Request) error {
	var req trader.CreateCashRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	resp, err := h.service.CreateTestCash(r.Context(), &req)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusCreated, resp)
}

func (h *HTTP) sellCash(w http.ResponseWriter, r *http.Request) error {
	var req trader.TradeRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	resp, err := h.service.SellCash(r.Context(), chi.URLParam(r, "party"), &req)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *HTTP) sellPaper(w http.ResponseWriter, r *http.Request) error {
	var req trader.TradeRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	resp, err := h.service.SellPaper(r.Context(), chi.URLParam(r, "party"), &req)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *HTTP) issueAsset(w http.ResponseWriter, r *http.Request) error {
	var req trader.IssueAssetRequest
	if err := h.decode(r, &req); err != nil {
		return err
	}
	resp, err := h.service.IssueAsset(r.Context(), &req)
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusCreated, resp)
}

func (h *HTTP) balances(w http.ResponseWriter, r *http.Request) error {
	resp, err := h.service.Balances(r.Context())
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, resp)
}

func (h *HTTP) parties(w http.ResponseWriter, r *http.Request) error {
	resp, err := h.service.Parties(r.Context())
	if err != nil {
		return err
	}
	return apphttp.WriteJSON(w, http.StatusOK, resp)
}
