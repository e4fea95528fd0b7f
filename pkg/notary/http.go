package notary

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/trader-flows/pkg/app/errors"
	apphttp "github.com/chainsafe/trader-flows/pkg/app/http"
	"github.com/chainsafe/trader-flows/pkg/ledger"
)

// NotarizePath is the route a notary node serves notarization requests on.
const NotarizePath = "/notary/notarize"

// ConsumedRef describes one already consumed input in a conflict response.
type ConsumedRef struct {
	Ref        ledger.StateRef   `json:"ref"`
	ConsumedBy ledger.SecureHash `json:"consumedBy"`
}

// ConflictResponse is the body of a 409 reply.
type ConflictResponse struct {
	Error    string        `json:"error"`
	Code     int           `json:"code"`
	TxID     string        `json:"txId"`
	Consumed []ConsumedRef `json:"consumed"`
}

// HTTP exposes a Service over HTTP
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the notarization endpoint on the given chi router
func RegisterRoutes(r chi.Router, service Service, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post(NotarizePath, apphttp.HandleError(h.notarize))
}

func (h *HTTP) notarize(w http.ResponseWriter, r *http.Request) error {
	var stx ledger.SignedTransaction
	if err := apphttp.DecodeJSON(r, &stx); err != nil {
		return err
	}

	notarized, err := h.service.Notarize(r.Context(), &stx)
	if err != nil {
		var conflict *ConflictError
		switch {
		case errors.As(err, &conflict):
			return writeConflict(w, conflict)
		case errors.Is(err, ErrInvalid):
			return apperrors.BadRequestError(err, err.Error())
		default:
			h.logger.Error("notarization failed", zap.Error(err))
			return apperrors.GeneralError(err)
		}
	}

	return apphttp.WriteJSON(w, http.StatusOK, notarized)
}

func writeConflict(w http.ResponseWriter, conflict *ConflictError) error {
	resp := ConflictResponse{
		Error: ErrConflict.Error(),
		Code:  http.StatusConflict,
		TxID:  conflict.TxID.String(),
	}
	for ref, by := range conflict.Consumed {
		resp.Consumed = append(resp.Consumed, ConsumedRef{Ref: ref, ConsumedBy: by})
	}
	return apphttp.WriteJSON(w, http.StatusConflict, resp)
}
