package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/trader-flows/pkg/app/errors"
	"github.com/chainsafe/trader-flows/pkg/trader"
	"github.com/chainsafe/trader-flows/pkg/vault"
)

const serviceName = "TraderService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the trader Service.
// It logs method entry/exit, duration and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) started(method string, fields ...zap.Field) time.Time {
	ls.logger.Info(method+" started", append([]zap.Field{
		zap.String("service", serviceName),
		zap.String("method", method),
	}, fields...)...)
	return time.Now()
}

func (ls *logService) finished(method string, start time.Time, resp *trader.FlowResponse, err error) {
	duration := time.Since(start)
	if err != nil {
		// Rejected requests are the caller's problem; only internal failures are errors.
		logf := ls.logger.Warn
		if apperrors.IsInternalError(err) {
			logf = ls.logger.Error
		}
		logf(method+" failed",
			zap.String("service", serviceName),
			zap.String("method", method),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}
	ls.logger.Info(method+" completed",
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.String("flow_id", resp.FlowID),
		zap.String("tx_id", resp.TransactionID),
		zap.Duration("duration", duration),
	)
}

// CreateTestCash wraps the service method with logging
func (ls *logService) CreateTestCash(ctx context.Context, req *trader.CreateCashRequest) (resp *trader.FlowResponse, err error) {
	start := ls.started("CreateTestCash",
		zap.String("amount", string(req.Amount)),
		zap.String("currency", req.Currency),
		zap.String("notary", req.Notary),
	)
	defer func() { ls.finished("CreateTestCash", start, resp, err) }()

	return ls.svc.CreateTestCash(ctx, req)
}

// SellCash wraps the service method with logging
func (ls *logService) SellCash(ctx context.Context, counterparty string, req *trader.TradeRequest) (resp *trader.FlowResponse, err error) {
	start := ls.started("SellCash",
		zap.String("counterparty", counterparty),
		zap.String("amount", string(req.Amount)),
		zap.Bool("existing_paper", req.Paper != nil),
	)
	defer func() { ls.finished("SellCash", start, resp, err) }()

	return ls.svc.SellCash(ctx, counterparty, req)
}

// SellPaper wraps the service method with logging
func (ls *logService) SellPaper(ctx context.Context, counterparty string, req *trader.TradeRequest) (resp *trader.FlowResponse, err error) {
	start := ls.started("SellPaper",
		zap.String("counterparty", counterparty),
		zap.String("amount", string(req.Amount)),
		zap.Bool("existing_paper", req.Paper != nil),
	)
	defer func() { ls.finished("SellPaper", start, resp, err) }()

	return ls.svc.SellPaper(ctx, counterparty, req)
}

// IssueAsset wraps the service method with logging
func (ls *logService) IssueAsset(ctx context.Context, req *trader.IssueAssetRequest) (resp *trader.FlowResponse, err error) {
	start := ls.started("IssueAsset",
		zap.String("amount", string(req.Amount)),
		zap.String("currency", req.Currency),
		zap.String("issue_to", req.IssueToPartyName),
		zap.String("issuer", req.IssuerBankName),
	)
	defer func() { ls.finished("IssueAsset", start, resp, err) }()

	return ls.svc.IssueAsset(ctx, req)
}

// Balances is a read and only logs failures.
func (ls *logService) Balances(ctx context.Context) (*vault.Balances, error) {
	b, err := ls.svc.Balances(ctx)
	if err != nil {
		ls.logger.Error("Balances failed", zap.String("service", serviceName), zap.Error(err))
	}
	return b, err
}

// Parties is a read and only logs failures.
func (ls *logService) Parties(ctx context.Context) ([]trader.PartyInfo, error) {
	p, err := ls.svc.Parties(ctx)
	if err != nil {
		ls.logger.Error("Parties failed", zap.String("service", serviceName), zap.Error(err))
	}
	return p, err
}
