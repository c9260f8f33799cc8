package service

import (
	"context"
	"errors"
	"time"

	"golang-surge-signal/internal/engine/config"
	"golang-surge-signal/internal/engine/repository"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/logger"

	"github.com/shopspring/decimal"
)

var ErrSignalNotOwned = errors.New("signal does not belong to user")

// ReanchorRequest carries an executed entry for a pending signal.
type ReanchorRequest struct {
	SignalID    int64
	UserID      int64
	FillPrice   decimal.Decimal
	OrderID     string
	TradeAmount decimal.Decimal
	At          time.Time
}

// ReanchorService moves target and stop-loss onto the actual fill price.
type ReanchorService interface {
	Reanchor(ctx context.Context, req ReanchorRequest) (*entity.Signal, error)
}

type reanchorService struct {
	cfg          *config.Config
	log          *logger.Logger
	signalRepo   repository.SignalRepository
	settingsRepo repository.AutoTradingSettingsRepository
}

func NewReanchorService(cfg *config.Config, log *logger.Logger, signalRepo repository.SignalRepository, settingsRepo repository.AutoTradingSettingsRepository) ReanchorService {
	return &reanchorService{cfg: cfg, log: log, signalRepo: signalRepo, settingsRepo: settingsRepo}
}

// Reanchor returns *entity.InvalidTransitionError when the signal already left pending.
// Callers treat that as nothing to do.
func (s *reanchorService) Reanchor(ctx context.Context, req ReanchorRequest) (*entity.Signal, error) {
	if !req.FillPrice.IsPositive() {
		return nil, entity.ErrInvalidPrice
	}

	policy, err := s.policyFor(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	updated, err := s.signalRepo.Update(ctx, req.SignalID, func(signal *entity.Signal) error {
		if signal.UserID != req.UserID {
			return ErrSignalNotOwned
		}
		target, stop := policy.Prices(req.FillPrice, signal.Score, signal.Volatility)
		return signal.MarkBought(entity.BuyFill{
			FillPrice:   req.FillPrice,
			TargetPrice: target,
			StopLoss:    stop,
			OrderID:     req.OrderID,
			TradeAmount: req.TradeAmount,
			At:          req.At,
		})
	})
	if err != nil {
		if errors.Is(err, entity.ErrInvalidTransition) {
			s.log.WarnContext(ctx, "Signal is no longer pending, re-anchor skipped",
				logger.Int64Field("signal_id", req.SignalID),
				logger.StringField("order_id", req.OrderID),
				logger.ErrorField(err))
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "Signal re-anchored",
		logger.Int64Field("signal_id", updated.ID),
		logger.StringField("fill_price", updated.EntryPrice.String()),
		logger.StringField("target_price", updated.TargetPrice.String()),
		logger.StringField("stop_loss_price", updated.StopLossPrice.String()))
	return updated, nil
}

func (s *reanchorService) policyFor(ctx context.Context, userID int64) (PricePolicy, error) {
	settings, err := s.settingsRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSettingsNotFound) {
			return DefaultPricePolicy(s.cfg.Signal), nil
		}
		return PricePolicy{}, err
	}
	return PolicyFromSettings(settings, s.cfg.Signal)
}
