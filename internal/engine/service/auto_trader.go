package service

import (
	"context"
	"errors"
	"fmt"

	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/engine/repository"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/logger"
	"golang-surge-signal/pkg/metrics"
	"golang-surge-signal/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AutoTrader decides whether a fresh signal is bought automatically and executes the buy.
type AutoTrader interface {
	// Evaluate returns a rejected decision with a nil error for every policy rejection.
	// A non-nil error means the order or its bookkeeping failed; the signal stays pending.
	Evaluate(ctx context.Context, signal *entity.Signal) (dto.AutoTradeDecision, error)
}

type autoTrader struct {
	log          *logger.Logger
	settingsRepo repository.AutoTradingSettingsRepository
	signalRepo   repository.SignalRepository
	exchange     repository.ExchangeRepository
	reanchor     ReanchorService
	dispatcher   NotificationDispatcher
	clock        utils.Clock
}

func NewAutoTrader(
	log *logger.Logger,
	settingsRepo repository.AutoTradingSettingsRepository,
	signalRepo repository.SignalRepository,
	exchange repository.ExchangeRepository,
	reanchor ReanchorService,
	dispatcher NotificationDispatcher,
	clock utils.Clock,
) AutoTrader {
	return &autoTrader{
		log:          log,
		settingsRepo: settingsRepo,
		signalRepo:   signalRepo,
		exchange:     exchange,
		reanchor:     reanchor,
		dispatcher:   dispatcher,
		clock:        clock,
	}
}

func (a *autoTrader) Evaluate(ctx context.Context, signal *entity.Signal) (dto.AutoTradeDecision, error) {
	fields := []zap.Field{
		logger.Int64Field("signal_id", signal.ID),
		logger.Int64Field("user_id", signal.UserID),
		logger.StringField("market", signal.Market),
	}

	decision, settings, err := a.precheck(ctx, signal)
	if err != nil {
		a.log.ErrorContext(ctx, "Auto-trade precheck failed", append(fields, logger.ErrorField(err))...)
		metrics.AutoTradeDecisionsTotal.WithLabelValues("error").Inc()
		return dto.Rejected(signal.ID, dto.RejectNone), err
	}
	if decision.Reason != dto.RejectNone {
		a.log.DebugContext(ctx, "Auto-trade rejected", append(fields, logger.StringField("reason", string(decision.Reason)))...)
		metrics.AutoTradeDecisionsTotal.WithLabelValues(string(decision.Reason)).Inc()
		return decision, nil
	}

	amount := settings.AmountPerTrade
	reserved, err := a.settingsRepo.Reserve(ctx, signal.UserID, amount)
	if err != nil {
		metrics.AutoTradeDecisionsTotal.WithLabelValues("error").Inc()
		return dto.Rejected(signal.ID, dto.RejectNone), fmt.Errorf("reserve budget: %w", err)
	}
	if !reserved {
		reason := a.reservationFailure(ctx, signal.UserID)
		a.log.DebugContext(ctx, "Auto-trade rejected", append(fields, logger.StringField("reason", string(reason)))...)
		metrics.AutoTradeDecisionsTotal.WithLabelValues(string(reason)).Inc()
		return dto.Rejected(signal.ID, reason), nil
	}

	order, err := a.exchange.PlaceMarketBuy(ctx, signal.Market, amount)
	if err != nil {
		a.release(ctx, signal.UserID, amount, fields)
		metrics.AutoTradeDecisionsTotal.WithLabelValues("order_failed").Inc()
		return dto.Rejected(signal.ID, dto.RejectNone), fmt.Errorf("place buy order for %s: %w", signal.Market, err)
	}

	updated, err := a.reanchor.Reanchor(ctx, ReanchorRequest{
		SignalID:    signal.ID,
		UserID:      signal.UserID,
		FillPrice:   order.FillPrice,
		OrderID:     order.OrderID,
		TradeAmount: amount,
		At:          a.clock.Now(),
	})
	if err != nil {
		// The exchange position exists but is not tracked; the order id is logged for reconciliation.
		a.release(ctx, signal.UserID, amount, fields)
		a.log.ErrorContext(ctx, "Order filled but signal could not be re-anchored",
			append(fields, logger.StringField("order_id", order.OrderID), logger.ErrorField(err))...)
		metrics.AutoTradeDecisionsTotal.WithLabelValues("reanchor_failed").Inc()
		return dto.Rejected(signal.ID, dto.RejectNone), fmt.Errorf("re-anchor signal %d: %w", signal.ID, err)
	}

	if err := a.settingsRepo.RecordTrade(ctx, signal.UserID); err != nil {
		a.log.WarnContext(ctx, "Failed to record trade statistics", append(fields, logger.ErrorField(err))...)
	}
	*signal = *updated
	a.dispatcher.Notify(ctx, *updated, dto.EventBought)
	metrics.AutoTradeDecisionsTotal.WithLabelValues("accepted").Inc()

	a.log.InfoContext(ctx, "Auto-trade executed", append(fields,
		logger.StringField("order_id", order.OrderID),
		logger.StringField("fill_price", order.FillPrice.String()))...)

	return dto.AutoTradeDecision{
		SignalID: signal.ID,
		Accepted: true,
		Amount:   order.QuoteAmount,
		OrderID:  order.OrderID,
	}, nil
}

// precheck applies every rule that does not need the atomic reservation.
func (a *autoTrader) precheck(ctx context.Context, signal *entity.Signal) (dto.AutoTradeDecision, *entity.AutoTradingSettings, error) {
	settings, err := a.settingsRepo.FindByUserID(ctx, signal.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrSettingsNotFound) {
			return dto.Rejected(signal.ID, dto.RejectNoSettings), nil, nil
		}
		return dto.AutoTradeDecision{}, nil, err
	}
	if err := settings.Validate(); err != nil || !settings.AmountPerTrade.IsPositive() {
		return dto.Rejected(signal.ID, dto.RejectInvalidSettings), settings, nil
	}
	if !settings.Enabled {
		return dto.Rejected(signal.ID, dto.RejectDisabled), settings, nil
	}
	if signal.Confidence < settings.MinConfidence {
		return dto.Rejected(signal.ID, dto.RejectLowConfidence), settings, nil
	}
	if settings.IsExcluded(signal.Market) {
		return dto.Rejected(signal.ID, dto.RejectExcludedCoin), settings, nil
	}

	openAmount, err := a.signalRepo.OpenAmountByMarket(ctx, signal.UserID, signal.Market)
	if err != nil {
		return dto.AutoTradeDecision{}, nil, err
	}
	if openAmount.IsPositive() && !settings.AllowsDuplicates() {
		return dto.Rejected(signal.ID, dto.RejectDuplicatePosition), settings, nil
	}
	if settings.MaxAmountPerCoin.IsPositive() && openAmount.Add(settings.AmountPerTrade).GreaterThan(settings.MaxAmountPerCoin) {
		return dto.Rejected(signal.ID, dto.RejectMaxAmountPerCoin), settings, nil
	}
	if settings.OpenPositions >= settings.MaxPositions {
		return dto.Rejected(signal.ID, dto.RejectMaxPositions), settings, nil
	}
	if settings.CommittedAmount.Add(settings.AmountPerTrade).GreaterThan(settings.TotalBudget) {
		return dto.Rejected(signal.ID, dto.RejectBudgetExceeded), settings, nil
	}
	return dto.AutoTradeDecision{SignalID: signal.ID}, settings, nil
}

// reservationFailure tells which limit a concurrent trade consumed first.
func (a *autoTrader) reservationFailure(ctx context.Context, userID int64) dto.RejectReason {
	settings, err := a.settingsRepo.FindByUserID(ctx, userID)
	if err == nil && settings.OpenPositions >= settings.MaxPositions {
		return dto.RejectMaxPositions
	}
	return dto.RejectBudgetExceeded
}

func (a *autoTrader) release(ctx context.Context, userID int64, amount decimal.Decimal, fields []zap.Field) {
	if err := a.settingsRepo.Release(ctx, userID, amount); err != nil {
		a.log.ErrorContext(ctx, "Failed to release budget reservation", append(fields, logger.ErrorField(err))...)
	}
}
