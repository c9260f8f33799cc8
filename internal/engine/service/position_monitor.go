package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang-surge-signal/internal/engine/config"
	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/engine/repository"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/logger"
	"golang-surge-signal/pkg/metrics"
	"golang-surge-signal/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// errStale marks a signal whose state changed between the read and the row lock.
var errStale = errors.New("signal state changed since it was read")

const expiryBatchSize = 500

// PositionMonitor expires stale pending signals and closes bought ones on target, stop or age.
type PositionMonitor interface {
	Sweep(ctx context.Context) (*dto.SweepSummary, error)
}

type positionMonitor struct {
	cfg          *config.Config
	log          *logger.Logger
	marketRepo   repository.MarketDataRepository
	signalRepo   repository.SignalRepository
	settingsRepo repository.AutoTradingSettingsRepository
	dispatcher   NotificationDispatcher
	clock        utils.Clock
}

func NewPositionMonitor(
	cfg *config.Config,
	log *logger.Logger,
	marketRepo repository.MarketDataRepository,
	signalRepo repository.SignalRepository,
	settingsRepo repository.AutoTradingSettingsRepository,
	dispatcher NotificationDispatcher,
	clock utils.Clock,
) PositionMonitor {
	return &positionMonitor{
		cfg:          cfg,
		log:          log,
		marketRepo:   marketRepo,
		signalRepo:   signalRepo,
		settingsRepo: settingsRepo,
		dispatcher:   dispatcher,
		clock:        clock,
	}
}

func (m *positionMonitor) Sweep(ctx context.Context) (*dto.SweepSummary, error) {
	now := m.clock.Now()
	summary := &dto.SweepSummary{
		TaskType:  string(entity.TaskTypePositionMonitor),
		StartedAt: now,
	}
	defer func() { summary.FinishedAt = m.clock.Now() }()

	expired, err := m.signalRepo.FindExpiredPending(ctx, now, expiryBatchSize)
	if err != nil {
		return summary, fmt.Errorf("failed to load expired signals: %w", err)
	}
	for i := range expired {
		m.expire(ctx, &expired[i], now, summary)
	}

	bought, err := m.signalRepo.FindByStatus(ctx, entity.SignalStatusBought, 0)
	if err != nil {
		return summary, fmt.Errorf("failed to load bought signals: %w", err)
	}
	prices := m.fetchPrices(ctx, bought)
	for i := range bought {
		m.check(ctx, &bought[i], prices, now, summary)
	}
	summary.Scanned = len(expired) + len(bought)

	recordItemMetrics(entity.TaskTypePositionMonitor, summary)
	m.log.InfoContext(ctx, "Position monitor finished",
		logger.IntField("scanned", summary.Scanned),
		logger.IntField("expired", summary.Expired),
		logger.IntField("closed", summary.Closed),
		logger.IntField("failed", summary.Failed))
	return summary, nil
}

func (m *positionMonitor) expire(ctx context.Context, signal *entity.Signal, now time.Time, summary *dto.SweepSummary) {
	item := dto.ItemResult{Market: signal.Market, SignalID: signal.ID}

	updated, err := m.signalRepo.Update(ctx, signal.ID, func(locked *entity.Signal) error {
		if !locked.IsExpired(now) {
			return errStale
		}
		return locked.Expire(now)
	})
	if err != nil {
		item.Error = err.Error()
		item.Skipped = isRaceLoss(err)
		if !item.Skipped {
			m.log.ErrorContext(ctx, "Failed to expire signal", logger.Int64Field("signal_id", signal.ID), logger.ErrorField(err))
		}
		summary.Record(item)
		return
	}

	item.Success = true
	summary.Record(item)
	summary.Expired++
	metrics.SignalsClosedTotal.WithLabelValues(string(updated.Status), string(updated.CloseReason)).Inc()
	m.dispatcher.Notify(ctx, *updated, dto.EventExpired)
}

// fetchPrices gets one price per distinct market. Missing markets failed after retries.
func (m *positionMonitor) fetchPrices(ctx context.Context, signals []entity.Signal) map[string]priceResult {
	markets := make(map[string]struct{})
	for _, s := range signals {
		markets[s.Market] = struct{}{}
	}

	var mu sync.Mutex
	prices := make(map[string]priceResult, len(markets))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(m.cfg.Monitor.Concurrency)

	policy := utils.RetryPolicy{
		MaxAttempts: m.cfg.Scanner.MaxRetries,
		MinDelay:    m.cfg.Scanner.RetryMinDelay,
		MaxDelay:    m.cfg.Scanner.RetryMaxDelay,
	}
	for market := range markets {
		market := market
		eg.Go(func() error {
			var price decimal.Decimal
			err := utils.Retry(egCtx, policy, repository.IsRetryable, func() error {
				var err error
				price, err = m.marketRepo.GetCurrentPrice(egCtx, market)
				return err
			})
			mu.Lock()
			prices[market] = priceResult{price: price, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return prices
}

type priceResult struct {
	price decimal.Decimal
	err   error
}

func (m *positionMonitor) check(ctx context.Context, signal *entity.Signal, prices map[string]priceResult, now time.Time, summary *dto.SweepSummary) {
	item := dto.ItemResult{Market: signal.Market, SignalID: signal.ID}
	fields := []zap.Field{
		logger.Int64Field("signal_id", signal.ID),
		logger.StringField("market", signal.Market),
	}

	pr, ok := prices[signal.Market]
	if !ok || pr.err != nil {
		err := pr.err
		if err == nil {
			err = errors.New("price unavailable")
		}
		m.log.WarnContext(ctx, "Price fetch failed, signal left unchanged", append(fields, logger.ErrorField(err))...)
		item.Error = err.Error()
		item.Skipped = repository.IsRetryable(err)
		summary.Record(item)
		return
	}

	updated, err := m.signalRepo.Update(ctx, signal.ID, func(locked *entity.Signal) error {
		if locked.Status != entity.SignalStatusBought {
			return errStale
		}
		if err := locked.MarkPrice(pr.price); err != nil {
			return err
		}
		status, reason, closing := m.exitDecision(locked, pr.price, now)
		if !closing {
			return nil
		}
		return locked.Close(status, reason, pr.price, now)
	})
	if err != nil {
		item.Error = err.Error()
		item.Skipped = isRaceLoss(err)
		if !item.Skipped {
			m.log.ErrorContext(ctx, "Failed to update position", append(fields, logger.ErrorField(err))...)
		}
		summary.Record(item)
		return
	}

	item.Success = true
	summary.Record(item)
	if !updated.Status.IsTerminal() {
		return
	}

	summary.Closed++
	m.settle(ctx, updated)
	m.log.InfoContext(ctx, "Position closed", append(fields,
		logger.StringField("status", string(updated.Status)),
		logger.StringField("reason", string(updated.CloseReason)),
		logger.FloatField("profit_loss_percent", updated.ProfitLossPercent.InexactFloat64()))...)
}

// exitDecision applies target, then stop, then holding period.
func (m *positionMonitor) exitDecision(s *entity.Signal, price decimal.Decimal, now time.Time) (entity.SignalStatus, entity.CloseReason, bool) {
	if s.TargetPrice.IsPositive() && price.GreaterThanOrEqual(s.TargetPrice) {
		return entity.SignalStatusWin, entity.CloseReasonTargetReached, true
	}
	if s.StopLossPrice.IsPositive() && price.LessThanOrEqual(s.StopLossPrice) {
		return entity.SignalStatusLose, entity.CloseReasonStopLoss, true
	}
	if s.ActionTimestamp != nil && m.cfg.Monitor.MaxHoldingDuration > 0 && now.Sub(*s.ActionTimestamp) > m.cfg.Monitor.MaxHoldingDuration {
		return entity.SignalStatusClosed, entity.CloseReasonHoldingPeriod, true
	}
	return "", "", false
}

// settle releases the budget reservation and books the realized result.
func (m *positionMonitor) settle(ctx context.Context, s *entity.Signal) {
	settleClosedSignal(ctx, m.log, m.settingsRepo, m.dispatcher, s)
}

func settleClosedSignal(ctx context.Context, log *logger.Logger, settingsRepo repository.AutoTradingSettingsRepository, dispatcher NotificationDispatcher, s *entity.Signal) {
	metrics.SignalsClosedTotal.WithLabelValues(string(s.Status), string(s.CloseReason)).Inc()

	if s.TradeAmount.IsPositive() {
		if err := settingsRepo.Release(ctx, s.UserID, s.TradeAmount); err != nil {
			log.WarnContext(ctx, "Failed to release budget", logger.Int64Field("signal_id", s.ID), logger.ErrorField(err))
		}
	}
	if err := settingsRepo.RecordClose(ctx, s.UserID, s.Status == entity.SignalStatusWin, s.RealizedAmount()); err != nil {
		log.WarnContext(ctx, "Failed to record close statistics", logger.Int64Field("signal_id", s.ID), logger.ErrorField(err))
	}

	event := dto.EventClosed
	switch s.Status {
	case entity.SignalStatusWin:
		event = dto.EventWin
	case entity.SignalStatusLose:
		event = dto.EventLose
	}
	dispatcher.Notify(ctx, *s, event)
}

// isRaceLoss reports errors caused by another writer getting to the signal first.
func isRaceLoss(err error) bool {
	return errors.Is(err, errStale) ||
		errors.Is(err, entity.ErrInvalidTransition) ||
		errors.Is(err, repository.ErrConcurrentUpdate) ||
		errors.Is(err, repository.ErrSignalNotFound)
}

func recordItemMetrics(task entity.TaskType, summary *dto.SweepSummary) {
	metrics.SweepItemsTotal.WithLabelValues(string(task), "succeeded").Add(float64(summary.Succeeded))
	metrics.SweepItemsTotal.WithLabelValues(string(task), "failed").Add(float64(summary.Failed))
	metrics.SweepItemsTotal.WithLabelValues(string(task), "skipped").Add(float64(summary.Skipped))
}
