package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang-surge-signal/internal/engine/config"
	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/engine/repository"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/logger"
	"golang-surge-signal/pkg/metrics"
	"golang-surge-signal/pkg/utils"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

var (
	ErrInvalidAmount = errors.New("trade amount must be positive")
	ErrInvalidMarket = errors.New("invalid market symbol")
)

// SignalService serves the dashboard and admin operations on signals and settings.
type SignalService interface {
	List(ctx context.Context, param dto.ListSignalsParam) (*dto.SignalPage, error)
	Get(ctx context.Context, id int64) (*entity.Signal, error)
	Stats(ctx context.Context, userID int64) (*dto.SignalStats, error)
	ManualBuy(ctx context.Context, signalID int64, req dto.ManualBuyRequest) (*dto.ManualBuyResult, error)
	ManualClose(ctx context.Context, signalID int64, req dto.ManualCloseRequest) (*entity.Signal, error)
	CreateManual(ctx context.Context, req dto.CreateSignalRequest) (*entity.Signal, error)
	GetSettings(ctx context.Context, userID int64) (*entity.AutoTradingSettings, error)
	UpdateSettings(ctx context.Context, userID int64, req dto.UpdateSettingsRequest) (*entity.AutoTradingSettings, error)
}

type signalService struct {
	cfg          *config.Config
	log          *logger.Logger
	signalRepo   repository.SignalRepository
	settingsRepo repository.AutoTradingSettingsRepository
	marketRepo   repository.MarketDataRepository
	exchange     repository.ExchangeRepository
	reanchor     ReanchorService
	dispatcher   NotificationDispatcher
	clock        utils.Clock
}

func NewSignalService(
	cfg *config.Config,
	log *logger.Logger,
	signalRepo repository.SignalRepository,
	settingsRepo repository.AutoTradingSettingsRepository,
	marketRepo repository.MarketDataRepository,
	exchange repository.ExchangeRepository,
	reanchor ReanchorService,
	dispatcher NotificationDispatcher,
	clock utils.Clock,
) SignalService {
	return &signalService{
		cfg:          cfg,
		log:          log,
		signalRepo:   signalRepo,
		settingsRepo: settingsRepo,
		marketRepo:   marketRepo,
		exchange:     exchange,
		reanchor:     reanchor,
		dispatcher:   dispatcher,
		clock:        clock,
	}
}

func (s *signalService) List(ctx context.Context, param dto.ListSignalsParam) (*dto.SignalPage, error) {
	items, total, err := s.signalRepo.Find(ctx, param)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to list signals", logger.ErrorField(err))
		return nil, err
	}
	if items == nil {
		items = []entity.Signal{}
	}
	return &dto.SignalPage{Items: items, Total: total, Limit: param.Limit, Offset: param.Offset}, nil
}

func (s *signalService) Get(ctx context.Context, id int64) (*entity.Signal, error) {
	return s.signalRepo.FindByID(ctx, id)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Stats derives rates and averages from the stored aggregate. Every ratio is 0 when its
// denominator is 0.
func (s *signalService) Stats(ctx context.Context, userID int64) (*dto.SignalStats, error) {
	agg, err := s.signalRepo.Aggregate(ctx, userID)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to aggregate signals", logger.Int64Field("user_id", userID), logger.ErrorField(err))
		return nil, err
	}
	return BuildStats(userID, agg), nil
}

// BuildStats turns a raw aggregate into the dashboard summary.
func BuildStats(userID int64, agg *dto.SignalAggregate) *dto.SignalStats {
	stats := &dto.SignalStats{
		UserID:          userID,
		TotalSignals:    agg.Total,
		ExecutedSignals: agg.Executed,
		Wins:            agg.Wins,
		Losses:          agg.Losses,
		TotalProfitLoss: agg.TotalProfitLoss.Round(8),
	}
	if agg.Total > 0 {
		stats.ExecutionRate = round2(float64(agg.Executed) / float64(agg.Total) * 100)
	}
	if decided := agg.Wins + agg.Losses; decided > 0 {
		stats.WinRate = round2(float64(agg.Wins) / float64(decided) * 100)
	}
	if agg.Wins > 0 {
		stats.AvgWinPercent = agg.WinPercentSum.Div(decimal.NewFromInt(agg.Wins)).Round(2).InexactFloat64()
	}
	if agg.Losses > 0 {
		stats.AvgLossPercent = agg.LossPercentSum.Div(decimal.NewFromInt(agg.Losses)).Round(2).InexactFloat64()
	}
	return stats
}

func (s *signalService) ManualBuy(ctx context.Context, signalID int64, req dto.ManualBuyRequest) (*dto.ManualBuyResult, error) {
	signal, err := s.signalRepo.FindByID(ctx, signalID)
	if err != nil {
		return nil, err
	}
	if signal.UserID != req.UserID {
		return nil, ErrSignalNotOwned
	}
	// checked before the order so a stale signal never reaches the exchange
	if signal.Status != entity.SignalStatusPending {
		return nil, &entity.InvalidTransitionError{SignalID: signal.ID, From: signal.Status, To: entity.SignalStatusBought}
	}

	settings, err := s.settingsRepo.GetOrCreate(ctx, entity.DefaultAutoTradingSettings(req.UserID))
	if err != nil {
		return nil, err
	}
	// re-anchoring needs a valid price policy, so bad settings must fail before the order
	if _, err := PolicyFromSettings(settings, s.cfg.Signal); err != nil {
		return nil, err
	}
	amount := settings.AmountPerTrade
	if req.Amount != nil {
		amount = *req.Amount
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	if err := s.settingsRepo.Commit(ctx, req.UserID, amount); err != nil {
		return nil, fmt.Errorf("commit budget: %w", err)
	}
	order, err := s.exchange.PlaceMarketBuy(ctx, signal.Market, amount)
	if err != nil {
		s.releaseQuietly(ctx, req.UserID, amount)
		s.log.ErrorContext(ctx, "Manual buy order failed", logger.Int64Field("signal_id", signalID), logger.ErrorField(err))
		return nil, err
	}

	updated, err := s.reanchor.Reanchor(ctx, ReanchorRequest{
		SignalID:    signalID,
		UserID:      req.UserID,
		FillPrice:   order.FillPrice,
		OrderID:     order.OrderID,
		TradeAmount: amount,
		At:          s.clock.Now(),
	})
	if err != nil {
		s.releaseQuietly(ctx, req.UserID, amount)
		s.log.ErrorContext(ctx, "Order filled but signal could not be re-anchored",
			logger.Int64Field("signal_id", signalID),
			logger.StringField("order_id", order.OrderID),
			logger.ErrorField(err))
		return nil, err
	}

	if err := s.settingsRepo.RecordTrade(ctx, req.UserID); err != nil {
		s.log.WarnContext(ctx, "Failed to record trade statistics", logger.ErrorField(err))
	}
	s.dispatcher.Notify(ctx, *updated, dto.EventBought)

	return &dto.ManualBuyResult{
		SignalID:      updated.ID,
		OrderID:       order.OrderID,
		FillPrice:     updated.EntryPrice,
		TargetPrice:   updated.TargetPrice,
		StopLossPrice: updated.StopLossPrice,
		ExecutedAt:    *updated.ActionTimestamp,
	}, nil
}

func (s *signalService) releaseQuietly(ctx context.Context, userID int64, amount decimal.Decimal) {
	if err := s.settingsRepo.Release(ctx, userID, amount); err != nil {
		s.log.ErrorContext(ctx, "Failed to release budget", logger.Int64Field("user_id", userID), logger.ErrorField(err))
	}
}

// ManualClose records a user's exit. At or above the win threshold it is a win, below
// entry a loss, anything between is closed.
func (s *signalService) ManualClose(ctx context.Context, signalID int64, req dto.ManualCloseRequest) (*entity.Signal, error) {
	signal, err := s.signalRepo.FindByID(ctx, signalID)
	if err != nil {
		return nil, err
	}
	if signal.UserID != req.UserID {
		return nil, ErrSignalNotOwned
	}

	var exit decimal.Decimal
	if req.ExitPrice != nil {
		exit = *req.ExitPrice
	} else {
		exit, err = s.marketRepo.GetCurrentPrice(ctx, signal.Market)
		if err != nil {
			return nil, fmt.Errorf("fetch exit price: %w", err)
		}
	}
	if !exit.IsPositive() {
		return nil, entity.ErrInvalidPrice
	}

	now := s.clock.Now()
	threshold := s.cfg.Signal.WinThresholdPercent
	updated, err := s.signalRepo.Update(ctx, signalID, func(locked *entity.Signal) error {
		pct := entity.PercentChange(locked.EntryPrice, exit)
		status := entity.SignalStatusClosed
		switch {
		case pct.GreaterThanOrEqual(decimal.NewFromFloat(threshold)):
			status = entity.SignalStatusWin
		case pct.IsNegative():
			status = entity.SignalStatusLose
		}
		return locked.Close(status, entity.CloseReasonManual, exit, now)
	})
	if err != nil {
		return nil, err
	}

	settleClosedSignal(ctx, s.log, s.settingsRepo, s.dispatcher, updated)
	return updated, nil
}

func (s *signalService) CreateManual(ctx context.Context, req dto.CreateSignalRequest) (*entity.Signal, error) {
	market := strings.ToUpper(strings.TrimSpace(req.Market))
	if market == "" || strings.ContainsAny(market, " /-") {
		return nil, ErrInvalidMarket
	}
	if !req.EntryPrice.IsPositive() {
		return nil, entity.ErrInvalidPrice
	}

	validity := s.cfg.Scanner.SignalValidity
	if req.Validity != "" {
		d, err := time.ParseDuration(req.Validity)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid validity %q", req.Validity)
		}
		validity = d
	}

	settings, err := s.settingsRepo.FindByUserID(ctx, req.UserID)
	if err != nil && !errors.Is(err, repository.ErrSettingsNotFound) {
		return nil, err
	}
	policy, err := PolicyFromSettings(settings, s.cfg.Signal)
	if err != nil {
		return nil, err
	}
	if req.TakeProfitPercent != nil {
		policy.DynamicTarget = false
		policy.TakeProfitPercent = *req.TakeProfitPercent
	}
	if req.StopLossPercent != nil {
		policy.StopLossPercent = *req.StopLossPercent
	}

	patternName := req.Pattern
	if patternName == "" {
		patternName = "manual"
	}
	confidence := req.Confidence
	if confidence == 0 {
		confidence = req.Score
	}
	target, stop := policy.Prices(req.EntryPrice, req.Score, 0)
	data, _ := json.Marshal(map[string]string{"source": "admin"})

	now := s.clock.Now()
	signal := &entity.Signal{
		UserID:        req.UserID,
		Market:        market,
		Pattern:       patternName,
		Score:         req.Score,
		Confidence:    confidence,
		Timing:        entity.TimingEarly,
		EntryPrice:    req.EntryPrice,
		TargetPrice:   target,
		StopLossPrice: stop,
		CurrentPrice:  req.EntryPrice,
		Status:        entity.SignalStatusPending,
		ExpiresAt:     now.Add(validity),
		Data:          datatypes.JSON(data),
		CreatedAt:     now,
	}
	if err := s.signalRepo.Create(ctx, signal); err != nil {
		s.log.ErrorContext(ctx, "Failed to create manual signal", logger.ErrorField(err))
		return nil, err
	}
	metrics.SignalsCreatedTotal.WithLabelValues(patternName).Inc()

	s.log.InfoContext(ctx, "Manual signal created",
		logger.Int64Field("signal_id", signal.ID),
		logger.Int64Field("user_id", signal.UserID),
		logger.StringField("market", market))
	if req.Notify {
		s.dispatcher.Notify(ctx, *signal, dto.EventCreated)
	}
	return signal, nil
}

func (s *signalService) GetSettings(ctx context.Context, userID int64) (*entity.AutoTradingSettings, error) {
	return s.settingsRepo.GetOrCreate(ctx, entity.DefaultAutoTradingSettings(userID))
}

func (s *signalService) UpdateSettings(ctx context.Context, userID int64, req dto.UpdateSettingsRequest) (*entity.AutoTradingSettings, error) {
	settings, err := s.settingsRepo.GetOrCreate(ctx, entity.DefaultAutoTradingSettings(userID))
	if err != nil {
		return nil, err
	}

	excluded := make(pq.StringArray, 0, len(req.ExcludedCoins))
	for _, coin := range req.ExcludedCoins {
		if coin = strings.ToUpper(strings.TrimSpace(coin)); coin != "" {
			excluded = append(excluded, coin)
		}
	}

	settings.Enabled = req.Enabled
	settings.TotalBudget = req.TotalBudget
	settings.AmountPerTrade = req.AmountPerTrade
	settings.RiskLevel = entity.RiskLevel(req.RiskLevel)
	settings.StopLossEnabled = req.StopLossEnabled
	settings.StopLossPercent = req.StopLossPercent
	settings.TakeProfitEnabled = req.TakeProfitEnabled
	settings.TakeProfitPercent = req.TakeProfitPercent
	settings.MinConfidence = req.MinConfidence
	settings.MaxPositions = req.MaxPositions
	settings.ExcludedCoins = excluded
	settings.PositionStrategy = entity.PositionStrategy(req.PositionStrategy)
	settings.MaxAmountPerCoin = req.MaxAmountPerCoin
	settings.AllowDuplicatePositions = req.AllowDuplicatePositions
	settings.DynamicTargetEnabled = req.DynamicTargetEnabled
	settings.MinTargetPercent = req.MinTargetPercent
	settings.MaxTargetPercent = req.MaxTargetPercent

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.settingsRepo.Save(ctx, settings); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "Auto trading settings updated",
		logger.Int64Field("user_id", userID),
		logger.Field("enabled", settings.Enabled))
	return settings, nil
}
