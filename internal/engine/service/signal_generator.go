package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang-surge-signal/internal/engine/config"
	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/engine/pattern"
	"golang-surge-signal/internal/engine/repository"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/common"
	"golang-surge-signal/pkg/logger"
	"golang-surge-signal/pkg/metrics"
	"golang-surge-signal/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// SignalGenerator scans the market universe and persists signals for qualifying patterns.
type SignalGenerator interface {
	Sweep(ctx context.Context) (*dto.SweepSummary, error)
}

type signalGenerator struct {
	cfg          *config.Config
	log          *logger.Logger
	marketRepo   repository.MarketDataRepository
	signalRepo   repository.SignalRepository
	settingsRepo repository.AutoTradingSettingsRepository
	registry     *pattern.Registry
	autoTrader   AutoTrader
	dispatcher   NotificationDispatcher
	clock        utils.Clock
}

func NewSignalGenerator(
	cfg *config.Config,
	log *logger.Logger,
	marketRepo repository.MarketDataRepository,
	signalRepo repository.SignalRepository,
	settingsRepo repository.AutoTradingSettingsRepository,
	registry *pattern.Registry,
	autoTrader AutoTrader,
	dispatcher NotificationDispatcher,
	clock utils.Clock,
) SignalGenerator {
	return &signalGenerator{
		cfg:          cfg,
		log:          log,
		marketRepo:   marketRepo,
		signalRepo:   signalRepo,
		settingsRepo: settingsRepo,
		registry:     registry,
		autoTrader:   autoTrader,
		dispatcher:   dispatcher,
		clock:        clock,
	}
}

type marketCandles struct {
	market  string
	candles []entity.Candle
	err     error
}

// signalData is stored in the signal's jsonb data column.
type signalData struct {
	Source     string             `json:"source"`
	Interval   string             `json:"interval,omitempty"`
	BarsSince  int                `json:"bars_since"`
	Components map[string]float64 `json:"components,omitempty"`
}

func (g *signalGenerator) retryPolicy() utils.RetryPolicy {
	return utils.RetryPolicy{
		MaxAttempts: g.cfg.Scanner.MaxRetries,
		MinDelay:    g.cfg.Scanner.RetryMinDelay,
		MaxDelay:    g.cfg.Scanner.RetryMaxDelay,
	}
}

func (g *signalGenerator) Sweep(ctx context.Context) (*dto.SweepSummary, error) {
	summary := &dto.SweepSummary{
		TaskType:  string(entity.TaskTypeSignalScan),
		StartedAt: g.clock.Now(),
	}
	defer func() { summary.FinishedAt = g.clock.Now() }()

	markets, err := g.universe(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to build market universe: %w", err)
	}

	recipients, err := g.recipients(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load signal recipients: %w", err)
	}
	if len(recipients) == 0 {
		g.log.WarnContext(ctx, "No signal recipients configured, scan skipped")
		return summary, nil
	}

	fetched := g.fetchCandles(ctx, markets)
	summary.Scanned = len(fetched)

	for _, mc := range fetched {
		if ctx.Err() != nil {
			summary.Record(dto.ItemResult{Market: mc.market, Skipped: true, Error: ctx.Err().Error()})
			continue
		}
		g.scanMarket(ctx, mc, recipients, summary)
	}

	recordItemMetrics(entity.TaskTypeSignalScan, summary)

	g.log.InfoContext(ctx, "Signal scan finished",
		logger.IntField("scanned", summary.Scanned),
		logger.IntField("signals_created", summary.SignalsCreated),
		logger.IntField("duplicates_suppressed", summary.DuplicatesSuppressed),
		logger.IntField("auto_trades", summary.AutoTradesPlaced),
		logger.IntField("failed", summary.Failed))
	return summary, nil
}

// universe is top-N by quote volume plus include_markets minus exclude_markets.
func (g *signalGenerator) universe(ctx context.Context) ([]string, error) {
	var top []string
	err := utils.Retry(ctx, g.retryPolicy(), repository.IsRetryable, func() error {
		var err error
		top, err = g.marketRepo.TopMarketsByVolume(ctx, common.QuoteAsset, g.cfg.Scanner.TopMarkets)
		return err
	})
	if err != nil {
		if len(g.cfg.Scanner.IncludeMarkets) == 0 {
			return nil, err
		}
		g.log.WarnContext(ctx, "Falling back to configured markets", logger.ErrorField(err))
	}
	return mergeUniverse(top, g.cfg.Scanner.IncludeMarkets, g.cfg.Scanner.ExcludeMarkets), nil
}

func mergeUniverse(top, include, exclude []string) []string {
	excluded := make(map[string]struct{}, len(exclude))
	for _, m := range exclude {
		excluded[strings.ToUpper(strings.TrimSpace(m))] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, list := range [][]string{top, include} {
		for _, m := range list {
			m = strings.ToUpper(strings.TrimSpace(m))
			if m == "" {
				continue
			}
			if _, skip := excluded[m]; skip {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

func (g *signalGenerator) recipients(ctx context.Context) ([]int64, error) {
	ids, err := g.settingsRepo.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 && g.cfg.Scanner.DefaultRecipient > 0 {
		ids = []int64{g.cfg.Scanner.DefaultRecipient}
	}
	return ids, nil
}

// fetchCandles loads candles for every market with bounded concurrency. Results keep market order.
func (g *signalGenerator) fetchCandles(ctx context.Context, markets []string) []marketCandles {
	results := make([]marketCandles, len(markets))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Scanner.Concurrency)

	for i, market := range markets {
		i, market := i, market
		eg.Go(func() error {
			var candles []entity.Candle
			err := utils.Retry(egCtx, g.retryPolicy(), repository.IsRetryable, func() error {
				var err error
				candles, err = g.marketRepo.GetCandles(egCtx, market, g.cfg.Scanner.Interval, g.cfg.Scanner.CandleLimit)
				return err
			})
			results[i] = marketCandles{market: market, candles: candles, err: err}
			// per-market failures must not cancel the siblings
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

func (g *signalGenerator) scanMarket(ctx context.Context, mc marketCandles, recipients []int64, summary *dto.SweepSummary) {
	fields := []zap.Field{logger.StringField("market", mc.market)}

	if mc.err != nil {
		g.log.WarnContext(ctx, "Candle fetch failed, market skipped", append(fields, logger.ErrorField(mc.err))...)
		summary.Record(dto.ItemResult{Market: mc.market, Skipped: repository.IsRetryable(mc.err), Error: mc.err.Error()})
		return
	}

	results, err := g.registry.Evaluate(mc.candles)
	if err != nil {
		if errors.Is(err, pattern.ErrInsufficientData) {
			g.log.DebugContext(ctx, "Not enough candles to score", append(fields, logger.ErrorField(err))...)
			summary.Record(dto.ItemResult{Market: mc.market, Skipped: true, Error: err.Error()})
			return
		}
		g.log.WarnContext(ctx, "Failed to score market", append(fields, logger.ErrorField(err))...)
		summary.Record(dto.ItemResult{Market: mc.market, Error: err.Error()})
		return
	}

	var failures []string
	for _, res := range results {
		if res.Score < g.cfg.Scanner.MinScore {
			continue
		}
		for _, userID := range recipients {
			outcome, err := g.createSignal(ctx, userID, mc, res)
			if err != nil {
				g.log.ErrorContext(ctx, "Failed to create signal", append(fields,
					logger.Int64Field("user_id", userID),
					logger.StringField("pattern", res.Pattern),
					logger.ErrorField(err))...)
				failures = append(failures, err.Error())
				continue
			}
			switch outcome {
			case outcomeDuplicate:
				summary.DuplicatesSuppressed++
			case outcomeAutoTraded:
				summary.SignalsCreated++
				summary.AutoTradesPlaced++
			case outcomeCreated:
				summary.SignalsCreated++
			}
		}
	}

	if len(failures) > 0 {
		summary.Record(dto.ItemResult{Market: mc.market, Error: strings.Join(failures, "; ")})
		return
	}
	summary.Record(dto.ItemResult{Market: mc.market, Success: true})
}

type createOutcome int

const (
	outcomeCreated createOutcome = iota
	outcomeDuplicate
	outcomeAutoTraded
)

func (g *signalGenerator) createSignal(ctx context.Context, userID int64, mc marketCandles, res pattern.ScoreResult) (createOutcome, error) {
	settings, err := g.settingsRepo.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrSettingsNotFound) {
		return outcomeCreated, err
	}

	if settings == nil || !settings.AllowsDuplicates() {
		open, err := g.signalRepo.HasOpenSignal(ctx, userID, mc.market)
		if err != nil {
			return outcomeCreated, err
		}
		if open {
			return outcomeDuplicate, nil
		}
	}

	policy, err := PolicyFromSettings(settings, g.cfg.Signal)
	if err != nil {
		return outcomeCreated, fmt.Errorf("user %d: %w", userID, err)
	}

	entry := mc.candles[len(mc.candles)-1].Close
	target, stop := policy.Prices(entry, res.Score, res.Volatility)

	data, err := json.Marshal(signalData{
		Source:     "scanner",
		Interval:   g.cfg.Scanner.Interval,
		BarsSince:  res.BarsSince,
		Components: res.Components,
	})
	if err != nil {
		return outcomeCreated, err
	}

	now := g.clock.Now()
	signal := &entity.Signal{
		UserID:        userID,
		Market:        mc.market,
		Pattern:       res.Pattern,
		Score:         res.Score,
		Confidence:    res.Confidence,
		Timing:        res.Timing,
		Volatility:    res.Volatility,
		EntryPrice:    entry,
		TargetPrice:   target,
		StopLossPrice: stop,
		CurrentPrice:  entry,
		Status:        entity.SignalStatusPending,
		ExpiresAt:     now.Add(g.cfg.Scanner.SignalValidity),
		Data:          datatypes.JSON(data),
		CreatedAt:     now,
	}
	if err := g.signalRepo.Create(ctx, signal); err != nil {
		return outcomeCreated, fmt.Errorf("persist signal: %w", err)
	}
	metrics.SignalsCreatedTotal.WithLabelValues(res.Pattern).Inc()
	g.dispatcher.Notify(ctx, *signal, dto.EventCreated)

	decision, err := g.autoTrader.Evaluate(ctx, signal)
	if err != nil {
		// the signal stays pending for a manual buy
		g.log.WarnContext(ctx, "Auto-trade failed", logger.Int64Field("signal_id", signal.ID), logger.ErrorField(err))
		return outcomeCreated, nil
	}
	if decision.Accepted {
		return outcomeAutoTraded, nil
	}
	return outcomeCreated, nil
}
