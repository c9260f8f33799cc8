package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"golang-surge-signal/internal/engine/config"
	"golang-surge-signal/internal/engine/dto"
	"golang-surge-signal/internal/entity"
	"golang-surge-signal/pkg/common"
	"golang-surge-signal/pkg/logger"
	"golang-surge-signal/pkg/metrics"

	"github.com/adshao/go-binance/v2"
	binancecommon "github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var (
	ErrRateLimited         = errors.New("exchange rate limit exceeded")
	ErrTransient           = errors.New("transient exchange failure")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMarketClosed        = errors.New("market closed or not tradable")
	ErrOrderRejected       = errors.New("order rejected by exchange")
	ErrMalformedData       = errors.New("malformed exchange data")
)

// IsRetryable reports whether err is worth another attempt after a backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

// MarketDataRepository is the read side of the exchange.
type MarketDataRepository interface {
	GetCandles(ctx context.Context, market, interval string, limit int) ([]entity.Candle, error)
	GetCurrentPrice(ctx context.Context, market string) (decimal.Decimal, error)
	TopMarketsByVolume(ctx context.Context, quote string, n int) ([]string, error)
}

// ExchangeRepository places orders.
type ExchangeRepository interface {
	PlaceMarketBuy(ctx context.Context, market string, quoteAmount decimal.Decimal) (*dto.OrderResult, error)
}

type binanceRepository struct {
	cfg            *config.Config
	log            *logger.Logger
	client         *binance.Client
	requestLimiter *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	universe       *gocache.Cache
	redisClient    *goRedis.Client
	now            func() time.Time
}

// NewBinanceRepository builds the Binance backed market data and order repository.
// redisClient may be nil, in which case prices are not cached.
func NewBinanceRepository(cfg *config.Config, log *logger.Logger, redisClient *goRedis.Client) *binanceRepository {
	client := binance.NewClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey)
	if cfg.Exchange.BaseURL != "" {
		client.BaseURL = cfg.Exchange.BaseURL
	}

	perRequest := time.Minute / time.Duration(cfg.Exchange.MaxRequestPerMinute)
	maxFailures := cfg.Exchange.BreakerMaxFailures

	repo := &binanceRepository{
		cfg:            cfg,
		log:            log,
		client:         client,
		requestLimiter: rate.NewLimiter(rate.Every(perRequest), 5),
		universe:       gocache.New(cfg.Scanner.UniverseRefresh, 2*cfg.Scanner.UniverseRefresh),
		redisClient:    redisClient,
		now:            time.Now,
	}
	repo.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "binance-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     cfg.Exchange.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Business rejections say nothing about exchange health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiErr *binancecommon.APIError
			if errors.As(err, &apiErr) {
				return !isRateLimitCode(apiErr.Code)
			}
			return false
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				logger.StringField("name", name),
				logger.StringField("from", from.String()),
				logger.StringField("to", to.String()))
		},
	})
	return repo
}

func (r *binanceRepository) call(ctx context.Context, endpoint string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrTransient, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.Exchange.RequestTimeout)
	defer cancel()

	start := time.Now()
	out, err := r.breaker.Execute(func() (interface{}, error) {
		return fn(reqCtx)
	})
	metrics.ExchangeRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		mapped := classifyError(err)
		metrics.ExchangeRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		r.log.DebugContext(ctx, "Exchange request failed",
			logger.StringField("endpoint", endpoint),
			logger.ErrorField(err))
		return nil, mapped
	}
	metrics.ExchangeRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return out, nil
}

func isRateLimitCode(code int64) bool {
	return code == -1003 || code == -1015
}

// classifyError maps SDK and transport failures onto the repository error kinds.
func classifyError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	var apiErr *binancecommon.APIError
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Message)
		switch {
		case isRateLimitCode(apiErr.Code):
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		case apiErr.Code == -1001 || apiErr.Code == -1007:
			return fmt.Errorf("%w: %s", ErrTransient, apiErr.Message)
		case apiErr.Code == -2010 && strings.Contains(msg, "insufficient balance"):
			return fmt.Errorf("%w: %s", ErrInsufficientBalance, apiErr.Message)
		case apiErr.Code == -1121 || strings.Contains(msg, "market is closed") || strings.Contains(msg, "trading is disabled"):
			return fmt.Errorf("%w: %s", ErrMarketClosed, apiErr.Message)
		case apiErr.Code == -2010 || apiErr.Code == -1013:
			return fmt.Errorf("%w: %s", ErrOrderRejected, apiErr.Message)
		}
		return fmt.Errorf("binance api error %d: %s", apiErr.Code, apiErr.Message)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}

func (r *binanceRepository) GetCandles(ctx context.Context, market, interval string, limit int) ([]entity.Candle, error) {
	out, err := r.call(ctx, "klines", func(ctx context.Context) (interface{}, error) {
		return r.client.NewKlinesService().Symbol(market).Interval(interval).Limit(limit).Do(ctx)
	})
	if err != nil {
		return nil, err
	}
	klines := out.([]*binance.Kline)

	now := r.now()
	candles := make([]entity.Candle, 0, len(klines))
	for _, k := range klines {
		closeTime := time.UnixMilli(k.CloseTime).UTC()
		if closeTime.After(now) {
			// still forming
			continue
		}
		candle, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %s kline %d: %v", ErrMalformedData, market, k.OpenTime, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseKline(k *binance.Kline) (entity.Candle, error) {
	var (
		c   entity.Candle
		err error
	)
	if c.Open, err = decimal.NewFromString(k.Open); err != nil {
		return c, err
	}
	if c.High, err = decimal.NewFromString(k.High); err != nil {
		return c, err
	}
	if c.Low, err = decimal.NewFromString(k.Low); err != nil {
		return c, err
	}
	if c.Close, err = decimal.NewFromString(k.Close); err != nil {
		return c, err
	}
	if c.Volume, err = decimal.NewFromString(k.Volume); err != nil {
		return c, err
	}
	c.OpenTime = time.UnixMilli(k.OpenTime).UTC()
	c.CloseTime = time.UnixMilli(k.CloseTime).UTC()
	return c, nil
}

func (r *binanceRepository) GetCurrentPrice(ctx context.Context, market string) (decimal.Decimal, error) {
	cacheKey := common.RedisLastPricePrefix + market
	if r.redisClient != nil {
		if cached, err := r.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			if price, err := decimal.NewFromString(cached); err == nil {
				return price, nil
			}
		}
	}

	out, err := r.call(ctx, "ticker_price", func(ctx context.Context) (interface{}, error) {
		return r.client.NewListPricesService().Symbol(market).Do(ctx)
	})
	if err != nil {
		return decimal.Zero, err
	}

	prices := out.([]*binance.SymbolPrice)
	for _, p := range prices {
		if p.Symbol != market {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil || !price.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: price %q for %s", ErrMalformedData, p.Price, market)
		}
		if r.redisClient != nil {
			if err := r.redisClient.Set(ctx, cacheKey, price.String(), r.cfg.Exchange.PriceCacheTTL).Err(); err != nil {
				r.log.WarnContext(ctx, "Failed to cache price", logger.StringField("market", market), logger.ErrorField(err))
			}
		}
		return price, nil
	}
	return decimal.Zero, fmt.Errorf("%w: no price for %s", ErrMarketClosed, market)
}

func (r *binanceRepository) TopMarketsByVolume(ctx context.Context, quote string, n int) ([]string, error) {
	cacheKey := fmt.Sprintf("universe:%s:%d", quote, n)
	if cached, ok := r.universe.Get(cacheKey); ok {
		return cached.([]string), nil
	}

	out, err := r.call(ctx, "ticker_24hr", func(ctx context.Context) (interface{}, error) {
		return r.client.NewListPriceChangeStatsService().Do(ctx)
	})
	if err != nil {
		return nil, err
	}

	stats := out.([]*binance.PriceChangeStats)
	tickers := make([]dto.MarketTicker, 0, len(stats))
	for _, s := range stats {
		if !isSpotCandidate(s.Symbol, quote) {
			continue
		}
		vol, err := decimal.NewFromString(s.QuoteVolume)
		if err != nil || vol.IsZero() {
			continue
		}
		last, _ := decimal.NewFromString(s.LastPrice)
		tickers = append(tickers, dto.MarketTicker{Symbol: s.Symbol, LastPrice: last, QuoteVolume: vol})
	}

	sort.Slice(tickers, func(i, j int) bool { return tickers[i].QuoteVolume.GreaterThan(tickers[j].QuoteVolume) })
	if n > 0 && len(tickers) > n {
		tickers = tickers[:n]
	}
	markets := make([]string, 0, len(tickers))
	for _, t := range tickers {
		markets = append(markets, t.Symbol)
	}

	r.universe.SetDefault(cacheKey, markets)
	return markets, nil
}

// isSpotCandidate drops leveraged tokens and stablecoin pairs.
func isSpotCandidate(symbol, quote string) bool {
	if !strings.HasSuffix(symbol, quote) || len(symbol) <= len(quote) {
		return false
	}
	base := strings.TrimSuffix(symbol, quote)
	for _, suffix := range []string{"UP", "DOWN", "BULL", "BEAR"} {
		if strings.HasSuffix(base, suffix) && len(base) > len(suffix) {
			return false
		}
	}
	switch base {
	case "USDC", "FDUSD", "TUSD", "BUSD", "DAI", "USDP", "EUR":
		return false
	}
	return true
}

func (r *binanceRepository) PlaceMarketBuy(ctx context.Context, market string, quoteAmount decimal.Decimal) (*dto.OrderResult, error) {
	if !quoteAmount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrOrderRejected)
	}
	clientOrderID := uuid.NewString()

	out, err := r.call(ctx, "order", func(ctx context.Context) (interface{}, error) {
		return r.client.NewCreateOrderService().
			Symbol(market).
			Side(binance.SideTypeBuy).
			Type(binance.OrderTypeMarket).
			QuoteOrderQty(quoteAmount.String()).
			NewClientOrderID(clientOrderID).
			Do(ctx)
	})
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to place market buy",
			logger.StringField("market", market),
			logger.StringField("client_order_id", clientOrderID),
			logger.ErrorField(err))
		return nil, err
	}

	resp := out.(*binance.CreateOrderResponse)
	result, err := orderResultFrom(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: order %d: %v", ErrMalformedData, resp.OrderID, err)
	}
	r.log.InfoContext(ctx, "Market buy filled",
		logger.StringField("market", market),
		logger.StringField("order_id", result.OrderID),
		logger.StringField("fill_price", result.FillPrice.String()))
	return result, nil
}

func orderResultFrom(resp *binance.CreateOrderResponse) (*dto.OrderResult, error) {
	qty, err := decimal.NewFromString(resp.ExecutedQuantity)
	if err != nil {
		return nil, err
	}
	quote, err := decimal.NewFromString(resp.CummulativeQuoteQuantity)
	if err != nil {
		return nil, err
	}

	var fill decimal.Decimal
	if qty.IsPositive() {
		fill = quote.Div(qty)
	} else if len(resp.Fills) > 0 {
		fill, err = decimal.NewFromString(resp.Fills[0].Price)
		if err != nil {
			return nil, err
		}
	}
	if !fill.IsPositive() {
		return nil, errors.New("order has no fill")
	}

	return &dto.OrderResult{
		OrderID:     fmt.Sprintf("%d", resp.OrderID),
		FillPrice:   fill,
		ExecutedQty: qty,
		QuoteAmount: quote,
	}, nil
}
