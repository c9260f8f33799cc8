package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/adshao/go-binance/v2"
	binancecommon "github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"too many requests", &binancecommon.APIError{Code: -1003, Message: "Too many requests"}, ErrRateLimited},
		{"order rate", &binancecommon.APIError{Code: -1015, Message: "Too many new orders"}, ErrRateLimited},
		{"disconnected", &binancecommon.APIError{Code: -1001, Message: "Internal error"}, ErrTransient},
		{"timeout", &binancecommon.APIError{Code: -1007, Message: "Timeout waiting for response"}, ErrTransient},
		{"balance", &binancecommon.APIError{Code: -2010, Message: "Account has insufficient balance for requested action."}, ErrInsufficientBalance},
		{"bad symbol", &binancecommon.APIError{Code: -1121, Message: "Invalid symbol."}, ErrMarketClosed},
		{"closed market", &binancecommon.APIError{Code: -2010, Message: "Market is closed."}, ErrMarketClosed},
		{"filter", &binancecommon.APIError{Code: -1013, Message: "Filter failure: NOTIONAL"}, ErrOrderRejected},
		{"breaker open", fmt.Errorf("klines: %w", gobreaker.ErrOpenState), ErrTransient},
		{"deadline", context.DeadlineExceeded, ErrTransient},
		{"network", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, ErrTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyError(tc.err)
			assert.True(t, errors.Is(got, tc.want), "got %v", got)
		})
	}

	other := &binancecommon.APIError{Code: -1100, Message: "Illegal characters"}
	got := classifyError(other)
	assert.False(t, IsRetryable(got))
	assert.Contains(t, got.Error(), "-1100")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", ErrRateLimited)))
	assert.True(t, IsRetryable(ErrTransient))
	assert.False(t, IsRetryable(ErrInsufficientBalance))
	assert.False(t, IsRetryable(ErrMalformedData))
}

func TestIsSpotCandidate(t *testing.T) {
	assert.True(t, isSpotCandidate("BTCUSDT", "USDT"))
	assert.True(t, isSpotCandidate("PEPEUSDT", "USDT"))
	assert.False(t, isSpotCandidate("BTCUPUSDT", "USDT"))
	assert.False(t, isSpotCandidate("ETHDOWNUSDT", "USDT"))
	assert.False(t, isSpotCandidate("USDCUSDT", "USDT"))
	assert.False(t, isSpotCandidate("FDUSDUSDT", "USDT"))
	assert.False(t, isSpotCandidate("ETHBTC", "USDT"))
	assert.False(t, isSpotCandidate("USDT", "USDT"))
}

func TestOrderResultFrom(t *testing.T) {
	res, err := orderResultFrom(&binance.CreateOrderResponse{
		OrderID:                  991,
		ExecutedQuantity:         "0.5",
		CummulativeQuoteQuantity: "55",
	})
	require.NoError(t, err)
	assert.Equal(t, "991", res.OrderID)
	assert.True(t, res.FillPrice.Equal(decimal.NewFromInt(110)))
	assert.True(t, res.QuoteAmount.Equal(decimal.NewFromInt(55)))

	res, err = orderResultFrom(&binance.CreateOrderResponse{
		OrderID:                  992,
		ExecutedQuantity:         "0",
		CummulativeQuoteQuantity: "0",
		Fills:                    []*binance.Fill{{Price: "0.0001234", Quantity: "1000"}},
	})
	require.NoError(t, err)
	assert.True(t, res.FillPrice.Equal(decimal.RequireFromString("0.0001234")))

	_, err = orderResultFrom(&binance.CreateOrderResponse{ExecutedQuantity: "0", CummulativeQuoteQuantity: "0"})
	assert.Error(t, err)

	_, err = orderResultFrom(&binance.CreateOrderResponse{ExecutedQuantity: "abc", CummulativeQuoteQuantity: "0"})
	assert.Error(t, err)
}

func TestParseKline(t *testing.T) {
	c, err := parseKline(&binance.Kline{
		OpenTime:  1700000000000,
		CloseTime: 1700000899999,
		Open:      "1.00",
		High:      "1.20",
		Low:       "0.95",
		Close:     "1.10",
		Volume:    "12345.6",
	})
	require.NoError(t, err)
	assert.True(t, c.Close.Equal(decimal.RequireFromString("1.1")))
	assert.Equal(t, int64(1700000000000), c.OpenTime.UnixMilli())

	_, err = parseKline(&binance.Kline{Open: "x"})
	assert.Error(t, err)
}
