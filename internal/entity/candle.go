package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. Candles are never persisted.
type Candle struct {
	OpenTime  time.Time
	CloseTime time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}
