package dto

import "github.com/shopspring/decimal"

// OrderResult is what the exchange reports for a filled market buy.
type OrderResult struct {
	OrderID     string          `json:"order_id"`
	FillPrice   decimal.Decimal `json:"fill_price"`
	ExecutedQty decimal.Decimal `json:"executed_qty"`
	QuoteAmount decimal.Decimal `json:"quote_amount"`
}

// MarketTicker is a 24h summary used to rank the market universe.
type MarketTicker struct {
	Symbol      string
	LastPrice   decimal.Decimal
	QuoteVolume decimal.Decimal
}
