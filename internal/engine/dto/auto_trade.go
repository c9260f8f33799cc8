package dto

import "github.com/shopspring/decimal"

// RejectReason explains a declined auto-trade.
type RejectReason string

const (
	RejectNone              RejectReason = ""
	RejectNoSettings        RejectReason = "no_settings"
	RejectInvalidSettings   RejectReason = "invalid_settings"
	RejectDisabled          RejectReason = "disabled"
	RejectLowConfidence     RejectReason = "low_confidence"
	RejectExcludedCoin      RejectReason = "excluded_coin"
	RejectDuplicatePosition RejectReason = "duplicate_position"
	RejectMaxAmountPerCoin  RejectReason = "max_amount_per_coin"
	RejectMaxPositions      RejectReason = "max_positions"
	RejectBudgetExceeded    RejectReason = "budget_exceeded"
)

// AutoTradeDecision is the outcome of evaluating one signal for automation.
type AutoTradeDecision struct {
	SignalID int64           `json:"signal_id"`
	Accepted bool            `json:"accepted"`
	Reason   RejectReason    `json:"reason,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	OrderID  string          `json:"order_id,omitempty"`
}

func Rejected(signalID int64, reason RejectReason) AutoTradeDecision {
	return AutoTradeDecision{SignalID: signalID, Reason: reason}
}
