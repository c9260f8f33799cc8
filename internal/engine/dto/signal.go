package dto

import (
	"time"

	"golang-surge-signal/internal/entity"

	"github.com/shopspring/decimal"
)

// ListSignalsParam filters a paginated signal query.
type ListSignalsParam struct {
	UserID *int64
	Status *entity.SignalStatus
	Market string
	Limit  int
	Offset int
}

// SignalPage is one page of signals plus the total across all pages.
type SignalPage struct {
	Items  []entity.Signal `json:"items"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// SignalAggregate is the raw per-user aggregate read from storage.
type SignalAggregate struct {
	Total           int64
	Executed        int64
	Wins            int64
	Losses          int64
	WinPercentSum   decimal.Decimal
	LossPercentSum  decimal.Decimal
	TotalProfitLoss decimal.Decimal
}

// SignalStats is the per-user performance summary.
type SignalStats struct {
	UserID          int64           `json:"user_id"`
	TotalSignals    int64           `json:"total_signals"`
	ExecutedSignals int64           `json:"executed_signals"`
	ExecutionRate   float64         `json:"execution_rate"`
	Wins            int64           `json:"wins"`
	Losses          int64           `json:"losses"`
	WinRate         float64         `json:"win_rate"`
	AvgWinPercent   float64         `json:"avg_win_percent"`
	AvgLossPercent  float64         `json:"avg_loss_percent"`
	TotalProfitLoss decimal.Decimal `json:"total_profit_loss"`
}

// CreateSignalRequest is the admin payload for a manual signal.
type CreateSignalRequest struct {
	UserID            int64           `json:"user_id" validate:"required,gt=0"`
	Market            string          `json:"market" validate:"required,min=5,max=32"`
	Pattern           string          `json:"pattern"`
	EntryPrice        decimal.Decimal `json:"entry_price"`
	Score             float64         `json:"score" validate:"gte=0,lte=100"`
	Confidence        float64         `json:"confidence" validate:"gte=0,lte=100"`
	TakeProfitPercent *float64        `json:"take_profit_percent,omitempty" validate:"omitempty,gt=0"`
	StopLossPercent   *float64        `json:"stop_loss_percent,omitempty" validate:"omitempty,gt=0,lt=100"`
	Validity          string          `json:"validity,omitempty"`
	Notify            bool            `json:"notify"`
}

// ManualBuyRequest triggers an order for a pending signal.
type ManualBuyRequest struct {
	UserID int64            `json:"user_id" validate:"required,gt=0"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

// ManualCloseRequest closes a bought signal. Without ExitPrice the latest market price is used.
type ManualCloseRequest struct {
	UserID    int64            `json:"user_id" validate:"required,gt=0"`
	ExitPrice *decimal.Decimal `json:"exit_price,omitempty"`
}

// ActionResult is the envelope returned by user and admin actions.
type ActionResult struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ManualBuyResult is the data of a successful manual buy.
type ManualBuyResult struct {
	SignalID      int64           `json:"signal_id"`
	OrderID       string          `json:"order_id"`
	FillPrice     decimal.Decimal `json:"fill_price"`
	TargetPrice   decimal.Decimal `json:"target_price"`
	StopLossPrice decimal.Decimal `json:"stop_loss_price"`
	ExecutedAt    time.Time       `json:"executed_at"`
}
