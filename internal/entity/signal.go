package entity

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrOrderAlreadySet = errors.New("order id already recorded for signal")
	ErrInvalidPrice    = errors.New("price must be positive")
)

var hundred = decimal.NewFromInt(100)

// percentScale matches the numeric(20,8) profit_loss_percent column.
const percentScale = 8

// Signal is a detected surge opportunity for one user and market.
type Signal struct {
	ID         int64   `gorm:"primaryKey" json:"id"`
	UserID     int64   `gorm:"not null;index" json:"user_id"`
	Market     string  `gorm:"type:varchar(32);not null;index" json:"market"`
	Pattern    string  `gorm:"type:varchar(64);not null" json:"pattern"`
	Score      float64 `gorm:"not null" json:"score"`
	Confidence float64 `gorm:"not null" json:"confidence"`
	Timing     Timing  `gorm:"type:varchar(16);not null" json:"timing"`
	Volatility float64 `gorm:"not null;default:0" json:"volatility"`

	EntryPrice        decimal.Decimal     `gorm:"type:numeric(30,12);not null" json:"entry_price"`
	TargetPrice       decimal.Decimal     `gorm:"type:numeric(30,12);not null" json:"target_price"`
	StopLossPrice     decimal.Decimal     `gorm:"type:numeric(30,12);not null" json:"stop_loss_price"`
	CurrentPrice      decimal.Decimal     `gorm:"type:numeric(30,12);not null" json:"current_price"`
	ExitPrice         decimal.NullDecimal `gorm:"type:numeric(30,12)" json:"exit_price"`
	TradeAmount       decimal.Decimal     `gorm:"type:numeric(30,12);not null;default:0" json:"trade_amount"`
	ProfitLoss        decimal.Decimal     `gorm:"type:numeric(30,12);not null;default:0" json:"profit_loss"`
	ProfitLossPercent decimal.Decimal     `gorm:"type:numeric(20,8);not null;default:0" json:"profit_loss_percent"`

	Status          SignalStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CloseReason     CloseReason  `gorm:"type:varchar(32);not null;default:none" json:"close_reason"`
	UserAction      UserAction   `gorm:"type:varchar(16);not null;default:none" json:"user_action"`
	ActionTimestamp *time.Time   `json:"action_timestamp,omitempty"`
	OrderID         *string      `gorm:"type:varchar(64)" json:"order_id,omitempty"`
	SentAt          *time.Time   `json:"sent_at,omitempty"`
	ExpiresAt       time.Time    `gorm:"not null;index" json:"expires_at"`
	ClosedAt        *time.Time   `json:"closed_at,omitempty"`

	Data    datatypes.JSON `gorm:"type:jsonb" json:"data,omitempty"`
	Version int64          `gorm:"not null;default:1" json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Signal) TableName() string {
	return "signals"
}

// BeforeSave keeps status valid and the profit fields in step with the exit price.
func (s *Signal) BeforeSave(tx *gorm.DB) error {
	if s.Status == "" {
		s.Status = SignalStatusPending
	}
	if !s.Status.IsValid() {
		_, err := ParseSignalStatus(string(s.Status))
		return err
	}
	if s.CloseReason == "" {
		s.CloseReason = CloseReasonNone
	}
	if s.UserAction == "" {
		s.UserAction = UserActionNone
	}
	s.RecalculateProfit()
	return nil
}

// RecalculateProfit derives profit_loss and profit_loss_percent from the exit price when
// one is recorded, otherwise from the current price.
func (s *Signal) RecalculateProfit() {
	ref := s.CurrentPrice
	if s.ExitPrice.Valid {
		ref = s.ExitPrice.Decimal
	}
	if ref.IsZero() && !s.ExitPrice.Valid {
		s.ProfitLoss = decimal.Zero
		s.ProfitLossPercent = decimal.Zero
		return
	}
	s.ProfitLoss = ref.Sub(s.EntryPrice)
	s.ProfitLossPercent = PercentChange(s.EntryPrice, ref)
}

// PercentChange returns (to - from) / from * 100 rounded to the stored scale, or 0 when
// from is zero.
func PercentChange(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Mul(hundred).DivRound(from, percentScale)
}

func (s *Signal) transition(to SignalStatus) error {
	if !s.Status.CanTransitionTo(to) {
		return &InvalidTransitionError{SignalID: s.ID, From: s.Status, To: to}
	}
	s.Status = to
	return nil
}

// BuyFill describes an executed entry used to re-anchor a signal.
type BuyFill struct {
	FillPrice   decimal.Decimal
	TargetPrice decimal.Decimal
	StopLoss    decimal.Decimal
	OrderID     string
	TradeAmount decimal.Decimal
	At          time.Time
}

// MarkBought moves a pending signal to bought and re-anchors its prices on the fill.
func (s *Signal) MarkBought(fill BuyFill) error {
	if !fill.FillPrice.IsPositive() {
		return ErrInvalidPrice
	}
	if s.OrderID != nil && fill.OrderID != "" {
		return ErrOrderAlreadySet
	}
	if err := s.transition(SignalStatusBought); err != nil {
		return err
	}

	at := fill.At
	s.EntryPrice = fill.FillPrice
	s.TargetPrice = fill.TargetPrice
	s.StopLossPrice = fill.StopLoss
	s.CurrentPrice = fill.FillPrice
	s.TradeAmount = fill.TradeAmount
	s.UserAction = UserActionBought
	s.ActionTimestamp = &at
	if fill.OrderID != "" {
		orderID := fill.OrderID
		s.OrderID = &orderID
	}
	s.RecalculateProfit()
	return nil
}

// MarkPrice records the latest observed price of a bought signal.
func (s *Signal) MarkPrice(price decimal.Decimal) error {
	if s.Status != SignalStatusBought {
		return &InvalidTransitionError{SignalID: s.ID, From: s.Status, To: s.Status}
	}
	if !price.IsPositive() {
		return ErrInvalidPrice
	}
	s.CurrentPrice = price
	s.RecalculateProfit()
	return nil
}

// Close finalises a bought signal as win, lose or closed at the exit price.
func (s *Signal) Close(status SignalStatus, reason CloseReason, exit decimal.Decimal, at time.Time) error {
	if status != SignalStatusWin && status != SignalStatusLose && status != SignalStatusClosed {
		return &InvalidTransitionError{SignalID: s.ID, From: s.Status, To: status}
	}
	if !exit.IsPositive() {
		return ErrInvalidPrice
	}
	if err := s.transition(status); err != nil {
		return err
	}
	s.CurrentPrice = exit
	s.ExitPrice = decimal.NullDecimal{Decimal: exit, Valid: true}
	s.CloseReason = reason
	s.ClosedAt = &at
	s.RecalculateProfit()
	return nil
}

// Expire retires a pending signal that was never acted on.
func (s *Signal) Expire(at time.Time) error {
	if err := s.transition(SignalStatusExpired); err != nil {
		return err
	}
	s.CloseReason = CloseReasonExpired
	s.ClosedAt = &at
	return nil
}

// IsExpired reports whether a pending signal is past its validity window.
func (s *Signal) IsExpired(now time.Time) bool {
	return s.Status == SignalStatusPending && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// RealizedAmount is trade_amount * profit_loss_percent / 100.
func (s *Signal) RealizedAmount() decimal.Decimal {
	return s.TradeAmount.Mul(s.ProfitLossPercent).Div(hundred)
}
