package dto

import (
	"github.com/shopspring/decimal"
)

// UpdateSettingsRequest replaces the editable part of a user's automation settings.
type UpdateSettingsRequest struct {
	Enabled                 bool            `json:"enabled"`
	TotalBudget             decimal.Decimal `json:"total_budget"`
	AmountPerTrade          decimal.Decimal `json:"amount_per_trade"`
	RiskLevel               string          `json:"risk_level" validate:"required,oneof=conservative moderate aggressive"`
	StopLossEnabled         bool            `json:"stop_loss_enabled"`
	StopLossPercent         float64         `json:"stop_loss_percent" validate:"gte=0,lt=100"`
	TakeProfitEnabled       bool            `json:"take_profit_enabled"`
	TakeProfitPercent       float64         `json:"take_profit_percent" validate:"gte=0"`
	MinConfidence           float64         `json:"min_confidence" validate:"gte=0,lte=100"`
	MaxPositions            int             `json:"max_positions" validate:"gte=0"`
	ExcludedCoins           []string        `json:"excluded_coins"`
	PositionStrategy        string          `json:"position_strategy" validate:"required,oneof=single multiple"`
	MaxAmountPerCoin        decimal.Decimal `json:"max_amount_per_coin"`
	AllowDuplicatePositions bool            `json:"allow_duplicate_positions"`
	DynamicTargetEnabled    bool            `json:"dynamic_target_enabled"`
	MinTargetPercent        float64         `json:"min_target_percent" validate:"gte=0"`
	MaxTargetPercent        float64         `json:"max_target_percent" validate:"gte=0"`
}
