package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type RiskLevel string

const (
	RiskLevelConservative RiskLevel = "conservative"
	RiskLevelModerate     RiskLevel = "moderate"
	RiskLevelAggressive   RiskLevel = "aggressive"
)

type PositionStrategy string

const (
	PositionStrategySingle   PositionStrategy = "single"
	PositionStrategyMultiple PositionStrategy = "multiple"
)

// AutoTradingSettings holds one user's automation and risk configuration together with
// running statistics. Rows are created on first access and never deleted.
type AutoTradingSettings struct {
	ID      int64 `gorm:"primaryKey" json:"id"`
	UserID  int64 `gorm:"not null;uniqueIndex" json:"user_id"`
	Enabled bool  `gorm:"not null;default:false" json:"enabled"`

	TotalBudget    decimal.Decimal `gorm:"type:numeric(30,12);not null" json:"total_budget"`
	AmountPerTrade decimal.Decimal `gorm:"type:numeric(30,12);not null" json:"amount_per_trade"`
	RiskLevel      RiskLevel       `gorm:"type:varchar(16);not null" json:"risk_level"`

	StopLossEnabled   bool    `gorm:"not null" json:"stop_loss_enabled"`
	StopLossPercent   float64 `gorm:"not null" json:"stop_loss_percent"`
	TakeProfitEnabled bool    `gorm:"not null" json:"take_profit_enabled"`
	TakeProfitPercent float64 `gorm:"not null" json:"take_profit_percent"`
	MinConfidence     float64 `gorm:"not null" json:"min_confidence"`
	MaxPositions      int     `gorm:"not null" json:"max_positions"`

	ExcludedCoins           pq.StringArray   `gorm:"type:text[]" json:"excluded_coins"`
	PositionStrategy        PositionStrategy `gorm:"type:varchar(16);not null" json:"position_strategy"`
	MaxAmountPerCoin        decimal.Decimal  `gorm:"type:numeric(30,12);not null" json:"max_amount_per_coin"`
	AllowDuplicatePositions bool             `gorm:"not null" json:"allow_duplicate_positions"`

	DynamicTargetEnabled bool    `gorm:"not null" json:"dynamic_target_enabled"`
	MinTargetPercent     float64 `gorm:"not null" json:"min_target_percent"`
	MaxTargetPercent     float64 `gorm:"not null" json:"max_target_percent"`

	TotalTrades      int             `gorm:"not null;default:0" json:"total_trades"`
	SuccessfulTrades int             `gorm:"not null;default:0" json:"successful_trades"`
	TotalProfitLoss  decimal.Decimal `gorm:"type:numeric(30,12);not null;default:0" json:"total_profit_loss"`

	// Budget tracking, written only with in-place increments.
	CommittedAmount decimal.Decimal `gorm:"type:numeric(30,12);not null;default:0" json:"committed_amount"`
	OpenPositions   int             `gorm:"not null;default:0" json:"open_positions"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AutoTradingSettings) TableName() string {
	return "auto_trading_settings"
}

// DefaultAutoTradingSettings is the row created for a user on first access.
func DefaultAutoTradingSettings(userID int64) *AutoTradingSettings {
	return &AutoTradingSettings{
		UserID:            userID,
		Enabled:           false,
		TotalBudget:       decimal.NewFromInt(1000),
		AmountPerTrade:    decimal.NewFromInt(100),
		RiskLevel:         RiskLevelModerate,
		StopLossEnabled:   true,
		StopLossPercent:   5,
		TakeProfitEnabled: true,
		TakeProfitPercent: 10,
		MinConfidence:     70,
		MaxPositions:      5,
		ExcludedCoins:     pq.StringArray{},
		PositionStrategy:  PositionStrategySingle,
		MaxAmountPerCoin:  decimal.NewFromInt(200),
		MinTargetPercent:  5,
		MaxTargetPercent:  15,
		TotalProfitLoss:   decimal.Zero,
		CommittedAmount:   decimal.Zero,
	}
}

// Validate checks the bounds the price policy and decision engine rely on.
func (s *AutoTradingSettings) Validate() error {
	var problems []string
	if s.StopLossEnabled && (s.StopLossPercent <= 0 || s.StopLossPercent >= 100) {
		problems = append(problems, "stop_loss_percent must be in (0, 100)")
	}
	if s.TakeProfitEnabled && s.TakeProfitPercent <= 0 {
		problems = append(problems, "take_profit_percent must be positive")
	}
	if s.DynamicTargetEnabled && (s.MinTargetPercent <= 0 || s.MaxTargetPercent < s.MinTargetPercent) {
		problems = append(problems, "target percent bounds must satisfy 0 < min <= max")
	}
	if s.MinConfidence < 0 || s.MinConfidence > 100 {
		problems = append(problems, "min_confidence must be in [0, 100]")
	}
	if s.AmountPerTrade.IsNegative() || s.TotalBudget.IsNegative() || s.MaxAmountPerCoin.IsNegative() {
		problems = append(problems, "amounts must not be negative")
	}
	if s.MaxPositions < 0 {
		problems = append(problems, "max_positions must not be negative")
	}
	switch s.RiskLevel {
	case RiskLevelConservative, RiskLevelModerate, RiskLevelAggressive:
	default:
		problems = append(problems, fmt.Sprintf("unknown risk_level %q", s.RiskLevel))
	}
	switch s.PositionStrategy {
	case PositionStrategySingle, PositionStrategyMultiple:
	default:
		problems = append(problems, fmt.Sprintf("unknown position_strategy %q", s.PositionStrategy))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// IsExcluded matches market against the excluded list by full symbol or base asset.
func (s *AutoTradingSettings) IsExcluded(market string) bool {
	market = strings.ToUpper(market)
	base := BaseAsset(market)
	for _, coin := range s.ExcludedCoins {
		coin = strings.ToUpper(strings.TrimSpace(coin))
		if coin == "" {
			continue
		}
		if coin == market || coin == base {
			return true
		}
	}
	return false
}

// AllowsDuplicates reports whether more than one open signal per market is permitted.
func (s *AutoTradingSettings) AllowsDuplicates() bool {
	return s.AllowDuplicatePositions || s.PositionStrategy == PositionStrategyMultiple
}

// BaseAsset strips a known quote asset suffix from a market symbol.
func BaseAsset(market string) string {
	market = strings.ToUpper(market)
	for _, quote := range []string{"USDT", "USDC", "FDUSD", "BUSD", "BTC", "ETH"} {
		if strings.HasSuffix(market, quote) && len(market) > len(quote) {
			return strings.TrimSuffix(market, quote)
		}
	}
	return market
}
