package service

import (
	"errors"
	"fmt"
	"math"

	"golang-surge-signal/internal/engine/config"
	"golang-surge-signal/internal/engine/repository"
	"golang-surge-signal/internal/entity"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSettings  = errors.New("invalid auto trading settings")
	ErrSettingsNotFound = repository.ErrSettingsNotFound
)

const priceScale = 12

var hundred = decimal.NewFromInt(100)

// PricePolicy turns an anchor price into target and stop-loss prices.
// A zero percentage disables that side and yields a zero price.
type PricePolicy struct {
	StopLossPercent   float64
	TakeProfitPercent float64
	DynamicTarget     bool
	MinTargetPercent  float64
	MaxTargetPercent  float64
}

// DefaultPricePolicy is used for users without settings.
func DefaultPricePolicy(cfg config.Signal) PricePolicy {
	return PricePolicy{
		StopLossPercent:   cfg.StopLossPercent,
		TakeProfitPercent: cfg.TakeProfitPercent,
		DynamicTarget:     cfg.DynamicTarget,
		MinTargetPercent:  cfg.MinTargetPercent,
		MaxTargetPercent:  cfg.MaxTargetPercent,
	}
}

// PolicyFromSettings derives the policy from a user's settings. nil settings fall back to cfg.
func PolicyFromSettings(settings *entity.AutoTradingSettings, cfg config.Signal) (PricePolicy, error) {
	if settings == nil {
		return DefaultPricePolicy(cfg), nil
	}
	if err := settings.Validate(); err != nil {
		return PricePolicy{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	policy := PricePolicy{
		DynamicTarget:    settings.DynamicTargetEnabled,
		MinTargetPercent: settings.MinTargetPercent,
		MaxTargetPercent: settings.MaxTargetPercent,
	}
	if settings.StopLossEnabled {
		policy.StopLossPercent = settings.StopLossPercent
	}
	if settings.TakeProfitEnabled {
		policy.TakeProfitPercent = settings.TakeProfitPercent
	}
	return policy, nil
}

// DynamicTargetPercent picks a target inside [min, max] from pattern strength and volatility.
// Strength weighs the score at 70% and volatility (saturating at 5%) at 30%.
func DynamicTargetPercent(score, volatility, minPct, maxPct float64) float64 {
	if maxPct < minPct {
		minPct, maxPct = maxPct, minPct
	}
	scorePart := math.Max(0, math.Min(score/100, 1))
	volPart := math.Max(0, math.Min(volatility/5, 1))
	strength := 0.7*scorePart + 0.3*volPart

	pct := minPct + (maxPct-minPct)*strength
	pct = math.Max(minPct, math.Min(pct, maxPct))
	return math.Round(pct*100) / 100
}

// TargetPercent is the take-profit percentage for a pattern of the given strength.
func (p PricePolicy) TargetPercent(score, volatility float64) float64 {
	if p.DynamicTarget {
		return DynamicTargetPercent(score, volatility, p.MinTargetPercent, p.MaxTargetPercent)
	}
	return p.TakeProfitPercent
}

// Prices computes target = anchor*(1+tp/100) and stop = anchor*(1-sl/100).
func (p PricePolicy) Prices(anchor decimal.Decimal, score, volatility float64) (target, stop decimal.Decimal) {
	if tp := p.TargetPercent(score, volatility); tp > 0 {
		target = anchor.Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(tp).Div(hundred))).Round(priceScale)
	}
	if p.StopLossPercent > 0 {
		stop = anchor.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(p.StopLossPercent).Div(hundred))).Round(priceScale)
	}
	return target, stop
}
