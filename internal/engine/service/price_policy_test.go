package service

import (
	"errors"
	"testing"

	"golang-surge-signal/internal/engine/config"
	"golang-surge-signal/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricePolicyPrices(t *testing.T) {
	policy := PricePolicy{StopLossPercent: 5, TakeProfitPercent: 10}

	target, stop := policy.Prices(dec("110"), 80, 1)
	assert.True(t, target.Equal(dec("121")), "target %s", target)
	assert.True(t, stop.Equal(dec("104.5")), "stop %s", stop)

	target, stop = policy.Prices(dec("0.00001234"), 80, 1)
	assert.True(t, target.Equal(dec("0.000013574")), "target %s", target)
	assert.True(t, stop.Equal(dec("0.000011723")), "stop %s", stop)
}

func TestPricePolicyDisabledSides(t *testing.T) {
	target, stop := PricePolicy{TakeProfitPercent: 10}.Prices(dec("100"), 80, 1)
	assert.True(t, target.Equal(dec("110")))
	assert.True(t, stop.IsZero())

	target, stop = PricePolicy{StopLossPercent: 5}.Prices(dec("100"), 80, 1)
	assert.True(t, target.IsZero())
	assert.True(t, stop.Equal(dec("95")))
}

func TestDynamicTargetPercent(t *testing.T) {
	cases := []struct {
		name       string
		score, vol float64
		want       float64
	}{
		{"weakest", 0, 0, 5},
		{"strongest", 100, 5, 15},
		{"middle", 50, 2.5, 10},
		{"clamped inputs", 250, -3, 12},
		{"volatility saturates", 0, 50, 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DynamicTargetPercent(tc.score, tc.vol, 5, 15)
			assert.InDelta(t, tc.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 5.0)
			assert.LessOrEqual(t, got, 15.0)
		})
	}

	assert.InDelta(t, 10.0, DynamicTargetPercent(50, 2.5, 15, 5), 1e-9, "swapped bounds")
}

func TestPolicyFromSettings(t *testing.T) {
	cfg := config.Signal{StopLossPercent: 4, TakeProfitPercent: 8, MinTargetPercent: 5, MaxTargetPercent: 15}

	t.Run("nil settings use defaults", func(t *testing.T) {
		policy, err := PolicyFromSettings(nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, 4.0, policy.StopLossPercent)
		assert.Equal(t, 8.0, policy.TakeProfitPercent)
	})

	t.Run("disabled stop loss", func(t *testing.T) {
		s := entity.DefaultAutoTradingSettings(1)
		s.StopLossEnabled = false
		policy, err := PolicyFromSettings(s, cfg)
		require.NoError(t, err)
		assert.Zero(t, policy.StopLossPercent)
		assert.Equal(t, 10.0, policy.TakeProfitPercent)
	})

	t.Run("dynamic target", func(t *testing.T) {
		s := entity.DefaultAutoTradingSettings(1)
		s.DynamicTargetEnabled = true
		policy, err := PolicyFromSettings(s, cfg)
		require.NoError(t, err)
		assert.Equal(t, 15.0, policy.TargetPercent(100, 5))
	})

	t.Run("invalid settings", func(t *testing.T) {
		s := entity.DefaultAutoTradingSettings(1)
		s.StopLossPercent = 150
		_, err := PolicyFromSettings(s, cfg)
		assert.True(t, errors.Is(err, ErrInvalidSettings))
	})
}
