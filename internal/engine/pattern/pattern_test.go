package pattern

import (
	"errors"
	"math"
	"testing"
	"time"

	"golang-surge-signal/internal/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, open, high, low, close, volume float64) entity.Candle {
	return entity.Candle{
		OpenTime:  t0.Add(time.Duration(i) * 15 * time.Minute),
		CloseTime: t0.Add(time.Duration(i+1)*15*time.Minute - time.Millisecond),
		Open:      decimal.NewFromFloat(open),
		High:      decimal.NewFromFloat(high),
		Low:       decimal.NewFromFloat(low),
		Close:     decimal.NewFromFloat(close),
		Volume:    decimal.NewFromFloat(volume),
	}
}

// flatCandles returns n quiet bars around 100.
func flatCandles(n int) []entity.Candle {
	out := make([]entity.Candle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, bar(i, 100, 100.5, 99.5, 100, 1000))
	}
	return out
}

func breakoutCandles(extra int) []entity.Candle {
	c := flatCandles(59)
	c = append(c, bar(59, 100, 104.2, 99.8, 104, 3000))
	for i := 0; i < extra; i++ {
		c = append(c, bar(60+i, 104, 104.6, 103.9, 104.5, 1000))
	}
	return c
}

// decliningThenBounce falls one point per bar, then closes two points higher on double volume.
func decliningThenBounce() []entity.Candle {
	var c []entity.Candle
	for k := 0; k < 59; k++ {
		closePx := 150 - float64(k)
		openPx := closePx + 1
		c = append(c, bar(k, openPx, openPx+0.2, closePx-0.5, closePx, 1000))
	}
	return append(c, bar(59, 92, 94.2, 91.8, 94, 2000))
}

func find(results []ScoreResult, name string) *ScoreResult {
	for i := range results {
		if results[i].Pattern == name {
			return &results[i]
		}
	}
	return nil
}

func TestTimingFor(t *testing.T) {
	assert.Equal(t, entity.TimingEarly, TimingFor(0))
	assert.Equal(t, entity.TimingEarly, TimingFor(1))
	assert.Equal(t, entity.TimingGood, TimingFor(2))
	assert.Equal(t, entity.TimingGood, TimingFor(3))
	assert.Equal(t, entity.TimingLate, TimingFor(4))
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 80.0, Confidence(80, entity.TimingEarly), 1e-9)
	assert.InDelta(t, 72.0, Confidence(80, entity.TimingGood), 1e-9)
	assert.InDelta(t, 56.0, Confidence(80, entity.TimingLate), 1e-9)
	assert.Equal(t, 100.0, Confidence(150, entity.TimingEarly))
}

func TestRSISeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	rsis := RSISeries(closes, 14)
	assert.True(t, math.IsNaN(rsis[13]))
	assert.Equal(t, 50.0, rsis[29])

	for i := range closes {
		closes[i] = float64(100 + i)
	}
	assert.Equal(t, 100.0, RSISeries(closes, 14)[29])
}

func TestRegistry_InsufficientData(t *testing.T) {
	_, err := DefaultRegistry().Evaluate(flatCandles(10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))

	var ide *InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 10, ide.Have)
}

func TestRegistry_PartialDataStillScores(t *testing.T) {
	results, err := DefaultRegistry().Evaluate(flatCandles(40))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRegistry_FlatMarketHasNoMatches(t *testing.T) {
	results, err := DefaultRegistry().Evaluate(flatCandles(80))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBreakout_EarlyTrigger(t *testing.T) {
	results, err := DefaultRegistry().Evaluate(breakoutCandles(0))
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "breakout", res.Pattern)
	assert.Equal(t, entity.TimingEarly, res.Timing)
	assert.Equal(t, 0, res.BarsSince)
	assert.Greater(t, res.Score, 80.0)
	assert.LessOrEqual(t, res.Score, 100.0)
	assert.InDelta(t, res.Score, res.Confidence, 0.01)
	assert.Greater(t, res.Volatility, 0.0)
	assert.Contains(t, res.Components, "volume")
}

func TestBreakout_TimingDegradesWithAge(t *testing.T) {
	res, err := NewBreakout().Evaluate(breakoutCandles(2))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.BarsSince)
	assert.Equal(t, entity.TimingGood, res.Timing)
	assert.InDelta(t, res.Score*0.9, res.Confidence, 0.01)

	res, err = NewBreakout().Evaluate(breakoutCandles(5))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, entity.TimingLate, res.Timing)
	assert.InDelta(t, res.Score*0.7, res.Confidence, 0.01)

	// outside the lookback window the trigger is no longer reported
	res, err = NewBreakout().Evaluate(breakoutCandles(TriggerLookback))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestOversoldBounceAndVolumeReversal(t *testing.T) {
	results, err := DefaultRegistry().Evaluate(decliningThenBounce())
	require.NoError(t, err)

	bounce := find(results, "oversold_bounce")
	require.NotNil(t, bounce)
	assert.Equal(t, entity.TimingEarly, bounce.Timing)
	assert.Greater(t, bounce.Score, 60.0)

	reversal := find(results, "volume_spike_reversal")
	require.NotNil(t, reversal)
	assert.Greater(t, reversal.Score, 0.0)

	assert.Nil(t, find(results, "breakout"))
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

type fixedScorer struct{ score float64 }

func (f fixedScorer) Name() string    { return "fixed" }
func (f fixedScorer) MinCandles() int { return 1 }
func (f fixedScorer) Evaluate(candles []entity.Candle) (*ScoreResult, error) {
	return &ScoreResult{Pattern: "fixed", Score: f.score, Confidence: f.score, Timing: entity.TimingEarly}, nil
}

func TestRegistry_RegisterExtends(t *testing.T) {
	r := DefaultRegistry()
	r.Register(fixedScorer{score: 42})
	assert.Equal(t, []string{"volume_spike_reversal", "oversold_bounce", "breakout", "fixed"}, r.Names())
	assert.Equal(t, 55, r.MinCandles())

	results, err := r.Evaluate(flatCandles(10))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fixed", results[0].Pattern)
}

func TestMalformedCandleIsError(t *testing.T) {
	c := flatCandles(60)
	c[10] = bar(10, 100, 90, 110, 100, 1000)
	_, err := DefaultRegistry().Evaluate(c)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInsufficientData))
}
