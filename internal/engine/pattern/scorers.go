package pattern

import (
	"math"

	"golang-surge-signal/internal/entity"
)

const volumePeriod = 20

// VolumeSpikeReversal fires on a high-volume bullish bar after a short decline.
type VolumeSpikeReversal struct {
	MinRelVolume float64
	MinDropPct   float64
}

func NewVolumeSpikeReversal() *VolumeSpikeReversal {
	return &VolumeSpikeReversal{MinRelVolume: 2, MinDropPct: 2}
}

func (p *VolumeSpikeReversal) Name() string    { return "volume_spike_reversal" }
func (p *VolumeSpikeReversal) MinCandles() int { return 30 }

func (p *VolumeSpikeReversal) Evaluate(candles []entity.Candle) (*ScoreResult, error) {
	if err := checkLength(p.Name(), candles, p.MinCandles()); err != nil {
		return nil, err
	}
	s := toSeries(candles)

	drop := func(i int) float64 {
		peak := maxOf(s.close[i-6 : i])
		if peak == 0 {
			return 0
		}
		return (peak - s.close[i-1]) / peak * 100
	}
	holds := func(i int) bool {
		return RelativeVolume(s.volume, i, volumePeriod) >= p.MinRelVolume &&
			s.close[i] > s.open[i] &&
			drop(i) >= p.MinDropPct
	}

	trigger, ok := findTrigger(s.len(), volumePeriod+6, holds)
	if !ok {
		return nil, nil
	}

	relVol := RelativeVolume(s.volume, trigger, volumePeriod)
	body := 0.0
	if rng := s.high[trigger] - s.low[trigger]; rng > 0 {
		body = (s.close[trigger] - s.open[trigger]) / rng
	}
	follow := 0.0
	if s.close[s.len()-1] >= s.close[trigger] {
		follow = 10
	}

	return finish(p.Name(), s, trigger, map[string]float64{
		"volume":         clamp01(relVol/4) * 40,
		"prior_drop":     clamp01(drop(trigger)/8) * 30,
		"body_strength":  clamp01(body) * 20,
		"follow_through": follow,
	}), nil
}

// OversoldBounce fires when RSI turns up from below the oversold line with a higher close.
type OversoldBounce struct {
	Period    int
	Oversold  float64
	SMAPeriod int
}

func NewOversoldBounce() *OversoldBounce {
	return &OversoldBounce{Period: 14, Oversold: 30, SMAPeriod: 20}
}

func (p *OversoldBounce) Name() string    { return "oversold_bounce" }
func (p *OversoldBounce) MinCandles() int { return 35 }

func (p *OversoldBounce) Evaluate(candles []entity.Candle) (*ScoreResult, error) {
	if err := checkLength(p.Name(), candles, p.MinCandles()); err != nil {
		return nil, err
	}
	s := toSeries(candles)
	rsis := RSISeries(s.close, p.Period)

	holds := func(i int) bool {
		prev, cur := rsis[i-1], rsis[i]
		if math.IsNaN(prev) || math.IsNaN(cur) {
			return false
		}
		return prev < p.Oversold && cur > prev && s.close[i] > s.close[i-1]
	}

	trigger, ok := findTrigger(s.len(), p.Period+2, holds)
	if !ok {
		return nil, nil
	}

	last := s.len() - 1
	recentLow := minOf(s.low[trigger-4 : trigger+1])
	bounce := 0.0
	if recentLow > 0 {
		bounce = (s.close[last] - recentLow) / recentLow * 100
	}
	sma := SMA(s.close, last, p.SMAPeriod)
	distance := 0.0
	if sma > 0 {
		distance = (sma - s.close[last]) / sma * 100
	}

	return finish(p.Name(), s, trigger, map[string]float64{
		"oversold_depth": clamp01((p.Oversold-rsis[trigger-1])/20) * 35,
		"bounce":         clamp01(bounce/5) * 30,
		"volume":         clamp01(RelativeVolume(s.volume, trigger, volumePeriod)/2) * 20,
		"reversion_room": clamp01(distance/5) * 15,
	}), nil
}

// Breakout fires when a close clears the prior range high on elevated volume.
type Breakout struct {
	RangeBars    int
	MinRelVolume float64
}

func NewBreakout() *Breakout {
	return &Breakout{RangeBars: 20, MinRelVolume: 1.5}
}

func (p *Breakout) Name() string    { return "breakout" }
func (p *Breakout) MinCandles() int { return 55 }

func (p *Breakout) Evaluate(candles []entity.Candle) (*ScoreResult, error) {
	if err := checkLength(p.Name(), candles, p.MinCandles()); err != nil {
		return nil, err
	}
	s := toSeries(candles)

	rangeHigh := func(i int) float64 { return maxOf(s.high[i-p.RangeBars : i]) }
	holds := func(i int) bool {
		return s.close[i] > rangeHigh(i) && RelativeVolume(s.volume, i, volumePeriod) >= p.MinRelVolume
	}

	trigger, ok := findTrigger(s.len(), 50, holds)
	if !ok {
		return nil, nil
	}

	high := rangeHigh(trigger)
	margin := (s.close[trigger] - high) / high * 100
	low := minOf(s.low[trigger-p.RangeBars : trigger])
	width := 100.0
	if low > 0 {
		width = (high - low) / low * 100
	}
	trend := 0.0
	if SMA(s.close, trigger, 20) > SMA(s.close, trigger, 50) {
		trend = 10
	}

	return finish(p.Name(), s, trigger, map[string]float64{
		"margin":      clamp01(margin/3) * 35,
		"volume":      clamp01(RelativeVolume(s.volume, trigger, volumePeriod)/3) * 35,
		"tight_range": (1 - clamp01(width/15)) * 20,
		"trend":       trend,
	}), nil
}
