package pattern

import (
	"math"

	"golang-surge-signal/internal/entity"

	"gonum.org/v1/gonum/stat"
)

type series struct {
	open   []float64
	high   []float64
	low    []float64
	close  []float64
	volume []float64
}

func toSeries(candles []entity.Candle) series {
	s := series{
		open:   make([]float64, len(candles)),
		high:   make([]float64, len(candles)),
		low:    make([]float64, len(candles)),
		close:  make([]float64, len(candles)),
		volume: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.open[i] = c.Open.InexactFloat64()
		s.high[i] = c.High.InexactFloat64()
		s.low[i] = c.Low.InexactFloat64()
		s.close[i] = c.Close.InexactFloat64()
		s.volume[i] = c.Volume.InexactFloat64()
	}
	return s
}

func (s series) len() int { return len(s.close) }

// SMA is the simple average of the period values ending at index end (inclusive).
func SMA(values []float64, end, period int) float64 {
	if period <= 0 || end+1 < period {
		return math.NaN()
	}
	return stat.Mean(values[end+1-period:end+1], nil)
}

// RSISeries computes Wilder's RSI for every index. Entries before period are NaN.
func RSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(closes) <= period {
		return out
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		ch := closes[i] - closes[i-1]
		if ch > 0 {
			gain += ch
		} else {
			loss -= ch
		}
	}
	p := float64(period)
	avgGain, avgLoss := gain/p, loss/p
	out[period] = rsi(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		ch := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if ch > 0 {
			g = ch
		} else {
			l = -ch
		}
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
		out[i] = rsi(avgGain, avgLoss)
	}
	return out
}

func rsi(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// ATRPercent is the average true range over period bars ending at end, as a percent of the close.
func ATRPercent(s series, end, period int) float64 {
	if end < period || s.close[end] == 0 {
		return 0
	}
	trs := make([]float64, 0, period)
	for i := end + 1 - period; i <= end; i++ {
		prevClose := s.close[i-1]
		tr := math.Max(s.high[i]-s.low[i], math.Max(math.Abs(s.high[i]-prevClose), math.Abs(s.low[i]-prevClose)))
		trs = append(trs, tr)
	}
	return stat.Mean(trs, nil) / s.close[end] * 100
}

// ReturnsStdDev is the standard deviation of bar-to-bar percent returns over period bars.
func ReturnsStdDev(closes []float64, end, period int) float64 {
	if end < period {
		return 0
	}
	rets := make([]float64, 0, period)
	for i := end + 1 - period; i <= end; i++ {
		if closes[i-1] == 0 {
			continue
		}
		rets = append(rets, (closes[i]-closes[i-1])/closes[i-1]*100)
	}
	if len(rets) < 2 {
		return 0
	}
	return stat.StdDev(rets, nil)
}

// RelativeVolume compares the volume at i with the mean of the period bars before it.
func RelativeVolume(volumes []float64, i, period int) float64 {
	if i < period {
		return 0
	}
	avg := stat.Mean(volumes[i-period:i], nil)
	if avg == 0 {
		return 0
	}
	return volumes[i] / avg
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}

func minOf(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		m = math.Min(m, v)
	}
	return m
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Volatility returns ATR% when it can be computed, else the stddev of returns.
func Volatility(s series, end int) float64 {
	if v := ATRPercent(s, end, 14); v > 0 {
		return v
	}
	return ReturnsStdDev(s.close, end, 14)
}
