// Package pattern scores recent price action against a set of surge patterns.
package pattern

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"golang-surge-signal/internal/entity"
)

// TriggerLookback is how many of the latest bars are searched for a pattern trigger.
const TriggerLookback = 6

var ErrInsufficientData = errors.New("insufficient candle data")

// InsufficientDataError is returned when a scorer gets fewer candles than it needs.
type InsufficientDataError struct {
	Pattern string
	Have    int
	Need    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need %d candles, have %d", e.Pattern, e.Need, e.Have)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// ScoreResult is one matched pattern.
type ScoreResult struct {
	Pattern      string             `json:"pattern"`
	Score        float64            `json:"score"`
	Confidence   float64            `json:"confidence"`
	Timing       entity.Timing      `json:"timing"`
	Volatility   float64            `json:"volatility"`
	BarsSince    int                `json:"bars_since_trigger"`
	Components   map[string]float64 `json:"components"`
	TriggerIndex int                `json:"-"`
}

// Scorer evaluates one pattern. Evaluate returns nil, nil when the pattern does not match.
type Scorer interface {
	Name() string
	MinCandles() int
	Evaluate(candles []entity.Candle) (*ScoreResult, error)
}

// TimingFor buckets the number of bars since the trigger.
func TimingFor(barsSince int) entity.Timing {
	switch {
	case barsSince <= 1:
		return entity.TimingEarly
	case barsSince <= 3:
		return entity.TimingGood
	default:
		return entity.TimingLate
	}
}

func timingFactor(t entity.Timing) float64 {
	switch t {
	case entity.TimingEarly:
		return 1.0
	case entity.TimingGood:
		return 0.9
	default:
		return 0.7
	}
}

// Confidence discounts score by timing, capped to 100.
func Confidence(score float64, t entity.Timing) float64 {
	return math.Min(score*timingFactor(t), 100)
}

// findTrigger returns the first bar of the most recent run where holds is true,
// searching only the last TriggerLookback bars.
func findTrigger(n, from int, holds func(i int) bool) (start int, ok bool) {
	last := n - 1
	latest := -1
	for i := last; i >= last-TriggerLookback+1 && i >= from; i-- {
		if holds(i) {
			latest = i
			break
		}
	}
	if latest < 0 {
		return 0, false
	}
	start = latest
	for start-1 >= from && holds(start-1) {
		start--
	}
	return start, true
}

func finish(name string, s series, trigger int, components map[string]float64) *ScoreResult {
	var score float64
	for _, v := range components {
		score += v
	}
	score = math.Round(math.Min(math.Max(score, 0), 100)*100) / 100

	barsSince := s.len() - 1 - trigger
	timing := TimingFor(barsSince)
	return &ScoreResult{
		Pattern:      name,
		Score:        score,
		Confidence:   math.Round(Confidence(score, timing)*100) / 100,
		Timing:       timing,
		Volatility:   Volatility(s, s.len()-1),
		BarsSince:    barsSince,
		Components:   components,
		TriggerIndex: trigger,
	}
}

// Registry holds the scorers applied to every market.
type Registry struct {
	scorers []Scorer
}

func NewRegistry(scorers ...Scorer) *Registry {
	return &Registry{scorers: scorers}
}

// DefaultRegistry returns the built-in patterns.
func DefaultRegistry() *Registry {
	return NewRegistry(NewVolumeSpikeReversal(), NewOversoldBounce(), NewBreakout())
}

// Register adds a scorer.
func (r *Registry) Register(s Scorer) {
	r.scorers = append(r.scorers, s)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scorers))
	for _, s := range r.scorers {
		names = append(names, s.Name())
	}
	return names
}

// MinCandles is the largest requirement across scorers.
func (r *Registry) MinCandles() int {
	need := 0
	for _, s := range r.scorers {
		if s.MinCandles() > need {
			need = s.MinCandles()
		}
	}
	return need
}

// Evaluate runs every scorer and returns matches ordered by score, highest first.
// An InsufficientDataError is returned only when no scorer had enough data.
func (r *Registry) Evaluate(candles []entity.Candle) ([]ScoreResult, error) {
	var (
		results      []ScoreResult
		insufficient error
		ran          int
	)
	for _, s := range r.scorers {
		res, err := s.Evaluate(candles)
		if err != nil {
			if errors.Is(err, ErrInsufficientData) {
				if insufficient == nil {
					insufficient = err
				}
				continue
			}
			return nil, fmt.Errorf("%s: %w", s.Name(), err)
		}
		ran++
		if res != nil {
			results = append(results, *res)
		}
	}
	if ran == 0 && insufficient != nil {
		return nil, insufficient
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

func checkLength(name string, candles []entity.Candle, need int) error {
	if len(candles) < need {
		return &InsufficientDataError{Pattern: name, Have: len(candles), Need: need}
	}
	for _, c := range candles {
		if c.Close.IsNegative() || c.High.LessThan(c.Low) {
			return fmt.Errorf("%s: malformed candle at %s", name, c.OpenTime)
		}
	}
	return nil
}
