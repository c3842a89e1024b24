package risk

import (
	"github.com/shopspring/decimal"

	"github.com/riskwatch/riskwatch/pkg/types"
)

// scale is the number of decimal places kept by every rounded result.
const scale = 2

var hundred = decimal.NewFromInt(100)

// Range is the physical span of a metric that maps onto 0..100.
type Range struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Fixed normalization ranges per metric.
var (
	TemperatureRange = Range{Min: decimal.Zero, Max: decimal.NewFromInt(150)}
	VibrationRange   = Range{Min: decimal.Zero, Max: decimal.NewFromInt(50)}
	LoadRange        = Range{Min: decimal.Zero, Max: decimal.NewFromInt(100)}
)

// Thresholds that map a score to a level. Each is the inclusive lower bound
// of its tier.
var (
	ThresholdCritical = decimal.NewFromInt(85)
	ThresholdHigh     = decimal.NewFromInt(65)
	ThresholdMedium   = decimal.NewFromInt(40)
)

// Triple holds one decimal per metric, either raw readings or their
// normalized values.
type Triple struct {
	Temperature decimal.Decimal
	Vibration   decimal.Decimal
	Load        decimal.Decimal
}

// Get returns the value for m.
func (t Triple) Get(m Metric) decimal.Decimal {
	switch m {
	case Temperature:
		return t.Temperature
	case Vibration:
		return t.Vibration
	default:
		return t.Load
	}
}

// RawTriple extracts the raw values of a reading.
func RawTriple(r types.SensorReading) Triple {
	return Triple{
		Temperature: r.Temperature,
		Vibration:   r.Vibration,
		Load:        r.LoadPercentage,
	}
}

// Weights are the per-metric coefficients of the score. They are independent
// and are not required to sum to 1.
type Weights Triple

// DefaultWeights is 0.40 / 0.35 / 0.25.
var DefaultWeights = Weights{
	Temperature: decimal.RequireFromString("0.40"),
	Vibration:   decimal.RequireFromString("0.35"),
	Load:        decimal.RequireFromString("0.25"),
}

// Get returns the weight for m.
func (w Weights) Get(m Metric) decimal.Decimal {
	return Triple(w).Get(m)
}

// Normalize maps value onto 0..100 against r, rounded half-up to two places.
// Values at or below r.Min clamp to 0, at or above r.Max to 100.
func Normalize(value decimal.Decimal, r Range) decimal.Decimal {
	if value.LessThanOrEqual(r.Min) {
		return decimal.Zero
	}
	if value.GreaterThanOrEqual(r.Max) {
		return hundred
	}
	return value.Sub(r.Min).Mul(hundred).DivRound(r.Max.Sub(r.Min), scale)
}

// NormalizeReading normalizes all three metrics of r.
func NormalizeReading(r types.SensorReading) Triple {
	return Triple{
		Temperature: Normalize(r.Temperature, TemperatureRange),
		Vibration:   Normalize(r.Vibration, VibrationRange),
		Load:        Normalize(r.LoadPercentage, LoadRange),
	}
}

// Score is the weighted sum of the normalized values, rounded half-up to two
// places once, after summing.
func Score(norm Triple, w Weights) decimal.Decimal {
	return norm.Temperature.Mul(w.Temperature).
		Add(norm.Vibration.Mul(w.Vibration)).
		Add(norm.Load.Mul(w.Load)).
		Round(scale)
}

// Classify maps a score onto a level.
func Classify(score decimal.Decimal) Level {
	switch {
	case score.GreaterThanOrEqual(ThresholdCritical):
		return LevelCritical
	case score.GreaterThanOrEqual(ThresholdHigh):
		return LevelHigh
	case score.GreaterThanOrEqual(ThresholdMedium):
		return LevelMedium
	default:
		return LevelLow
	}
}
