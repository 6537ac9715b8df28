package prediction

import "math"

// tier adds Score when a channel value is strictly greater than Above.
type tier struct {
	Above float64
	Score float64
}

// Tiers are ordered strictest first; only the first match counts.
var (
	vibrationTiers   = []tier{{70, 0.30}, {50, 0.20}, {30, 0.10}}
	temperatureTiers = []tier{{15, 0.20}, {10, 0.15}, {5, 0.10}}
	moistureTiers    = []tier{{85, 0.25}, {70, 0.20}, {50, 0.10}}
	pressureTiers    = []tier{{10, 0.25}, {7, 0.20}, {4, 0.10}}
)

// Level cutoffs, inclusive lower bounds.
const (
	criticalCutoff = 0.8
	highCutoff     = 0.6
	mediumCutoff   = 0.4
	maxScore       = 1.0
)

func tierScore(value float64, tiers []tier) float64 {
	for _, t := range tiers {
		if value > t.Above {
			return t.Score
		}
	}
	return 0
}

// RawScore sums the per-channel tier scores before the quality discount.
func RawScore(f Features) float64 {
	return tierScore(f.Vibration.Mean, vibrationTiers) +
		tierScore(f.TemperatureVariation, temperatureTiers) +
		tierScore(f.Moisture.Mean, moistureTiers) +
		tierScore(f.PressureChanges, pressureTiers)
}

// Score is the quality-discounted risk score, clamped to at most 1.0.
func Score(f Features) float64 {
	return math.Min(maxScore, RawScore(f)*f.DataQualityScore)
}

// LevelForScore maps a risk score to a level.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= criticalCutoff:
		return RiskCritical
	case score >= highCutoff:
		return RiskHigh
	case score >= mediumCutoff:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Classify maps aggregated features to a risk level.
func Classify(f Features) RiskLevel {
	return LevelForScore(Score(f))
}
