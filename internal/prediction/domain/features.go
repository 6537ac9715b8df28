package prediction

import (
	"errors"
	"fmt"
	"math"

	"rockfall-monitor/internal/telemetry/domain"
)

// ErrNonFiniteStatistic indicates a channel statistic that came out NaN or infinite.
var ErrNonFiniteStatistic = errors.New("prediction: non-finite statistic")

// temperatureRangeScale normalizes temperature range into stability.
const temperatureRangeScale = 100.0

// ChannelStats summarizes one sensor channel over a window.
type ChannelStats struct {
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Range float64 `json:"range"`
}

// Features are the aggregated statistics of one reading window.
// The zero value is the result for an empty window.
type Features struct {
	Vibration   ChannelStats `json:"vibration"`
	Temperature ChannelStats `json:"temperature"`
	Moisture    ChannelStats `json:"moisture"`
	Pressure    ChannelStats `json:"pressure"`

	VibrationConsistency float64 `json:"vibration_consistency"`
	TemperatureStability float64 `json:"temperature_stability"`
	DataQualityScore     float64 `json:"data_quality_score"`

	TemperatureVariation float64 `json:"temperature_variation"`
	PressureChanges      float64 `json:"pressure_changes"`
}

type accumulator struct {
	sum, min, max float64
}

func (a *accumulator) add(v float64, first bool) {
	if first {
		a.min, a.max = v, v
	}
	a.sum += v
	if v < a.min {
		a.min = v
	}
	if v > a.max {
		a.max = v
	}
}

func (a accumulator) stats(name string, n int) (ChannelStats, error) {
	s := ChannelStats{
		Mean: a.sum / float64(n),
		Min:  a.min,
		Max:  a.max,
	}
	s.Range = s.Max - s.Min
	for _, v := range [...]float64{s.Mean, s.Min, s.Max, s.Range} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ChannelStats{}, fmt.Errorf("%w: %s", ErrNonFiniteStatistic, name)
		}
	}
	return s, nil
}

// Aggregate reduces a window of readings to Features in a single pass.
// An empty window yields zero Features and no error. Readings are not modified.
func Aggregate(readings []telemetry.SensorReading) (Features, error) {
	n := len(readings)
	if n == 0 {
		return Features{}, nil
	}

	var vib, temp, moist, press accumulator
	plausible := 0
	for i, r := range readings {
		first := i == 0
		vib.add(r.Vibration, first)
		temp.add(r.Temperature, first)
		moist.add(r.Moisture, first)
		press.add(r.Pressure, first)
		if IsPlausible(r) {
			plausible++
		}
	}

	var (
		f   Features
		err error
	)
	if f.Vibration, err = vib.stats("vibration", n); err != nil {
		return Features{}, err
	}
	if f.Temperature, err = temp.stats("temperature", n); err != nil {
		return Features{}, err
	}
	if f.Moisture, err = moist.stats("moisture", n); err != nil {
		return Features{}, err
	}
	if f.Pressure, err = press.stats("pressure", n); err != nil {
		return Features{}, err
	}

	f.VibrationConsistency = 1.0
	if f.Vibration.Mean != 0 {
		f.VibrationConsistency = unit(1 - f.Vibration.Range/f.Vibration.Mean)
	}
	f.TemperatureStability = unit(1 - f.Temperature.Range/temperatureRangeScale)
	f.DataQualityScore = float64(plausible) / float64(n)
	f.TemperatureVariation = f.Temperature.Range
	f.PressureChanges = f.Pressure.Range
	return f, nil
}

// unit clamps v into [0,1].
func unit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
