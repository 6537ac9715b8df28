package prediction

import "rockfall-monitor/internal/telemetry/domain"

// Physical plausibility bounds, inclusive.
const (
	minVibration   = 0.0
	maxVibration   = 1000.0
	minTemperature = -50.0
	maxTemperature = 100.0
	minMoisture    = 0.0
	maxMoisture    = 100.0
	minPressure    = 0.0
	maxPressure    = 200.0
)

// IsPlausible reports whether every channel of r lies within physical bounds.
// NaN fails every bound.
func IsPlausible(r telemetry.SensorReading) bool {
	return within(r.Vibration, minVibration, maxVibration) &&
		within(r.Temperature, minTemperature, maxTemperature) &&
		within(r.Moisture, minMoisture, maxMoisture) &&
		within(r.Pressure, minPressure, maxPressure)
}

func within(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}
