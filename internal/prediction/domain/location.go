package prediction

import (
	"fmt"

	"rockfall-monitor/internal/telemetry/domain"
)

// Locate labels the sector at the centroid of the readings.
func Locate(readings []telemetry.SensorReading) string {
	if len(readings) == 0 {
		return UnknownLocation
	}
	var sumX, sumY float64
	for _, r := range readings {
		sumX += r.LocationX
		sumY += r.LocationY
	}
	n := float64(len(readings))
	return fmt.Sprintf("Sector %.1f,%.1f", sumX/n, sumY/n)
}
