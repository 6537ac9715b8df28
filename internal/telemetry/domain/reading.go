package telemetry

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidReading indicates a reading that cannot be stored.
var ErrInvalidReading = errors.New("telemetry: invalid reading")

// SensorReading is one timestamped multi-channel sample from a field sensor.
type SensorReading struct {
	SensorID    string    `json:"sensor_id"`
	Timestamp   time.Time `json:"timestamp"`
	Vibration   float64   `json:"vibration_level"`
	Temperature float64   `json:"temperature"`
	Moisture    float64   `json:"moisture_level"`
	Pressure    float64   `json:"pressure"`
	LocationX   float64   `json:"location_x"`
	LocationY   float64   `json:"location_y"`
}

// Validate checks the identity fields required for storage.
// Channel values are not checked here; out-of-range values are a quality signal.
func (r SensorReading) Validate() error {
	if r.SensorID == "" {
		return errors.New("telemetry: empty sensor id")
	}
	if r.Timestamp.IsZero() {
		return errors.New("telemetry: empty timestamp")
	}
	return nil
}

// ReadingFilter selects a window of readings.
// A zero Until means "up to now"; an empty SensorID means all sensors.
type ReadingFilter struct {
	Since    time.Time
	Until    time.Time
	SensorID string
}

// ReadingRepository persists sensor readings.
type ReadingRepository interface {
	InsertReadings(ctx context.Context, readings []SensorReading) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReadingQuery loads readings for prediction windows.
type ReadingQuery interface {
	QueryWindow(ctx context.Context, filter ReadingFilter) ([]SensorReading, error)
	ListSensorIDs(ctx context.Context) ([]string, error)
}
