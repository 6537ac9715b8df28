package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Batch is the wire form accepted by ingest endpoints: either one reading
// at the top level or a list under "readings".
type Batch struct {
	SensorReading
	Readings []SensorReading `json:"readings"`
}

// DecodeReadings parses an ingest payload. Readings without a timestamp are
// stamped with now; every reading must carry a sensor id.
func DecodeReadings(data []byte, now time.Time) ([]SensorReading, error) {
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	readings := batch.Readings
	if len(readings) == 0 {
		if batch.SensorID == "" {
			return nil, errors.New("telemetry: no readings in payload")
		}
		readings = []SensorReading{batch.SensorReading}
	}

	out := make([]SensorReading, 0, len(readings))
	for i, reading := range readings {
		if reading.Timestamp.IsZero() {
			reading.Timestamp = now
		}
		reading.Timestamp = reading.Timestamp.UTC()
		if err := reading.Validate(); err != nil {
			return nil, fmt.Errorf("%w: reading %d: %v", ErrInvalidReading, i, err)
		}
		out = append(out, reading)
	}
	return out, nil
}
