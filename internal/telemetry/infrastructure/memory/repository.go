package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rockfall-monitor/internal/telemetry/domain"
)

// ReadingRepository is an in-memory reading store for demo/testing.
// It implements both ReadingRepository and ReadingQuery.
type ReadingRepository struct {
	mu   sync.RWMutex
	data map[string]telemetry.SensorReading
}

// NewReadingRepository constructs a repository.
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{data: make(map[string]telemetry.SensorReading)}
}

// InsertReadings upserts readings keyed by sensor and timestamp.
func (r *ReadingRepository) InsertReadings(ctx context.Context, readings []telemetry.SensorReading) error {
	_ = ctx
	for _, reading := range readings {
		if err := reading.Validate(); err != nil {
			return fmt.Errorf("%w: %v", telemetry.ErrInvalidReading, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reading := range readings {
		reading.Timestamp = reading.Timestamp.UTC()
		r.data[key(reading)] = reading
	}
	return nil
}

// DeleteBefore purges readings older than cutoff.
func (r *ReadingRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for k, reading := range r.data {
		if reading.Timestamp.Before(cutoff) {
			delete(r.data, k)
			deleted++
		}
	}
	return deleted, nil
}

// QueryWindow returns readings within [Since, Until), oldest first.
func (r *ReadingRepository) QueryWindow(ctx context.Context, filter telemetry.ReadingFilter) ([]telemetry.SensorReading, error) {
	_ = ctx
	r.mu.RLock()
	result := make([]telemetry.SensorReading, 0, len(r.data))
	for _, reading := range r.data {
		if reading.Timestamp.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !reading.Timestamp.Before(filter.Until) {
			continue
		}
		if filter.SensorID != "" && reading.SensorID != filter.SensorID {
			continue
		}
		result = append(result, reading)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].SensorID < result[j].SensorID
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// ListSensorIDs returns distinct sensor ids in ascending order.
func (r *ReadingRepository) ListSensorIDs(ctx context.Context) ([]string, error) {
	_ = ctx
	r.mu.RLock()
	seen := make(map[string]struct{})
	for _, reading := range r.data {
		seen[reading.SensorID] = struct{}{}
	}
	r.mu.RUnlock()

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Count returns the number of stored readings.
func (r *ReadingRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func key(reading telemetry.SensorReading) string {
	return reading.SensorID + "|" + reading.Timestamp.Format(time.RFC3339Nano)
}
