package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"rockfall-monitor/internal/telemetry/domain"
)

func TestReadingRepositoryWindowAndSensorFilter(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	err := repo.InsertReadings(ctx, []telemetry.SensorReading{
		{SensorID: "SENSOR_002", Timestamp: base.Add(2 * time.Minute), Vibration: 20},
		{SensorID: "SENSOR_001", Timestamp: base.Add(time.Minute), Vibration: 10},
		{SensorID: "SENSOR_001", Timestamp: base.Add(-time.Hour), Vibration: 99},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	all, err := repo.QueryWindow(ctx, telemetry.ReadingFilter{Since: base})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 readings in window, got %d", len(all))
	}
	if all[0].SensorID != "SENSOR_001" || all[1].SensorID != "SENSOR_002" {
		t.Fatalf("expected oldest first, got %+v", all)
	}

	one, err := repo.QueryWindow(ctx, telemetry.ReadingFilter{Since: base.Add(-2 * time.Hour), SensorID: "SENSOR_001"})
	if err != nil {
		t.Fatalf("query sensor: %v", err)
	}
	if len(one) != 2 {
		t.Fatalf("expected 2 readings for SENSOR_001, got %d", len(one))
	}

	bounded, err := repo.QueryWindow(ctx, telemetry.ReadingFilter{Since: base, Until: base.Add(2 * time.Minute)})
	if err != nil {
		t.Fatalf("query bounded: %v", err)
	}
	if len(bounded) != 1 {
		t.Fatalf("expected until to be exclusive, got %d readings", len(bounded))
	}
}

func TestReadingRepositoryUpsertAndDelete(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	_ = repo.InsertReadings(ctx, []telemetry.SensorReading{{SensorID: "SENSOR_001", Timestamp: at, Vibration: 10}})
	_ = repo.InsertReadings(ctx, []telemetry.SensorReading{{SensorID: "SENSOR_001", Timestamp: at, Vibration: 15}})
	if repo.Count() != 1 {
		t.Fatalf("expected upsert to keep one reading, got %d", repo.Count())
	}

	deleted, err := repo.DeleteBefore(ctx, at.Add(time.Second))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 || repo.Count() != 0 {
		t.Fatalf("expected reading purged, deleted=%d remaining=%d", deleted, repo.Count())
	}
}

func TestReadingRepositoryRejectsMissingTimestamp(t *testing.T) {
	repo := NewReadingRepository()
	err := repo.InsertReadings(context.Background(), []telemetry.SensorReading{{SensorID: "SENSOR_001"}})
	if !errors.Is(err, telemetry.ErrInvalidReading) {
		t.Fatalf("expected invalid reading error, got %v", err)
	}
}

func TestReadingRepositoryListSensorIDs(t *testing.T) {
	repo := NewReadingRepository()
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	_ = repo.InsertReadings(ctx, []telemetry.SensorReading{
		{SensorID: "SENSOR_003", Timestamp: at},
		{SensorID: "SENSOR_001", Timestamp: at},
		{SensorID: "SENSOR_003", Timestamp: at.Add(time.Minute)},
	})
	ids, err := repo.ListSensorIDs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != "SENSOR_001" || ids[1] != "SENSOR_003" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}
