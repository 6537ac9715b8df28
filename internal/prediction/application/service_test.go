package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"rockfall-monitor/internal/prediction/domain"
	predictionmemory "rockfall-monitor/internal/prediction/infrastructure/memory"
	"rockfall-monitor/internal/telemetry/domain"
	telemetrymemory "rockfall-monitor/internal/telemetry/infrastructure/memory"
)

func seedReadings(t *testing.T, repo *telemetrymemory.ReadingRepository, readings ...telemetry.SensorReading) {
	t.Helper()
	if err := repo.InsertReadings(context.Background(), readings); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func newTestService(t *testing.T) (*MonitoringService, *telemetrymemory.ReadingRepository, *predictionmemory.AssessmentRepository, *recordingDispatcher) {
	t.Helper()
	readings := telemetrymemory.NewReadingRepository()
	history := predictionmemory.NewAssessmentRepository()
	predictor, dispatcher, _ := newTestPredictor()
	svc, err := NewMonitoringService(readings, predictor, history,
		WithServiceClock(fixedClock{now: testNow}),
		WithServiceLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ids := 0
	svc.newID = func() string {
		ids++
		return "assessment-" + string(rune('0'+ids))
	}
	return svc, readings, history, dispatcher
}

func reading(sensorID string, at time.Time, vib, temp, moist, press float64) telemetry.SensorReading {
	return telemetry.SensorReading{
		SensorID:    sensorID,
		Timestamp:   at,
		Vibration:   vib,
		Temperature: temp,
		Moisture:    moist,
		Pressure:    press,
		LocationX:   100,
		LocationY:   100,
	}
}

func TestCurrentStatusUsesStatusWindow(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	seedReadings(t, repo,
		reading("SENSOR_001", testNow.Add(-2*time.Minute), 20, 25, 50, 100),
		reading("SENSOR_002", testNow.Add(-3*time.Minute), 20, 25, 50, 100),
		reading("SENSOR_001", testNow.Add(-4*time.Minute), 20, 25, 50, 100),
		reading("SENSOR_003", testNow.Add(-30*time.Minute), 90, 25, 95, 100),
	)

	status, err := svc.CurrentStatus(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.TotalReadings != 3 || status.ActiveSensors != 2 {
		t.Fatalf("expected 3 readings from 2 sensors, got %+v", status)
	}
	if status.RiskLevel != prediction.RiskLow || status.RiskDescription != "Safe conditions" {
		t.Fatalf("unexpected risk: %+v", status)
	}
	if !status.Timestamp.Equal(testNow) || status.Location != "Sector 100.0,100.0" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestAssessRiskStoresHistoryAndDispatches(t *testing.T) {
	svc, repo, _, dispatcher := newTestService(t)
	seedReadings(t, repo,
		reading("SENSOR_004", testNow.Add(-10*time.Minute), 80, 20, 90, 100),
		reading("SENSOR_004", testNow.Add(-20*time.Minute), 80, 36, 90, 111),
		reading("SENSOR_005", testNow.Add(-5*time.Minute), 0, 25, 10, 100),
	)

	record, err := svc.AssessRisk(context.Background(), "SENSOR_004")
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if record.Level != prediction.RiskCritical || record.ReadingCount != 2 || record.SensorID != "SENSOR_004" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if dispatcher.count() != 1 {
		t.Fatalf("expected one alert, got %d", dispatcher.count())
	}

	stored, err := svc.History(context.Background(), testNow.Add(-time.Hour), testNow.Add(time.Second))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != record.ID {
		t.Fatalf("expected stored record, got %+v", stored)
	}
}

func TestAssessRiskEmptyWindow(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	record, err := svc.AssessRisk(context.Background(), "")
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if record.Level != prediction.RiskLow || record.Location != prediction.UnknownLocation || record.ReadingCount != 0 {
		t.Fatalf("unexpected record: %+v", record)
	}
}

type failingQuery struct{}

func (failingQuery) QueryWindow(context.Context, telemetry.ReadingFilter) ([]telemetry.SensorReading, error) {
	return nil, errors.New("db down")
}

func (failingQuery) ListSensorIDs(context.Context) ([]string, error) { return nil, nil }

func TestReadingSourceErrorsSurfaceBeforePrediction(t *testing.T) {
	predictor, _, faults := newTestPredictor()
	svc, err := NewMonitoringService(failingQuery{}, predictor, predictionmemory.NewAssessmentRepository())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.CurrentStatus(context.Background()); err == nil {
		t.Fatalf("expected store error")
	}
	if _, err := svc.AssessRisk(context.Background(), ""); err == nil {
		t.Fatalf("expected store error")
	}
	if len(faults.Faults()) != 0 {
		t.Fatalf("store errors must not be reported as prediction faults")
	}
}

func TestHistoryRejectsInvertedRange(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.History(context.Background(), testNow, testNow); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected invalid range, got %v", err)
	}
}

func TestNewMonitoringServiceValidation(t *testing.T) {
	if _, err := NewMonitoringService(nil, NewPredictor(), predictionmemory.NewAssessmentRepository()); err == nil {
		t.Fatalf("expected nil readings error")
	}
	if _, err := NewMonitoringService(telemetrymemory.NewReadingRepository(), nil, predictionmemory.NewAssessmentRepository()); err == nil {
		t.Fatalf("expected nil predictor error")
	}
}
