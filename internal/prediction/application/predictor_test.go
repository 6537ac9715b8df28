package application

import (
	"bytes"
	"context"
	"errors"
	"log"
	"reflect"
	"sync"
	"testing"
	"time"

	alerts "rockfall-monitor/internal/alerts/domain"
	"rockfall-monitor/internal/observability/diagnostics"
	"rockfall-monitor/internal/prediction/domain"
	"rockfall-monitor/internal/telemetry/domain"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingDispatcher struct {
	mu          sync.Mutex
	assessments []prediction.RiskAssessment
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, assessment prediction.RiskAssessment) (alerts.AlertEvent, bool) {
	_ = ctx
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assessments = append(d.assessments, assessment)
	return alerts.AlertFor(assessment)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.assessments)
}

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}

func newTestPredictor(opts ...Option) (*Predictor, *recordingDispatcher, *diagnostics.Recorder) {
	dispatcher := &recordingDispatcher{}
	faults := diagnostics.NewRecorder()
	base := []Option{
		WithClock(fixedClock{now: testNow}),
		WithDispatcher(dispatcher),
		WithDiagnostics(faults),
		WithLogger(quietLogger()),
	}
	return NewPredictor(append(base, opts...)...), dispatcher, faults
}

func sample(vib, temp, moist, press, x, y float64) telemetry.SensorReading {
	return telemetry.SensorReading{
		SensorID:    "SENSOR_001",
		Timestamp:   testNow,
		Vibration:   vib,
		Temperature: temp,
		Moisture:    moist,
		Pressure:    press,
		LocationX:   x,
		LocationY:   y,
	}
}

func assertDegraded(t *testing.T, got prediction.RiskAssessment) {
	t.Helper()
	want := prediction.Degraded(testNow)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected degraded assessment %+v, got %+v", want, got)
	}
}

func TestPredictEmptyWindow(t *testing.T) {
	p, dispatcher, faults := newTestPredictor()
	got := p.Predict(context.Background(), nil)

	if got.Level != prediction.RiskLow || got.Confidence != 0 || got.Location != prediction.UnknownLocation {
		t.Fatalf("unexpected assessment: %+v", got)
	}
	if got.ContributingFactors == nil || len(got.ContributingFactors) != 0 {
		t.Fatalf("expected empty factors, got %#v", got.ContributingFactors)
	}
	if dispatcher.count() != 0 || len(faults.Faults()) != 0 {
		t.Fatalf("expected no dispatch and no faults")
	}
}

func TestPredictSteadyWindow(t *testing.T) {
	p, dispatcher, _ := newTestPredictor()
	readings := make([]telemetry.SensorReading, 0, 10)
	for i := 0; i < 10; i++ {
		readings = append(readings, sample(20, 25, 50, 100, 100, 0))
	}
	got := p.Predict(context.Background(), readings)
	if got.Level != prediction.RiskLow || got.Confidence != 1 {
		t.Fatalf("expected LOW with full confidence, got %+v", got)
	}
	if got.Location != "Sector 100.0,0.0" {
		t.Fatalf("unexpected location %s", got.Location)
	}
	if dispatcher.count() != 0 {
		t.Fatalf("expected no alert")
	}
}

func TestPredictCriticalDispatchesOnce(t *testing.T) {
	p, dispatcher, faults := newTestPredictor()
	got := p.Predict(context.Background(), []telemetry.SensorReading{
		sample(80, 20, 90, 100, 0, 0),
		sample(80, 36, 90, 111, 200, 100),
	})
	if got.Level != prediction.RiskCritical {
		t.Fatalf("expected CRITICAL, got %s", got.Level)
	}
	if got.Location != "Sector 100.0,50.0" || !got.AssessedAt.Equal(testNow) {
		t.Fatalf("unexpected assessment: %+v", got)
	}
	if len(got.ContributingFactors) != 4 {
		t.Fatalf("expected 4 factors, got %v", got.ContributingFactors)
	}
	if dispatcher.count() != 1 {
		t.Fatalf("expected 1 dispatch, got %d", dispatcher.count())
	}
	event, ok := alerts.AlertFor(dispatcher.assessments[0])
	if !ok || event.Severity != alerts.SeverityCritical || event.Message != "Immediate evacuation required" {
		t.Fatalf("unexpected alert: %+v", event)
	}
	if len(faults.Faults()) != 0 {
		t.Fatalf("expected no faults")
	}
}

func TestPredictMediumDoesNotDispatch(t *testing.T) {
	p, dispatcher, _ := newTestPredictor()
	got := p.Predict(context.Background(), []telemetry.SensorReading{
		sample(80, 20, 90, 100, 0, 0),
		sample(80, 36, 90, 111, 0, 0),
		sample(80, 20, 90, 210, 0, 0),
		sample(80, 36, 90, 205, 0, 0),
	})
	if got.Level != prediction.RiskMedium {
		t.Fatalf("expected MEDIUM, got %s", got.Level)
	}
	if dispatcher.count() != 0 {
		t.Fatalf("expected no automatic dispatch for MEDIUM")
	}
}

func TestPredictAggregationErrorDegrades(t *testing.T) {
	boom := errors.New("aggregation failed")
	p, dispatcher, faults := newTestPredictor(WithAggregator(func([]telemetry.SensorReading) (prediction.Features, error) {
		return prediction.Features{}, boom
	}))

	got := p.Predict(context.Background(), []telemetry.SensorReading{sample(80, 20, 90, 100, 5, 5)})
	assertDegraded(t, got)

	recorded := faults.Faults()
	if len(recorded) != 1 {
		t.Fatalf("expected exactly one fault, got %d", len(recorded))
	}
	if recorded[0].Stage != StageAggregate || !errors.Is(recorded[0].Err, boom) || recorded[0].Panic || recorded[0].Readings != 1 {
		t.Fatalf("unexpected fault: %+v", recorded[0])
	}
	if dispatcher.count() != 0 {
		t.Fatalf("expected degraded result not to dispatch")
	}
}

func TestPredictAggregationPanicDegrades(t *testing.T) {
	p, _, faults := newTestPredictor(WithAggregator(func([]telemetry.SensorReading) (prediction.Features, error) {
		var values []float64
		_ = values[3]
		return prediction.Features{}, nil
	}))

	got := p.Predict(context.Background(), []telemetry.SensorReading{sample(1, 1, 1, 1, 0, 0)})
	assertDegraded(t, got)

	recorded := faults.Faults()
	if len(recorded) != 1 || !recorded[0].Panic || recorded[0].Stage != StageAggregate {
		t.Fatalf("unexpected faults: %+v", recorded)
	}
}

func TestPredictClassifierPanicDegrades(t *testing.T) {
	p, _, faults := newTestPredictor(WithClassifier(func(prediction.Features) prediction.RiskLevel {
		panic("classifier exploded")
	}))

	got := p.Predict(context.Background(), []telemetry.SensorReading{sample(80, 20, 90, 100, 0, 0)})
	assertDegraded(t, got)

	recorded := faults.Faults()
	if len(recorded) != 1 || recorded[0].Stage != StageClassify || !recorded[0].Panic {
		t.Fatalf("unexpected faults: %+v", recorded)
	}
}

func TestPredictNonFiniteInputDegrades(t *testing.T) {
	p, _, faults := newTestPredictor()
	inf := sample(80, 20, 90, 100, 0, 0)
	inf.Pressure = 1e308
	other := inf
	other.Pressure = -1e308
	got := p.Predict(context.Background(), []telemetry.SensorReading{inf, other})
	assertDegraded(t, got)

	recorded := faults.Faults()
	if len(recorded) != 1 || !errors.Is(recorded[0].Err, prediction.ErrNonFiniteStatistic) {
		t.Fatalf("unexpected faults: %+v", recorded)
	}
}

func TestPredictConcurrentCalls(t *testing.T) {
	p, dispatcher, _ := newTestPredictor()
	critical := []telemetry.SensorReading{sample(80, 20, 90, 100, 0, 0), sample(80, 36, 90, 111, 0, 0)}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := p.Predict(context.Background(), critical); got.Level != prediction.RiskCritical {
				t.Errorf("expected CRITICAL, got %s", got.Level)
			}
		}()
	}
	wg.Wait()
	if dispatcher.count() != 16 {
		t.Fatalf("expected 16 dispatches, got %d", dispatcher.count())
	}
}
