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
	"rockfall-monitor/internal/alerts/infrastructure/memory"
	"rockfall-monitor/internal/prediction/domain"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []alerts.AlertEvent
}

func (r *recordingNotifier) Notify(_ context.Context, event alerts.AlertEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func testAssessment(level prediction.RiskLevel) prediction.RiskAssessment {
	return prediction.RiskAssessment{
		Level:               level,
		Confidence:          0.66,
		Location:            "Sector 200.0,100.0",
		AssessedAt:          testNow,
		ContributingFactors: []string{prediction.FactorHighMoisture},
	}
}

func TestDispatcherIsIdempotent(t *testing.T) {
	notifier := &recordingNotifier{}
	dispatcher, err := NewDispatcher(notifier, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	a := testAssessment(prediction.RiskHigh)
	first, ok1 := dispatcher.Dispatch(context.Background(), a)
	second, ok2 := dispatcher.Dispatch(context.Background(), a)
	if !ok1 || !ok2 {
		t.Fatalf("expected both dispatches to produce events")
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected structurally identical events")
	}
	if len(notifier.events) != 2 {
		t.Fatalf("expected two independent notifications, got %d", len(notifier.events))
	}
	if first.Severity != alerts.SeverityHigh || first.Message != "Evacuation recommended" {
		t.Fatalf("unexpected event: %+v", first)
	}
}

func TestDispatcherLevels(t *testing.T) {
	notifier := &recordingNotifier{}
	var buf bytes.Buffer
	dispatcher, _ := NewDispatcher(notifier, log.New(&buf, "", 0))

	if _, ok := dispatcher.Dispatch(context.Background(), testAssessment(prediction.RiskLow)); ok {
		t.Fatalf("expected LOW to produce no event")
	}
	event, ok := dispatcher.Dispatch(context.Background(), testAssessment(prediction.RiskMedium))
	if !ok || event.Severity != alerts.SeverityMedium || event.Message != "Enhanced monitoring required" {
		t.Fatalf("expected informational MEDIUM notice, got %+v", event)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.events))
	}
	if !bytes.Contains(buf.Bytes(), []byte("alert MEDIUM")) {
		t.Fatalf("expected alert to be logged, got %q", buf.String())
	}
}

func TestNewDispatcherRequiresNotifier(t *testing.T) {
	if _, err := NewDispatcher(nil, nil); err == nil {
		t.Fatalf("expected nil notifier error")
	}
}

func TestAlertLogRecordsAndLists(t *testing.T) {
	repo := memory.NewAlertRepository()
	alertLog, err := NewAlertLog(repo, WithClock(fixedClock{now: testNow}))
	if err != nil {
		t.Fatalf("new alert log: %v", err)
	}
	dispatcher, _ := NewDispatcher(alertLog, log.New(&bytes.Buffer{}, "", 0))

	dispatcher.Dispatch(context.Background(), testAssessment(prediction.RiskCritical))
	dispatcher.Dispatch(context.Background(), testAssessment(prediction.RiskHigh))

	all, err := alertLog.List(context.Background(), testNow.Add(-time.Minute), testNow.Add(time.Minute), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID == "" || all[0].ID == all[1].ID {
		t.Fatalf("expected two records with distinct ids, got %+v", all)
	}
	critical, _ := alertLog.List(context.Background(), testNow.Add(-time.Minute), testNow.Add(time.Minute), alerts.SeverityCritical)
	if len(critical) != 1 || critical[0].Severity != alerts.SeverityCritical {
		t.Fatalf("unexpected critical records: %+v", critical)
	}
	if _, err := alertLog.List(context.Background(), testNow, testNow, ""); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected invalid range, got %v", err)
	}
}
