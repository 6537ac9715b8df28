package mqtt

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
	"time"

	"rockfall-monitor/internal/telemetry/domain"
	"rockfall-monitor/internal/telemetry/infrastructure/memory"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestSubscriberStoresPublishedReadings(t *testing.T) {
	client, err := NewClient("tcp://127.0.0.1:1883", "")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	repo := memory.NewReadingRepository()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	sub, err := NewSubscriber(client, "rockfall/sensors/+/readings", repo, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new subscriber: %v", err)
	}

	sub.handleMessage(context.Background(), fakeMessage{
		topic:   "rockfall/sensors/SENSOR_004/readings",
		payload: []byte(`{"sensor_id":"SENSOR_004","vibration_level":42,"moisture_level":60}`),
	})
	if repo.Count() != 1 {
		t.Fatalf("expected 1 stored reading, got %d", repo.Count())
	}
	readings, _ := repo.QueryWindow(context.Background(), telemetry.ReadingFilter{Since: now})
	if len(readings) != 1 || readings[0].Vibration != 42 {
		t.Fatalf("unexpected stored readings: %+v", readings)
	}
}

func TestSubscriberLogsBadPayload(t *testing.T) {
	client, _ := NewClient("tcp://127.0.0.1:1883", "test")
	var buf bytes.Buffer
	repo := memory.NewReadingRepository()
	sub, err := NewSubscriber(client, "rockfall/sensors/+/readings", repo, WithLogger(log.New(&buf, "", 0)))
	if err != nil {
		t.Fatalf("new subscriber: %v", err)
	}

	sub.handleMessage(context.Background(), fakeMessage{topic: "rockfall/sensors/x/readings", payload: []byte("garbage")})
	if repo.Count() != 0 {
		t.Fatalf("expected nothing stored, got %d", repo.Count())
	}
	if !strings.Contains(buf.String(), "mqtt subscriber: topic=rockfall/sensors/x/readings") {
		t.Fatalf("expected failure to be logged, got %q", buf.String())
	}
}

func TestNewSubscriberValidation(t *testing.T) {
	if _, err := NewClient("", ""); err == nil {
		t.Fatalf("expected empty broker to fail")
	}
	client, _ := NewClient("tcp://127.0.0.1:1883", "")
	if _, err := NewSubscriber(client, "", memory.NewReadingRepository()); err == nil {
		t.Fatalf("expected empty topic to fail")
	}
	if _, err := NewSubscriber(client, "t", nil); err == nil {
		t.Fatalf("expected nil repository to fail")
	}
}
