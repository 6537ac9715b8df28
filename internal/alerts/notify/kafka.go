package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	alerts "rockfall-monitor/internal/alerts/domain"
	"rockfall-monitor/internal/observability/metrics"
)

const kafkaChannelName = "kafka"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes alert events as JSON, keyed by location so that
// events for one sector stay ordered on a partition.
type KafkaNotifier struct {
	writer  messageWriter
	logger  *log.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewKafkaNotifier constructs a notifier writing to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string, logger *log.Logger) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka notifier: no brokers")
	}
	if topic == "" {
		return nil, errors.New("kafka notifier: empty topic")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaNotifier(writer, logger), nil
}

func newKafkaNotifier(writer messageWriter, logger *log.Logger) *KafkaNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &KafkaNotifier{
		writer:  writer,
		logger:  logger,
		timeout: 5 * time.Second,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Notify implements alertapp.Notifier.
func (k *KafkaNotifier) Notify(ctx context.Context, event alerts.AlertEvent) {
	if k == nil || k.writer == nil {
		return
	}
	value, err := json.Marshal(event)
	if err != nil {
		k.logger.Printf("kafka notifier: encode: %v", err)
		metrics.IncAlertDelivery(kafkaChannelName, metrics.ResultError)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(event.Assessment.Location),
		Value: value,
		Time:  k.now(),
	}
	if err := k.writer.WriteMessages(writeCtx, msg); err != nil {
		k.logger.Printf("kafka notifier: write: %v", err)
		metrics.IncAlertDelivery(kafkaChannelName, metrics.ResultError)
		return
	}
	metrics.IncAlertDelivery(kafkaChannelName, metrics.ResultSuccess)
}

// Close flushes and closes the writer.
func (k *KafkaNotifier) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
