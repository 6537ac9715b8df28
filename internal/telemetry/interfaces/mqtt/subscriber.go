package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"rockfall-monitor/internal/observability/metrics"
	"rockfall-monitor/internal/telemetry/domain"
)

const (
	metricsSource   = "mqtt"
	defaultQoS      = byte(1)
	defaultTimeout  = 10 * time.Second
	disconnectQuiet = 250
)

// NewClient builds a paho client for the given broker.
func NewClient(brokerURL, clientID string) (paho.Client, error) {
	if brokerURL == "" {
		return nil, errors.New("mqtt: empty broker url")
	}
	if clientID == "" {
		clientID = "rockfall-monitor"
	}
	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(defaultTimeout)
	return paho.NewClient(opts), nil
}

// Subscriber stores readings published by field gateways on an MQTT topic.
type Subscriber struct {
	client paho.Client
	topic  string
	qos    byte
	repo   telemetry.ReadingRepository
	logger *log.Logger
	now    func() time.Time
}

// Option customizes the subscriber.
type Option func(*Subscriber)

// WithQoS sets the subscription QoS.
func WithQoS(qos byte) Option {
	return func(s *Subscriber) {
		if qos <= 2 {
			s.qos = qos
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Subscriber) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp readings without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Subscriber) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSubscriber constructs a subscriber.
func NewSubscriber(client paho.Client, topic string, repo telemetry.ReadingRepository, opts ...Option) (*Subscriber, error) {
	if client == nil {
		return nil, errors.New("mqtt subscriber: nil client")
	}
	if topic == "" {
		return nil, errors.New("mqtt subscriber: empty topic")
	}
	if repo == nil {
		return nil, errors.New("mqtt subscriber: nil repository")
	}
	s := &Subscriber{
		client: client,
		topic:  topic,
		qos:    defaultQoS,
		repo:   repo,
		logger: log.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Run connects, subscribes and blocks until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	if err := wait(s.client.Connect()); err != nil {
		return fmt.Errorf("mqtt subscriber: connect: %w", err)
	}
	token := s.client.Subscribe(s.topic, s.qos, func(_ paho.Client, msg paho.Message) {
		s.handleMessage(ctx, msg)
	})
	if err := wait(token); err != nil {
		s.client.Disconnect(disconnectQuiet)
		return fmt.Errorf("mqtt subscriber: subscribe %s: %w", s.topic, err)
	}
	s.logger.Printf("mqtt subscriber: listening on %s", s.topic)

	<-ctx.Done()
	s.client.Unsubscribe(s.topic).WaitTimeout(defaultTimeout)
	s.client.Disconnect(disconnectQuiet)
	return nil
}

func wait(token paho.Token) error {
	if !token.WaitTimeout(defaultTimeout) {
		return errors.New("timeout")
	}
	return token.Error()
}

func (s *Subscriber) handleMessage(ctx context.Context, msg paho.Message) {
	if err := s.ingest(ctx, msg.Payload()); err != nil {
		s.logger.Printf("mqtt subscriber: topic=%s: %v", msg.Topic(), err)
	}
}

func (s *Subscriber) ingest(ctx context.Context, payload []byte) error {
	readings, err := telemetry.DecodeReadings(payload, s.now())
	if err != nil {
		metrics.AddIngestReadings(metricsSource, metrics.ResultError, 1)
		return err
	}
	if err := s.repo.InsertReadings(ctx, readings); err != nil {
		metrics.AddIngestReadings(metricsSource, metrics.ResultError, len(readings))
		return fmt.Errorf("insert: %w", err)
	}
	metrics.AddIngestReadings(metricsSource, metrics.ResultSuccess, len(readings))
	return nil
}
