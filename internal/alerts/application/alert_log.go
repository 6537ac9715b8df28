package application

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	alerts "rockfall-monitor/internal/alerts/domain"
	"rockfall-monitor/internal/observability/metrics"
)

const alertLogChannel = "log"

// ErrInvalidRange indicates a query whose end is not after its start.
var ErrInvalidRange = errors.New("alerts: invalid time range")

// AlertLog records every notified event in the alert repository.
type AlertLog struct {
	repo   alerts.AlertRepository
	clock  Clock
	logger *log.Logger
	newID  func() string
}

// AlertLogOption customizes the alert log.
type AlertLogOption func(*AlertLog)

// WithClock assigns a clock.
func WithClock(clock Clock) AlertLogOption {
	return func(l *AlertLog) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) AlertLogOption {
	return func(l *AlertLog) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewAlertLog constructs an alert log.
func NewAlertLog(repo alerts.AlertRepository, opts ...AlertLogOption) (*AlertLog, error) {
	if repo == nil {
		return nil, errors.New("alert log: nil repository")
	}
	l := &AlertLog{
		repo:   repo,
		clock:  systemClock{},
		logger: log.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Notify implements Notifier.
func (l *AlertLog) Notify(ctx context.Context, event alerts.AlertEvent) {
	record := alerts.AlertRecord{
		ID:         l.newID(),
		RecordedAt: l.clock.Now(),
		AlertEvent: event,
	}
	if err := l.repo.Save(ctx, record); err != nil {
		metrics.IncAlertDelivery(alertLogChannel, metrics.ResultError)
		l.logger.Printf("alert log: save %s: %v", record.ID, err)
		return
	}
	metrics.IncAlertDelivery(alertLogChannel, metrics.ResultSuccess)
}

// List returns recorded alerts in [from, to), optionally for one severity.
func (l *AlertLog) List(ctx context.Context, from, to time.Time, severity alerts.Severity) ([]alerts.AlertRecord, error) {
	if !to.After(from) {
		return nil, ErrInvalidRange
	}
	return l.repo.List(ctx, alerts.AlertFilter{From: from, To: to, Severity: severity})
}
