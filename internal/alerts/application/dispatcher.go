package application

import (
	"context"
	"errors"
	"log"
	"time"

	alerts "rockfall-monitor/internal/alerts/domain"
	"rockfall-monitor/internal/observability/metrics"
	"rockfall-monitor/internal/prediction/domain"
)

// Notifier receives alert events. Delivery is the notifier's concern.
type Notifier interface {
	Notify(ctx context.Context, event alerts.AlertEvent)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Dispatcher turns assessments into alert events and hands them to a notifier.
// It keeps no history: every call with an alerting level notifies once.
type Dispatcher struct {
	notifier Notifier
	logger   *log.Logger
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(notifier Notifier, logger *log.Logger) (*Dispatcher, error) {
	if notifier == nil {
		return nil, errors.New("alert dispatcher: nil notifier")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{notifier: notifier, logger: logger}, nil
}

// Dispatch notifies for MEDIUM, HIGH and CRITICAL assessments and returns the event.
func (d *Dispatcher) Dispatch(ctx context.Context, assessment prediction.RiskAssessment) (alerts.AlertEvent, bool) {
	event, ok := alerts.AlertFor(assessment)
	if !ok {
		return alerts.AlertEvent{}, false
	}
	metrics.IncAlert(string(event.Severity))
	d.logger.Printf("alert %s: %s location=%s confidence=%.3f factors=%v",
		event.Severity, event.Message, assessment.Location, assessment.Confidence, assessment.ContributingFactors)
	d.notifier.Notify(ctx, event)
	return event, true
}
