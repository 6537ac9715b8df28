package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rockfall-monitor/internal/prediction/domain"
)

// ErrUnknownSeverity indicates a severity name that does not parse.
var ErrUnknownSeverity = errors.New("alert: unknown severity")

// Severity tags a notification.
type Severity string

const (
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Messages sent for each severity.
const (
	MessageCritical = "Immediate evacuation required"
	MessageHigh     = "Evacuation recommended"
	MessageMedium   = "Enhanced monitoring required"
)

// ParseSeverity parses a severity name, case-insensitively.
func ParseSeverity(value string) (Severity, error) {
	switch Severity(strings.ToUpper(strings.TrimSpace(value))) {
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	case SeverityCritical:
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, value)
	}
}

// AlertEvent is a notification decided for one assessment.
// It carries no identity of its own.
type AlertEvent struct {
	Severity   Severity                  `json:"severity"`
	Message    string                    `json:"message"`
	Assessment prediction.RiskAssessment `json:"assessment"`
}

// AlertFor maps an assessment to its alert. LOW produces none.
func AlertFor(assessment prediction.RiskAssessment) (AlertEvent, bool) {
	var (
		severity Severity
		message  string
	)
	switch assessment.Level {
	case prediction.RiskCritical:
		severity, message = SeverityCritical, MessageCritical
	case prediction.RiskHigh:
		severity, message = SeverityHigh, MessageHigh
	case prediction.RiskMedium:
		severity, message = SeverityMedium, MessageMedium
	default:
		return AlertEvent{}, false
	}
	return AlertEvent{Severity: severity, Message: message, Assessment: assessment}, true
}

// AutoDispatch reports whether the prediction pipeline raises alerts for level on its own.
func AutoDispatch(level prediction.RiskLevel) bool {
	return level == prediction.RiskHigh || level == prediction.RiskCritical
}

// AlertRecord is an alert event as stored in the alert log.
type AlertRecord struct {
	ID         string    `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
	AlertEvent
}

// AlertFilter selects alert records. Empty Severity means all.
type AlertFilter struct {
	From     time.Time
	To       time.Time
	Severity Severity
}

// AlertRepository persists the alert log.
type AlertRepository interface {
	Save(ctx context.Context, record AlertRecord) error
	List(ctx context.Context, filter AlertFilter) ([]AlertRecord, error)
}
