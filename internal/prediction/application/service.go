package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"rockfall-monitor/internal/prediction/domain"
	"rockfall-monitor/internal/telemetry/domain"
)

const (
	defaultStatusWindow     = 10 * time.Minute
	defaultAssessmentWindow = time.Hour
)

// ErrInvalidRange indicates a history query whose end is not after its start.
var ErrInvalidRange = errors.New("prediction: invalid time range")

// Status is the site overview served to dashboards.
type Status struct {
	Timestamp       time.Time            `json:"timestamp"`
	RiskLevel       prediction.RiskLevel `json:"risk_level"`
	RiskDescription string               `json:"risk_description"`
	Confidence      float64              `json:"confidence"`
	Location        string               `json:"location"`
	TotalReadings   int                  `json:"total_readings"`
	ActiveSensors   int                  `json:"active_sensors"`
}

// MonitoringService loads reading windows and runs predictions over them.
type MonitoringService struct {
	readings         telemetry.ReadingQuery
	predictor        *Predictor
	history          prediction.AssessmentRepository
	clock            Clock
	logger           *log.Logger
	statusWindow     time.Duration
	assessmentWindow time.Duration
	newID            func() string
}

// ServiceOption customizes the monitoring service.
type ServiceOption func(*MonitoringService)

// WithStatusWindow sets the lookback of CurrentStatus.
func WithStatusWindow(window time.Duration) ServiceOption {
	return func(s *MonitoringService) {
		if window > 0 {
			s.statusWindow = window
		}
	}
}

// WithAssessmentWindow sets the lookback of AssessRisk.
func WithAssessmentWindow(window time.Duration) ServiceOption {
	return func(s *MonitoringService) {
		if window > 0 {
			s.assessmentWindow = window
		}
	}
}

// WithServiceClock assigns a clock.
func WithServiceClock(clock Clock) ServiceOption {
	return func(s *MonitoringService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithServiceLogger assigns a logger.
func WithServiceLogger(logger *log.Logger) ServiceOption {
	return func(s *MonitoringService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewMonitoringService constructs a monitoring service.
func NewMonitoringService(readings telemetry.ReadingQuery, predictor *Predictor, history prediction.AssessmentRepository, opts ...ServiceOption) (*MonitoringService, error) {
	if readings == nil || history == nil {
		return nil, errors.New("monitoring: nil repository")
	}
	if predictor == nil {
		return nil, errors.New("monitoring: nil predictor")
	}
	s := &MonitoringService{
		readings:         readings,
		predictor:        predictor,
		history:          history,
		clock:            systemClock{},
		logger:           log.Default(),
		statusWindow:     defaultStatusWindow,
		assessmentWindow: defaultAssessmentWindow,
		newID:            uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// CurrentStatus predicts over the recent status window.
func (s *MonitoringService) CurrentStatus(ctx context.Context) (Status, error) {
	now := s.clock.Now()
	readings, err := s.readings.QueryWindow(ctx, telemetry.ReadingFilter{Since: now.Add(-s.statusWindow)})
	if err != nil {
		return Status{}, fmt.Errorf("monitoring: load readings: %w", err)
	}
	assessment := s.predictor.Predict(ctx, readings)
	return Status{
		Timestamp:       now,
		RiskLevel:       assessment.Level,
		RiskDescription: assessment.Level.Description(),
		Confidence:      assessment.Confidence,
		Location:        assessment.Location,
		TotalReadings:   len(readings),
		ActiveSensors:   distinctSensors(readings),
	}, nil
}

// AssessRisk predicts over the assessment window, optionally for one sensor,
// and appends the result to the assessment history.
func (s *MonitoringService) AssessRisk(ctx context.Context, sensorID string) (prediction.AssessmentRecord, error) {
	now := s.clock.Now()
	readings, err := s.readings.QueryWindow(ctx, telemetry.ReadingFilter{
		Since:    now.Add(-s.assessmentWindow),
		SensorID: sensorID,
	})
	if err != nil {
		return prediction.AssessmentRecord{}, fmt.Errorf("monitoring: load readings: %w", err)
	}

	record := prediction.AssessmentRecord{
		ID:             s.newID(),
		SensorID:       sensorID,
		ReadingCount:   len(readings),
		RiskAssessment: s.predictor.Predict(ctx, readings),
	}
	if err := s.history.Save(ctx, record); err != nil {
		s.logger.Printf("monitoring: save assessment %s: %v", record.ID, err)
	}
	return record, nil
}

// Predict runs an ad-hoc prediction over a caller supplied batch. Nothing is stored.
func (s *MonitoringService) Predict(ctx context.Context, readings []telemetry.SensorReading) prediction.RiskAssessment {
	return s.predictor.Predict(ctx, readings)
}

// History lists stored assessments in [from, to).
func (s *MonitoringService) History(ctx context.Context, from, to time.Time) ([]prediction.AssessmentRecord, error) {
	if !to.After(from) {
		return nil, ErrInvalidRange
	}
	return s.history.ListBetween(ctx, from, to)
}

func distinctSensors(readings []telemetry.SensorReading) int {
	seen := make(map[string]struct{}, len(readings))
	for _, r := range readings {
		seen[r.SensorID] = struct{}{}
	}
	return len(seen)
}
