package prediction

import (
	"context"
	"time"
)

// AssessmentRecord is a stored assessment with the window it was computed from.
type AssessmentRecord struct {
	ID           string `json:"id"`
	SensorID     string `json:"sensor_id,omitempty"`
	ReadingCount int    `json:"reading_count"`
	RiskAssessment
}

// AssessmentRepository persists assessment history.
type AssessmentRepository interface {
	Save(ctx context.Context, record AssessmentRecord) error
	ListBetween(ctx context.Context, from, to time.Time) ([]AssessmentRecord, error)
}
