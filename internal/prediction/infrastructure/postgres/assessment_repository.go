package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rockfall-monitor/internal/prediction/domain"
)

const defaultAssessmentsTable = "risk_assessments"

// AssessmentRepository is a Postgres repository for assessment history.
type AssessmentRepository struct {
	db    *sql.DB
	table string
}

// NewAssessmentRepository constructs a repository.
func NewAssessmentRepository(db *sql.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db, table: defaultAssessmentsTable}
}

// Save inserts an assessment record.
func (r *AssessmentRepository) Save(ctx context.Context, record prediction.AssessmentRecord) error {
	if r == nil || r.db == nil {
		return errors.New("assessment repo: nil db")
	}
	if record.ID == "" {
		return errors.New("assessment repo: missing id")
	}
	factors, err := json.Marshal(nonNil(record.ContributingFactors))
	if err != nil {
		return fmt.Errorf("assessment repo: encode factors: %w", err)
	}
	_, err = r.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (
	id, sensor_id, reading_count, risk_level, confidence, location, assessed_at, factors
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, r.table),
		record.ID,
		nullableString(record.SensorID),
		record.ReadingCount,
		record.Level.String(),
		record.Confidence,
		record.Location,
		record.AssessedAt.UTC(),
		string(factors),
	)
	return err
}

// ListBetween lists assessments with assessed_at in [from, to), newest first.
func (r *AssessmentRepository) ListBetween(ctx context.Context, from, to time.Time) ([]prediction.AssessmentRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("assessment repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT id, sensor_id, reading_count, risk_level, confidence, location, assessed_at, factors
FROM %s
WHERE assessed_at >= $1 AND assessed_at < $2
ORDER BY assessed_at DESC`, r.table), from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []prediction.AssessmentRecord
	for rows.Next() {
		var (
			record   prediction.AssessmentRecord
			sensorID sql.NullString
			level    string
			factors  []byte
		)
		if err := rows.Scan(
			&record.ID,
			&sensorID,
			&record.ReadingCount,
			&level,
			&record.Confidence,
			&record.Location,
			&record.AssessedAt,
			&factors,
		); err != nil {
			return nil, err
		}
		if record.Level, err = prediction.ParseRiskLevel(level); err != nil {
			return nil, err
		}
		record.SensorID = sensorID.String
		record.AssessedAt = record.AssessedAt.UTC()
		record.ContributingFactors = []string{}
		if len(factors) > 0 {
			if err := json.Unmarshal(factors, &record.ContributingFactors); err != nil {
				return nil, fmt.Errorf("assessment repo: decode factors: %w", err)
			}
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
