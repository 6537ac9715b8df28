package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	alerts "rockfall-monitor/internal/alerts/domain"
	"rockfall-monitor/internal/prediction/domain"
)

const defaultAlertsTable = "alert_events"

// AlertRepository is a Postgres repository for the alert log.
type AlertRepository struct {
	db    *sql.DB
	table string
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db, table: defaultAlertsTable}
}

// Save inserts an alert record.
func (r *AlertRepository) Save(ctx context.Context, record alerts.AlertRecord) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if record.ID == "" || record.Severity == "" {
		return errors.New("alert repo: missing fields")
	}
	factors := record.Assessment.ContributingFactors
	if factors == nil {
		factors = []string{}
	}
	encoded, err := json.Marshal(factors)
	if err != nil {
		return fmt.Errorf("alert repo: encode factors: %w", err)
	}
	_, err = r.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (
	id, severity, message, risk_level, confidence, location, assessed_at, factors, recorded_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, r.table),
		record.ID,
		string(record.Severity),
		record.Message,
		record.Assessment.Level.String(),
		record.Assessment.Confidence,
		record.Assessment.Location,
		record.Assessment.AssessedAt.UTC(),
		string(encoded),
		record.RecordedAt.UTC(),
	)
	return err
}

// List returns records with recorded_at in [From, To), newest first.
func (r *AlertRepository) List(ctx context.Context, filter alerts.AlertFilter) ([]alerts.AlertRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, severity, message, risk_level, confidence, location, assessed_at, factors, recorded_at
FROM %s
WHERE recorded_at >= $1 AND recorded_at < $2`, r.table)
	args := []any{filter.From.UTC(), filter.To.UTC()}
	if filter.Severity != "" {
		query += " AND severity = $3"
		args = append(args, string(filter.Severity))
	}
	query += " ORDER BY recorded_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alerts.AlertRecord
	for rows.Next() {
		record, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type alertScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row alertScanner) (alerts.AlertRecord, error) {
	var (
		record   alerts.AlertRecord
		severity string
		level    string
		factors  []byte
	)
	if err := row.Scan(
		&record.ID,
		&severity,
		&record.Message,
		&level,
		&record.Assessment.Confidence,
		&record.Assessment.Location,
		&record.Assessment.AssessedAt,
		&factors,
		&record.RecordedAt,
	); err != nil {
		return alerts.AlertRecord{}, err
	}
	parsedSeverity, err := alerts.ParseSeverity(severity)
	if err != nil {
		return alerts.AlertRecord{}, err
	}
	parsedLevel, err := prediction.ParseRiskLevel(level)
	if err != nil {
		return alerts.AlertRecord{}, err
	}
	record.Severity = parsedSeverity
	record.Assessment.Level = parsedLevel
	record.Assessment.AssessedAt = record.Assessment.AssessedAt.UTC()
	record.RecordedAt = record.RecordedAt.UTC()
	record.Assessment.ContributingFactors = []string{}
	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &record.Assessment.ContributingFactors); err != nil {
			return alerts.AlertRecord{}, fmt.Errorf("alert repo: decode factors: %w", err)
		}
	}
	return record, nil
}
