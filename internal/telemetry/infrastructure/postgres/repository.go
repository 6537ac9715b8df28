package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rockfall-monitor/internal/telemetry/domain"
)

const defaultReadingsTable = "sensor_readings"

// ReadingRepository is a Postgres implementation for sensor readings.
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// NewReadingRepository constructs a repository with default table name.
func NewReadingRepository(db *sql.DB, opts ...RepositoryOption) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ReadingRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// InsertReadings upserts sensor readings keyed by sensor and timestamp.
func (r *ReadingRepository) InsertReadings(ctx context.Context, readings []telemetry.SensorReading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if len(readings) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	sensor_id,
	ts,
	vibration_level,
	temperature,
	moisture_level,
	pressure,
	location_x,
	location_y
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)
ON CONFLICT (sensor_id, ts)
DO UPDATE SET
	vibration_level = EXCLUDED.vibration_level,
	temperature = EXCLUDED.temperature,
	moisture_level = EXCLUDED.moisture_level,
	pressure = EXCLUDED.pressure,
	location_x = EXCLUDED.location_x,
	location_y = EXCLUDED.location_y`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, reading := range readings {
		if err := reading.Validate(); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: %v", telemetry.ErrInvalidReading, err)
		}
		if _, err := stmt.ExecContext(
			ctx,
			reading.SensorID,
			reading.Timestamp.UTC(),
			reading.Vibration,
			reading.Temperature,
			reading.Moisture,
			reading.Pressure,
			reading.LocationX,
			reading.LocationY,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// DeleteBefore purges readings older than cutoff.
func (r *ReadingRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("reading repo: nil db")
	}
	if cutoff.IsZero() {
		return 0, errors.New("reading repo: empty cutoff")
	}
	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE ts < $1`, r.table), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
