package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rockfall-monitor/internal/telemetry/domain"
)

// ReadingQuery is a Postgres query implementation.
type ReadingQuery struct {
	db    *sql.DB
	table string
}

// NewReadingQuery constructs a query with default table name.
func NewReadingQuery(db *sql.DB, opts ...QueryOption) *ReadingQuery {
	query := &ReadingQuery{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

// QueryWindow returns readings within [Since, Until), oldest first.
func (q *ReadingQuery) QueryWindow(ctx context.Context, filter telemetry.ReadingFilter) ([]telemetry.SensorReading, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("reading query: nil db")
	}
	if filter.Since.IsZero() {
		return nil, errors.New("reading query: since required")
	}

	var (
		clauses = []string{"ts >= $1"}
		args    = []any{filter.Since.UTC()}
	)
	if !filter.Until.IsZero() {
		args = append(args, filter.Until.UTC())
		clauses = append(clauses, fmt.Sprintf("ts < $%d", len(args)))
	}
	if filter.SensorID != "" {
		args = append(args, filter.SensorID)
		clauses = append(clauses, fmt.Sprintf("sensor_id = $%d", len(args)))
	}

	query := fmt.Sprintf(`
SELECT sensor_id, ts, vibration_level, temperature, moisture_level, pressure, location_x, location_y
FROM %s
WHERE %s
ORDER BY ts ASC`, q.table, strings.Join(clauses, " AND "))

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]telemetry.SensorReading, 0)
	for rows.Next() {
		var (
			reading telemetry.SensorReading
			ts      time.Time
		)
		if err := rows.Scan(
			&reading.SensorID,
			&ts,
			&reading.Vibration,
			&reading.Temperature,
			&reading.Moisture,
			&reading.Pressure,
			&reading.LocationX,
			&reading.LocationY,
		); err != nil {
			return nil, err
		}
		reading.Timestamp = ts.UTC()
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}

// ListSensorIDs returns the distinct sensor ids seen so far.
func (q *ReadingQuery) ListSensorIDs(ctx context.Context) ([]string, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("reading query: nil db")
	}
	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(`SELECT DISTINCT sensor_id FROM %s ORDER BY sensor_id ASC`, q.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// QueryOption configures the reading query.
type QueryOption func(*ReadingQuery)

// WithQueryTable overrides the default table name for queries.
func WithQueryTable(table string) QueryOption {
	return func(query *ReadingQuery) {
		if query != nil && table != "" {
			query.table = table
		}
	}
}
