package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"rockfall-monitor/internal/prediction/domain"
)

func TestAssessmentRepositorySave(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO risk_assessments")).
		WithArgs("a-1", nil, 4, "MEDIUM", 0.75, "Sector 100.0,0.0", at, `["high vibration"]`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewAssessmentRepository(db)
	err = repo.Save(context.Background(), prediction.AssessmentRecord{
		ID:           "a-1",
		ReadingCount: 4,
		RiskAssessment: prediction.RiskAssessment{
			Level:               prediction.RiskMedium,
			Confidence:          0.75,
			Location:            "Sector 100.0,0.0",
			AssessedAt:          at,
			ContributingFactors: []string{prediction.FactorHighVibration},
		},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAssessmentRepositoryListBetween(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	at := from.Add(8 * time.Hour)
	rows := sqlmock.NewRows([]string{"id", "sensor_id", "reading_count", "risk_level", "confidence", "location", "assessed_at", "factors"}).
		AddRow("a-2", "SENSOR_003", 12, "CRITICAL", 0.5, "Sector 300.0,0.0", at, []byte(`["high vibration","high moisture"]`)).
		AddRow("a-1", nil, 0, "LOW", 0.0, "Unknown", at.Add(-time.Hour), []byte(`[]`))
	mock.ExpectQuery(regexp.QuoteMeta("FROM risk_assessments WHERE assessed_at >= $1 AND assessed_at < $2")).
		WithArgs(from, to).
		WillReturnRows(rows)

	repo := NewAssessmentRepository(db)
	list, err := repo.ListBetween(context.Background(), from, to)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
	if list[0].Level != prediction.RiskCritical || list[0].SensorID != "SENSOR_003" || len(list[0].ContributingFactors) != 2 {
		t.Fatalf("unexpected first record: %+v", list[0])
	}
	if list[1].SensorID != "" || list[1].ContributingFactors == nil {
		t.Fatalf("unexpected second record: %+v", list[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAssessmentRepositoryRequiresID(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	if err := NewAssessmentRepository(db).Save(context.Background(), prediction.AssessmentRecord{}); err == nil {
		t.Fatalf("expected missing id error")
	}
}
