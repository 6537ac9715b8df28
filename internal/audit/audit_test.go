package audit

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"log"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"rockfall-monitor/internal/auth"
)

func TestFromRequestCarriesIdentity(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/alerts/dispatch", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	req.Header.Set("User-Agent", "ops-console")
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.RoleOperator, "ops-1"))

	entry := FromRequest(req, ActionAlertDispatch, "alert", "Sector 0.0,0.0", map[string]any{"severity": "HIGH"})
	if entry.Actor != "ops-1" || entry.Role != "operator" {
		t.Fatalf("unexpected identity %+v", entry)
	}
	if entry.IP != "10.0.0.7" || entry.UserAgent != "ops-console" {
		t.Fatalf("unexpected client %+v", entry)
	}
	if string(entry.Metadata) != `{"severity":"HIGH"}` {
		t.Fatalf("unexpected metadata %s", entry.Metadata)
	}
}

func TestLogWriter(t *testing.T) {
	var buf bytes.Buffer
	writer := NewLogWriter(log.New(&buf, "", 0))
	Record(context.Background(), writer, nil, Entry{Action: ActionReportExport, ResourceType: "report", ResourceID: "pdf"})
	if !strings.Contains(buf.String(), "audit: report.export actor=anonymous") {
		t.Fatalf("unexpected log %q", buf.String())
	}
}

type failingLogger struct{}

func (failingLogger) Log(context.Context, Entry) error { return errors.New("db down") }

func TestRecordLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	Record(context.Background(), failingLogger{}, log.New(&buf, "", 0), Entry{Action: ActionAlertDispatch, ResourceType: "alert", ResourceID: "x"})
	if !strings.Contains(buf.String(), "audit: alert.dispatch alert/x: db down") {
		t.Fatalf("unexpected log %q", buf.String())
	}
	Record(context.Background(), nil, nil, Entry{})
}

type anyID struct{}

func (anyID) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, "audit-")
}

func TestRepositoryLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	meta := []byte(`{"format":"pdf"}`)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO operator_audit")).
		WithArgs(anyID{}, "admin-1", "admin", ActionReportExport, "report", "assessments", string(meta),
			DigestJSON(meta), "", "", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRepository(db)
	err = repo.Log(context.Background(), Entry{
		Actor:        "admin-1",
		Role:         "admin",
		Action:       ActionReportExport,
		ResourceType: "report",
		ResourceID:   "assessments",
		Metadata:     meta,
		CreatedAt:    at,
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
	if NewRepository(nil) != nil {
		t.Fatalf("expected nil repository for nil db")
	}
}
