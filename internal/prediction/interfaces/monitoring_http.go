package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"rockfall-monitor/internal/audit"
	"rockfall-monitor/internal/observability/metrics"
	predictionapp "rockfall-monitor/internal/prediction/application"
	"rockfall-monitor/internal/prediction/domain"
	"rockfall-monitor/internal/telemetry/domain"
)

const (
	timeLayout   = time.RFC3339
	maxBodyBytes = 1 << 20
)

// Monitor is the monitoring service surface served over HTTP.
type Monitor interface {
	CurrentStatus(ctx context.Context) (predictionapp.Status, error)
	AssessRisk(ctx context.Context, sensorID string) (prediction.AssessmentRecord, error)
	Predict(ctx context.Context, readings []telemetry.SensorReading) prediction.RiskAssessment
	History(ctx context.Context, from, to time.Time) ([]prediction.AssessmentRecord, error)
}

// MonitoringHandler serves status, assessment and report endpoints.
type MonitoringHandler struct {
	monitor     Monitor
	auditLogger audit.Logger
	logger      *log.Logger
	now         func() time.Time
}

// MonitoringOption customizes the handler.
type MonitoringOption func(*MonitoringHandler)

// WithAuditLogger records report exports.
func WithAuditLogger(logger audit.Logger) MonitoringOption {
	return func(h *MonitoringHandler) {
		h.auditLogger = logger
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) MonitoringOption {
	return func(h *MonitoringHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewMonitoringHandler constructs a handler.
func NewMonitoringHandler(monitor Monitor, opts ...MonitoringOption) (*MonitoringHandler, error) {
	if monitor == nil {
		return nil, errors.New("monitoring handler: nil service")
	}
	h := &MonitoringHandler{
		monitor: monitor,
		logger:  log.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// ServeHTTP routes monitoring, assessment history and report requests.
func (h *MonitoringHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/monitoring/current-status":
		h.requireGet(w, r, h.handleCurrentStatus)
	case "/api/v1/monitoring/risk-assessment":
		h.requireGet(w, r, h.handleRiskAssessment)
	case "/api/v1/monitoring/predict":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handlePredict(w, r)
	case "/api/v1/assessments":
		h.requireGet(w, r, h.handleHistory)
	case "/api/v1/reports/assessments.pdf":
		h.requireGet(w, r, func(w http.ResponseWriter, r *http.Request) {
			h.handleExport(w, r, "pdf", "application/pdf", BuildAssessmentPDF)
		})
	case "/api/v1/reports/assessments.xlsx":
		h.requireGet(w, r, func(w http.ResponseWriter, r *http.Request) {
			h.handleExport(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", BuildAssessmentXLSX)
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *MonitoringHandler) requireGet(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	next(w, r)
}

func (h *MonitoringHandler) handleCurrentStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.monitor.CurrentStatus(r.Context())
	if err != nil {
		h.logger.Printf("monitoring handler: current status: %v", err)
		http.Error(w, "current status unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *MonitoringHandler) handleRiskAssessment(w http.ResponseWriter, r *http.Request) {
	record, err := h.monitor.AssessRisk(r.Context(), r.URL.Query().Get("sensor_id"))
	if err != nil {
		h.logger.Printf("monitoring handler: risk assessment: %v", err)
		http.Error(w, "risk assessment unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *MonitoringHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body failed", http.StatusBadRequest)
		return
	}
	readings, err := decodePredictBody(body, h.now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.monitor.Predict(r.Context(), readings))
}

// decodePredictBody accepts a bare JSON array of readings as well as the ingest forms.
// An empty array predicts over no readings.
func decodePredictBody(body []byte, now time.Time) ([]telemetry.SensorReading, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var probe []json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, errors.New("invalid readings: " + err.Error())
		}
		if len(probe) == 0 {
			return []telemetry.SensorReading{}, nil
		}
		wrapped := make([]byte, 0, len(trimmed)+14)
		wrapped = append(wrapped, `{"readings":`...)
		wrapped = append(wrapped, trimmed...)
		wrapped = append(wrapped, '}')
		trimmed = wrapped
	}
	return telemetry.DecodeReadings(trimmed, now)
}

func (h *MonitoringHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	records, err := h.monitor.History(r.Context(), period.From, period.To)
	if err != nil {
		respondHistoryError(w, err)
		return
	}
	if records == nil {
		records = []prediction.AssessmentRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type reportBuilder func(ReportPeriod, []prediction.AssessmentRecord) ([]byte, error)

func (h *MonitoringHandler) handleExport(w http.ResponseWriter, r *http.Request, format, contentType string, build reportBuilder) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportExport(format, result, time.Since(start))
	}()

	period, err := parsePeriod(r)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	records, err := h.monitor.History(r.Context(), period.From, period.To)
	if err != nil {
		result = metrics.ResultError
		respondHistoryError(w, err)
		return
	}
	data, err := build(period, records)
	if err != nil {
		result = metrics.ResultError
		h.logger.Printf("monitoring handler: export %s: %v", format, err)
		http.Error(w, "export "+format+" error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="assessments.`+format+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	audit.Record(r.Context(), h.auditLogger, h.logger, audit.FromRequest(r, audit.ActionReportExport, "report", "assessments", map[string]any{
		"format":      format,
		"from":        period.From.Format(timeLayout),
		"to":          period.To.Format(timeLayout),
		"assessments": len(records),
	}))
}

func respondHistoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, predictionapp.ErrInvalidRange) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func parsePeriod(r *http.Request) (ReportPeriod, error) {
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return ReportPeriod{}, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return ReportPeriod{}, err
	}
	if !to.After(from) {
		return ReportPeriod{}, errors.New("to must be after from")
	}
	return ReportPeriod{From: from, To: to}, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
