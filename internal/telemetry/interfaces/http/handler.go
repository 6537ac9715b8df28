package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rockfall-monitor/internal/observability/metrics"
	"rockfall-monitor/internal/telemetry/domain"
)

const (
	readingsPrefix      = "/api/v1/monitoring/sensor-readings/"
	sensorsPath         = "/api/v1/monitoring/sensors"
	defaultHistoryHours = 24
	maxHistoryHours     = 24 * 30
	maxBodyBytes        = 1 << 20
)

// IngestHandler stores readings posted by field gateways.
type IngestHandler struct {
	repo   telemetry.ReadingRepository
	logger *log.Logger
	source string
	now    func() time.Time
}

// IngestOption customizes the ingest handler.
type IngestOption func(*IngestHandler)

// WithSource sets the metrics label for this ingest path.
func WithSource(source string) IngestOption {
	return func(h *IngestHandler) {
		if source != "" {
			h.source = source
		}
	}
}

// WithClock overrides the clock used to stamp readings without a timestamp.
func WithClock(now func() time.Time) IngestOption {
	return func(h *IngestHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(repo telemetry.ReadingRepository, logger *log.Logger, opts ...IngestOption) (*IngestHandler, error) {
	if repo == nil {
		return nil, errors.New("telemetry ingest: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &IngestHandler{
		repo:   repo,
		logger: logger,
		source: "http",
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// ServeHTTP ingests one reading or a batch.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Printf("telemetry ingest: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	readings, err := telemetry.DecodeReadings(body, h.now())
	if err != nil {
		h.logger.Printf("telemetry ingest: invalid payload: %v", err)
		metrics.AddIngestReadings(h.source, metrics.ResultError, 1)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.repo.InsertReadings(r.Context(), readings); err != nil {
		h.logger.Printf("telemetry ingest: insert error: %v", err)
		metrics.AddIngestReadings(h.source, metrics.ResultError, len(readings))
		if errors.Is(err, telemetry.ErrInvalidReading) {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		http.Error(w, "insert error", http.StatusInternalServerError)
		return
	}
	metrics.AddIngestReadings(h.source, metrics.ResultSuccess, len(readings))

	resp := map[string]any{"inserted": len(readings)}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// ReadingsHandler serves sensor history and the sensor list.
type ReadingsHandler struct {
	query telemetry.ReadingQuery
	now   func() time.Time
}

// NewReadingsHandler constructs a readings handler.
func NewReadingsHandler(query telemetry.ReadingQuery) (*ReadingsHandler, error) {
	if query == nil {
		return nil, errors.New("telemetry readings: nil query")
	}
	return &ReadingsHandler{query: query, now: func() time.Time { return time.Now().UTC() }}, nil
}

// ServeHTTP handles /api/v1/monitoring/sensors and /api/v1/monitoring/sensor-readings/{sensorId}.
func (h *ReadingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch {
	case r.URL.Path == sensorsPath:
		h.handleSensors(w, r)
	case strings.HasPrefix(r.URL.Path, readingsPrefix):
		h.handleHistory(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ReadingsHandler) handleSensors(w http.ResponseWriter, r *http.Request) {
	ids, err := h.query.ListSensorIDs(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ids)
}

func (h *ReadingsHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sensorID := strings.Trim(strings.TrimPrefix(r.URL.Path, readingsPrefix), "/")
	if sensorID == "" || strings.Contains(sensorID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	hours, err := parseHours(r.URL.Query().Get("hours"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	now := h.now()
	readings, err := h.query.QueryWindow(r.Context(), telemetry.ReadingFilter{
		Since:    now.Add(-time.Duration(hours) * time.Hour),
		SensorID: sensorID,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if readings == nil {
		readings = []telemetry.SensorReading{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(readings)
}

func parseHours(value string) (int, error) {
	if value == "" {
		return defaultHistoryHours, nil
	}
	hours, err := strconv.Atoi(value)
	if err != nil || hours <= 0 {
		return 0, errors.New("hours must be a positive integer")
	}
	if hours > maxHistoryHours {
		return 0, errors.New("hours exceeds retention limit")
	}
	return hours, nil
}
