package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	alerts "rockfall-monitor/internal/alerts/domain"
	"rockfall-monitor/internal/audit"
	"rockfall-monitor/internal/prediction/domain"
)

const (
	timeLayout   = time.RFC3339
	maxBodyBytes = 64 << 10
)

// AlertLister lists recorded alerts.
type AlertLister interface {
	List(ctx context.Context, from, to time.Time, severity alerts.Severity) ([]alerts.AlertRecord, error)
}

// Dispatcher raises an alert for an assessment.
type Dispatcher interface {
	Dispatch(ctx context.Context, assessment prediction.RiskAssessment) (alerts.AlertEvent, bool)
}

type dispatchResponse struct {
	Dispatched bool               `json:"dispatched"`
	Alert      *alerts.AlertEvent `json:"alert,omitempty"`
}

// Handler provides alert HTTP endpoints.
type Handler struct {
	alerts      AlertLister
	dispatcher  Dispatcher
	auditLogger audit.Logger
	logger      *log.Logger
}

// HandlerOption customizes the handler.
type HandlerOption func(*Handler)

// WithAuditLogger records manual dispatches.
func WithAuditLogger(logger audit.Logger) HandlerOption {
	return func(h *Handler) {
		h.auditLogger = logger
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a handler.
func NewHandler(alertLog AlertLister, dispatcher Dispatcher, opts ...HandlerOption) (*Handler, error) {
	if alertLog == nil {
		return nil, errors.New("alerts handler: nil alert log")
	}
	if dispatcher == nil {
		return nil, errors.New("alerts handler: nil dispatcher")
	}
	h := &Handler{alerts: alertLog, dispatcher: dispatcher, logger: log.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// ServeHTTP handles /api/v1/alerts and /api/v1/alerts/dispatch.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/alerts":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case "/api/v1/alerts/dispatch":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleDispatch(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}
	var severity alerts.Severity
	if raw := r.URL.Query().Get("severity"); raw != "" {
		severity, err = alerts.ParseSeverity(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	list, err := h.alerts.List(r.Context(), from, to, severity)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []alerts.AlertRecord{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body failed", http.StatusBadRequest)
		return
	}
	var assessment prediction.RiskAssessment
	if err := json.Unmarshal(body, &assessment); err != nil {
		http.Error(w, "invalid assessment: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !assessment.Level.Valid() {
		http.Error(w, "invalid risk_level", http.StatusBadRequest)
		return
	}
	if assessment.Confidence < 0 || assessment.Confidence > 1 {
		http.Error(w, "confidence_score must be within [0,1]", http.StatusBadRequest)
		return
	}
	if assessment.AssessedAt.IsZero() {
		assessment.AssessedAt = time.Now().UTC()
	}
	if assessment.Location == "" {
		assessment.Location = prediction.UnknownLocation
	}
	if assessment.ContributingFactors == nil {
		assessment.ContributingFactors = []string{}
	}

	resp := dispatchResponse{}
	if event, ok := h.dispatcher.Dispatch(r.Context(), assessment); ok {
		resp.Dispatched = true
		resp.Alert = &event
	}
	audit.Record(r.Context(), h.auditLogger, h.logger, audit.FromRequest(r, audit.ActionAlertDispatch, "assessment", assessment.Location, map[string]any{
		"risk_level": assessment.Level.String(),
		"dispatched": resp.Dispatched,
	}))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
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
