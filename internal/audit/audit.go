package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"rockfall-monitor/internal/auth"
)

// Actions recorded for operator activity.
const (
	ActionAlertDispatch = "alert.dispatch"
	ActionReportExport  = "report.export"
	ActionReadingIngest = "reading.ingest"
)

// Entry represents an operator action.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FromRequest builds an entry for the caller identified on r.
func FromRequest(r *http.Request, action, resourceType, resourceID string, meta map[string]any) Entry {
	entry := Entry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
	if r == nil {
		return entry
	}
	entry.Actor = auth.SubjectFromContext(r.Context())
	entry.Role = string(auth.RoleFromContext(r.Context()))
	entry.UserAgent = r.UserAgent()
	entry.IP = r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		entry.IP = host
	}
	if len(meta) > 0 {
		if data, err := json.Marshal(meta); err == nil {
			entry.Metadata = data
		}
	}
	return entry
}

// Record writes entry through logger, logging failures. A nil logger is a no-op.
func Record(ctx context.Context, logger Logger, fallback *log.Logger, entry Entry) {
	if logger == nil {
		return
	}
	if err := logger.Log(ctx, entry); err != nil {
		if fallback == nil {
			fallback = log.Default()
		}
		fallback.Printf("audit: %s %s/%s: %v", entry.Action, entry.ResourceType, entry.ResourceID, err)
	}
}

// LogWriter writes audit entries as log lines. Used when no database is configured.
type LogWriter struct {
	logger *log.Logger
}

// NewLogWriter constructs a LogWriter.
func NewLogWriter(logger *log.Logger) *LogWriter {
	if logger == nil {
		logger = log.Default()
	}
	return &LogWriter{logger: logger}
}

// Log implements Logger.
func (w *LogWriter) Log(_ context.Context, entry Entry) error {
	actor := entry.Actor
	if actor == "" {
		actor = "anonymous"
	}
	w.logger.Printf("audit: %s actor=%s role=%s resource=%s/%s meta=%s", entry.Action, actor, entry.Role, entry.ResourceType, entry.ResourceID, string(entry.Metadata))
	return nil
}
