package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	alerts "rockfall-monitor/internal/alerts/domain"
	"rockfall-monitor/internal/observability/metrics"
)

// Clock provides time for cooldown bookkeeping.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders alert events and sends them through a channel.
type Notifier struct {
	name           string
	channel        Channel
	template       *Template
	clock          Clock
	logger         *log.Logger
	mu             sync.Mutex
	sent           map[string]sendRecord
	cooldown       time.Duration
	dedupeWindow   time.Duration
	requestTimeout time.Duration
}

// Option configures the notifier.
type Option func(*Notifier)

// WithName sets the channel label used in logs and metrics.
func WithName(name string) Option {
	return func(n *Notifier) {
		if name != "" {
			n.name = name
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithRequestTimeout bounds each channel send.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same severity and location.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs an alert notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("alert notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		name:           "channel",
		channel:        channel,
		template:       template,
		clock:          systemClock{},
		logger:         log.Default(),
		sent:           make(map[string]sendRecord),
		requestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements alertapp.Notifier. Cooldown and dedupe are off unless configured.
func (n *Notifier) Notify(ctx context.Context, event alerts.AlertEvent) {
	if n == nil || n.channel == nil {
		return
	}
	content, err := n.template.Render(buildTemplateData(event))
	if err != nil {
		n.logger.Printf("alert notifier %s: render: %v", n.name, err)
		metrics.IncAlertDelivery(n.name, metrics.ResultError)
		return
	}
	key := notificationKey(event)
	if !n.shouldSend(key, content) {
		metrics.IncAlertDelivery(n.name, metrics.ResultSkipped)
		return
	}

	sendCtx := ctx
	if n.requestTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, n.requestTimeout)
		defer cancel()
	}
	if err := n.channel.Send(sendCtx, content); err != nil {
		n.logger.Printf("alert notifier %s: send: %v", n.name, err)
		metrics.IncAlertDelivery(n.name, metrics.ResultError)
		return
	}
	n.markSent(key, content)
	metrics.IncAlertDelivery(n.name, metrics.ResultSuccess)
}

func buildTemplateData(event alerts.AlertEvent) TemplateData {
	a := event.Assessment
	assessedAt := ""
	if !a.AssessedAt.IsZero() {
		assessedAt = a.AssessedAt.UTC().Format(time.RFC3339)
	}
	return TemplateData{
		Severity:        string(event.Severity),
		Message:         event.Message,
		RiskLevel:       a.Level.String(),
		RiskDescription: a.Level.Description(),
		Location:        a.Location,
		Confidence:      fmt.Sprintf("%.0f%%", a.Confidence*100),
		AssessedAt:      assessedAt,
		Factors:         strings.Join(a.ContributingFactors, ", "),
		Suggestion:      suggestionFor(event.Severity),
	}
}

func suggestionFor(severity alerts.Severity) string {
	switch severity {
	case alerts.SeverityCritical:
		return "Clear personnel from the sector now and hold all work until a geotechnical inspection."
	case alerts.SeverityHigh:
		return "Withdraw personnel from the sector and inspect the slope."
	case alerts.SeverityMedium:
		return "Increase inspection frequency and review sensor trends."
	default:
		return "Monitor the sector."
	}
}

func (n *Notifier) shouldSend(key, content string) bool {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(key, content string) {
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func notificationKey(event alerts.AlertEvent) string {
	return string(event.Severity) + "|" + event.Assessment.Location
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
