package application

import (
	"context"
	"errors"
	"log"
	"time"

	"rockfall-monitor/internal/observability/metrics"
	"rockfall-monitor/internal/telemetry/domain"
)

// DefaultRetentionInterval runs the purge once a day.
const DefaultRetentionInterval = 24 * time.Hour

// Retention purges readings older than a maximum age.
type Retention struct {
	repo   telemetry.ReadingRepository
	maxAge time.Duration
	logger *log.Logger
	now    func() time.Time
}

// RetentionOption customizes the retention job.
type RetentionOption func(*Retention)

// WithRetentionLogger assigns a logger.
func WithRetentionLogger(logger *log.Logger) RetentionOption {
	return func(r *Retention) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRetentionClock overrides the clock.
func WithRetentionClock(now func() time.Time) RetentionOption {
	return func(r *Retention) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRetention constructs a retention job.
func NewRetention(repo telemetry.ReadingRepository, maxAge time.Duration, opts ...RetentionOption) (*Retention, error) {
	if repo == nil {
		return nil, errors.New("retention: nil repository")
	}
	if maxAge <= 0 {
		return nil, errors.New("retention: max age must be positive")
	}
	r := &Retention{
		repo:   repo,
		maxAge: maxAge,
		logger: log.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// PurgeOnce deletes readings older than the max age and returns how many were removed.
func (r *Retention) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.maxAge)
	purged, err := r.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.AddRetentionPurged(purged)
	if purged > 0 {
		r.logger.Printf("retention: purged %d readings before %s", purged, cutoff.Format(time.RFC3339))
	}
	return purged, nil
}

// Start purges immediately and then every interval until ctx is done.
func (r *Retention) Start(ctx context.Context, interval time.Duration) {
	if r == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}
	r.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Retention) runOnce(ctx context.Context) {
	if _, err := r.PurgeOnce(ctx); err != nil && ctx.Err() == nil {
		r.logger.Printf("retention: purge error: %v", err)
	}
}
