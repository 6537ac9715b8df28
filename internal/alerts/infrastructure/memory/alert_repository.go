package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	alerts "rockfall-monitor/internal/alerts/domain"
)

// AlertRepository is an in-memory alert log for demo/testing.
type AlertRepository struct {
	mu      sync.RWMutex
	records []alerts.AlertRecord
}

// NewAlertRepository constructs a repository.
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{}
}

// Save appends a record.
func (r *AlertRepository) Save(ctx context.Context, record alerts.AlertRecord) error {
	_ = ctx
	if record.ID == "" {
		return errors.New("alert repo: missing id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

// List returns records with RecordedAt in [From, To), newest first.
func (r *AlertRepository) List(ctx context.Context, filter alerts.AlertFilter) ([]alerts.AlertRecord, error) {
	_ = ctx
	r.mu.RLock()
	var result []alerts.AlertRecord
	for _, record := range r.records {
		if record.RecordedAt.Before(filter.From) || !record.RecordedAt.Before(filter.To) {
			continue
		}
		if filter.Severity != "" && record.Severity != filter.Severity {
			continue
		}
		result = append(result, record)
	}
	r.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].RecordedAt.After(result[j].RecordedAt)
	})
	return result, nil
}

// Count returns the number of stored records.
func (r *AlertRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
