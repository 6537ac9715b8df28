package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"rockfall-monitor/internal/prediction/domain"
)

// AssessmentRepository is an in-memory assessment history for demo/testing.
type AssessmentRepository struct {
	mu      sync.RWMutex
	records []prediction.AssessmentRecord
}

// NewAssessmentRepository constructs a repository.
func NewAssessmentRepository() *AssessmentRepository {
	return &AssessmentRepository{}
}

// Save appends a record.
func (r *AssessmentRepository) Save(ctx context.Context, record prediction.AssessmentRecord) error {
	_ = ctx
	if record.ID == "" {
		return errors.New("assessment repo: missing id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

// ListBetween lists records with AssessedAt in [from, to), newest first.
func (r *AssessmentRepository) ListBetween(ctx context.Context, from, to time.Time) ([]prediction.AssessmentRecord, error) {
	_ = ctx
	r.mu.RLock()
	var result []prediction.AssessmentRecord
	for _, record := range r.records {
		if record.AssessedAt.Before(from) || !record.AssessedAt.Before(to) {
			continue
		}
		result = append(result, record)
	}
	r.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].AssessedAt.After(result[j].AssessedAt)
	})
	return result, nil
}
