package memory

import (
	"context"
	"testing"
	"time"

	"rockfall-monitor/internal/prediction/domain"
)

func TestAssessmentRepositoryListBetween(t *testing.T) {
	repo := NewAssessmentRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		rec := prediction.AssessmentRecord{ID: id, RiskAssessment: prediction.RiskAssessment{AssessedAt: base.Add(time.Duration(i) * time.Hour)}}
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := repo.Save(ctx, prediction.AssessmentRecord{}); err == nil {
		t.Fatalf("expected missing id error")
	}

	list, err := repo.ListBetween(ctx, base, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("unexpected list: %+v", list)
	}
}
