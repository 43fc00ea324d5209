package plan

import (
	"testing"
	"time"

	"github.com/calref/maestro/internal/store"
	"github.com/calref/maestro/pkg/models"
)

// backdatePlan rewrites a plan's creation time.
func backdatePlan(t *testing.T, s *Store, planID string, age time.Duration) {
	t.Helper()
	_, err := s.db.Exec("UPDATE plans SET created_at = ? WHERE id = ?",
		store.FormatTime(time.Now().Add(-age)), planID)
	if err != nil {
		t.Fatalf("backdating plan: %v", err)
	}
}

func TestCleanupOld_AgeSelectivity(t *testing.T) {
	s := newTestStore(t)

	old := mustCreatePlan(t, s, "old")
	fresh := mustCreatePlan(t, s, "fresh")
	backdatePlan(t, s, old, 40*24*time.Hour)

	deleted, err := s.CleanupOld(30, nil)
	if err != nil {
		t.Fatalf("CleanupOld failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d plans, want 1", deleted)
	}

	if _, err := s.GetPlan(old); err == nil {
		t.Error("old plan survived cleanup")
	}
	if _, err := s.GetPlan(fresh); err != nil {
		t.Errorf("fresh plan deleted: %v", err)
	}
}

func TestCleanupOld_StatusFilter(t *testing.T) {
	s := newTestStore(t)

	done := mustCreatePlan(t, s, "done")
	pending := mustCreatePlan(t, s, "pending")
	backdatePlan(t, s, done, 40*24*time.Hour)
	backdatePlan(t, s, pending, 40*24*time.Hour)
	if err := s.UpdatePlanStatus(done, models.PlanStatusCompleted); err != nil {
		t.Fatalf("UpdatePlanStatus failed: %v", err)
	}

	completed := models.PlanStatusCompleted
	deleted, err := s.CleanupOld(30, &completed)
	if err != nil {
		t.Fatalf("CleanupOld failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d plans, want 1", deleted)
	}

	// The old pending plan is outside the filter and survives.
	if _, err := s.GetPlan(pending); err != nil {
		t.Errorf("pending plan deleted: %v", err)
	}
}

func TestCleanupOld_CascadesTasks(t *testing.T) {
	s := newTestStore(t)

	planID := mustCreatePlan(t, s, "old")
	taskID := mustAddTask(t, s, planID, "t", "", 50)
	backdatePlan(t, s, planID, 40*24*time.Hour)

	if _, err := s.CleanupOld(30, nil); err != nil {
		t.Fatalf("CleanupOld failed: %v", err)
	}
	if _, err := s.GetTask(taskID); err == nil {
		t.Error("task survived its plan's cleanup")
	}
}

func TestCleanupOld_NegativeAge(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CleanupOld(-1, nil); err == nil {
		t.Error("expected error for negative max age")
	}
}

func TestVacuum(t *testing.T) {
	s := newTestStore(t)

	if err := s.Vacuum(); err != nil {
		t.Fatalf("Vacuum failed: %v", err)
	}
}
