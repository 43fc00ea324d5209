package plan

import (
	"fmt"

	"github.com/calref/maestro/pkg/models"
)

// GetProgress recomputes a plan's task counts from the current rows.
// It is always derived, never cached.
func (s *Store) GetProgress(planID string) (*models.Progress, error) {
	if _, err := s.GetPlan(planID); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`
		SELECT
		  COUNT(*),
		  COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
		  COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0),
		  COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		  COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM tasks WHERE plan_id = ?
	`, planID)

	var p models.Progress
	if err := row.Scan(&p.Total, &p.Pending, &p.InProgress, &p.Completed, &p.Failed); err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}

	if p.Total > 0 {
		p.PercentComplete = float64(p.Completed) / float64(p.Total) * 100.0
	}
	return &p, nil
}

// IsComplete reports whether every task in the plan is completed.
// A plan with zero tasks is not complete.
func (s *Store) IsComplete(planID string) (bool, error) {
	progress, err := s.GetProgress(planID)
	if err != nil {
		return false, err
	}
	return progress.Total > 0 && progress.Completed == progress.Total, nil
}

// RefreshStatus derives the plan's status from its tasks. This is an
// explicit batch refresh: completing or failing individual tasks does
// not touch the plan row, so callers ask for an up-to-date roll-up by
// calling this. Transitions: pending becomes active once any task has
// been claimed, active becomes completed once every task is completed.
func (s *Store) RefreshStatus(planID string) error {
	p, err := s.GetPlan(planID)
	if err != nil {
		return err
	}

	progress, err := s.GetProgress(planID)
	if err != nil {
		return err
	}

	var next models.PlanStatus
	switch {
	case progress.Total > 0 && progress.Completed == progress.Total:
		next = models.PlanStatusCompleted
	case progress.InProgress > 0 || progress.Completed > 0 || progress.Failed > 0:
		next = models.PlanStatusActive
	default:
		next = models.PlanStatusPending
	}

	if next == p.Status {
		return nil
	}
	return s.UpdatePlanStatus(planID, next)
}
