package plan

import (
	"fmt"
	"time"

	"github.com/calref/maestro/internal/store"
	"github.com/calref/maestro/pkg/models"
)

// CleanupOld deletes plans created before the age cutoff whose status
// matches the filter (nil matches any status). Tasks go with their plans
// via cascade. Returns the number of plans deleted; younger plans and
// plans of other statuses are untouched.
func (s *Store) CleanupOld(maxAgeDays int, status *models.PlanStatus) (int64, error) {
	if maxAgeDays < 0 {
		return 0, fmt.Errorf("%w: max age must be non-negative", ErrInvalidInput)
	}

	cutoff := store.FormatTime(time.Now().AddDate(0, 0, -maxAgeDays))

	var query string
	args := []any{cutoff}
	if status != nil {
		query = "DELETE FROM plans WHERE created_at < ? AND status = ?"
		args = append(args, string(*status))
	} else {
		query = "DELETE FROM plans WHERE created_at < ?"
	}

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("cleanup old plans: %w", err)
	}
	return result.RowsAffected()
}

// Vacuum reclaims space from deleted rows.
func (s *Store) Vacuum() error {
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}
