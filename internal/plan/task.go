package plan

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calref/maestro/internal/store"
	"github.com/calref/maestro/pkg/models"
)

const taskColumns = `id, plan_id, parent_task_id, description, assigned_agent, claimed_by,
	priority, status, output, error, retry_count, created_at, started_at, completed_at`

// AddTask inserts a pending task into a plan and bumps the plan's cached
// task counter in the same transaction. assignedAgent and parentTaskID
// may be empty; a non-empty parent must already exist in the same plan.
func (s *Store) AddTask(planID, description, assignedAgent string, priority int, parentTaskID string) (string, error) {
	if planID == "" || description == "" {
		return "", fmt.Errorf("%w: plan id and description are required", ErrInvalidInput)
	}

	id := uuid.NewString()
	err := s.db.Transaction(func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRow("SELECT COUNT(*) FROM plans WHERE id = ?", planID).Scan(&exists); err != nil {
			return fmt.Errorf("check plan: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("plan %s: %w", planID, ErrNotFound)
		}

		if parentTaskID != "" {
			var parentPlan string
			err := tx.QueryRow("SELECT plan_id FROM tasks WHERE id = ?", parentTaskID).Scan(&parentPlan)
			if err == sql.ErrNoRows {
				return fmt.Errorf("parent task %s: %w", parentTaskID, ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("check parent task: %w", err)
			}
			if parentPlan != planID {
				return fmt.Errorf("%w: parent task belongs to a different plan", ErrInvalidInput)
			}
		}

		_, err := tx.Exec(`
			INSERT INTO tasks (id, plan_id, parent_task_id, description, assigned_agent, priority, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, id, planID, nullable(parentTaskID), description, nullable(assignedAgent),
			priority, string(models.TaskStatusPending), store.FormatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}

		if _, err := tx.Exec("UPDATE plans SET total_tasks = total_tasks + 1 WHERE id = ?", planID); err != nil {
			return fmt.Errorf("bump task counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(id string) (*models.Task, error) {
	row := s.db.QueryRow("SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)

	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns a plan's tasks ordered by priority (highest first),
// then insertion order. Timestamps are stored at second precision, so
// the rowid carries the tie-break for tasks created within one second.
func (s *Store) ListTasks(planID string, status *models.TaskStatus) ([]models.Task, error) {
	var rows *sql.Rows
	var err error
	if status != nil {
		rows, err = s.db.Query(`
			SELECT `+taskColumns+` FROM tasks
			WHERE plan_id = ? AND status = ?
			ORDER BY priority DESC, created_at ASC, rowid ASC
		`, planID, string(*status))
	} else {
		rows, err = s.db.Query(`
			SELECT `+taskColumns+` FROM tasks
			WHERE plan_id = ?
			ORDER BY priority DESC, created_at ASC, rowid ASC
		`, planID)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// Subtasks returns the direct children of a task.
func (s *Store) Subtasks(taskID string) ([]models.Task, error) {
	if _, err := s.GetTask(taskID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE parent_task_id = ?
		ORDER BY priority DESC, created_at ASC, rowid ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ClaimTask atomically claims a pending task for an agent. The claim is
// a single conditional update; its affected-row count decides the
// outcome, so concurrent claimers can never both succeed. A lost race
// returns ErrBusy and an unknown id returns ErrNotFound.
func (s *Store) ClaimTask(taskID, agent string) error {
	if taskID == "" || agent == "" {
		return fmt.Errorf("%w: task id and agent are required", ErrInvalidInput)
	}

	result, err := s.db.Exec(`
		UPDATE tasks SET status = ?, claimed_by = ?, started_at = ?
		WHERE id = ? AND status = ?
	`, string(models.TaskStatusInProgress), agent, store.FormatTime(time.Now()),
		taskID, string(models.TaskStatusPending))
	if err != nil {
		return fmt.Errorf("claim task: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim task: %w", err)
	}
	if n == 0 {
		// Disambiguate a lost race from a bad id so callers retry
		// against a different task instead of surfacing a bug.
		if _, err := s.GetTask(taskID); err != nil {
			return err
		}
		return ErrBusy
	}
	return nil
}

// CompleteTask records a task's output and marks it completed.
// Only meaningful on an in_progress task; misuse reports ErrInvalidState.
func (s *Store) CompleteTask(taskID, output string) error {
	return s.finishTask(taskID, models.TaskStatusCompleted, "output", output, false)
}

// FailTask records a task's error, marks it failed, and increments its
// retry count. Only meaningful on an in_progress task.
func (s *Store) FailTask(taskID, errMsg string) error {
	return s.finishTask(taskID, models.TaskStatusFailed, "error", errMsg, true)
}

func (s *Store) finishTask(taskID string, status models.TaskStatus, column, value string, bumpRetry bool) error {
	if taskID == "" {
		return fmt.Errorf("%w: task id is required", ErrInvalidInput)
	}

	query := "UPDATE tasks SET status = ?, " + column + " = ?, completed_at = ?"
	if bumpRetry {
		query += ", retry_count = retry_count + 1"
	}
	query += " WHERE id = ? AND status = ?"

	result, err := s.db.Exec(query, string(status), value, store.FormatTime(time.Now()),
		taskID, string(models.TaskStatusInProgress))
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	if n == 0 {
		t, err := s.GetTask(taskID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: task is %s, not in_progress", ErrInvalidState, t.Status)
	}
	return nil
}

// NextTask returns the task an agent should work on next. The agent's
// own pre-assigned pending task wins over everything else; otherwise the
// highest-priority unassigned pending task is returned, ties broken by
// creation order. Tasks pre-assigned to other agents are never offered.
// Returns ErrNotFound when nothing is available.
func (s *Store) NextTask(planID, agent string) (*models.Task, error) {
	if planID == "" || agent == "" {
		return nil, fmt.Errorf("%w: plan id and agent are required", ErrInvalidInput)
	}

	row := s.db.QueryRow(`
		SELECT id FROM tasks
		WHERE plan_id = ? AND status = ?
		  AND (assigned_agent = ? OR assigned_agent IS NULL)
		ORDER BY (CASE WHEN assigned_agent = ? THEN 0 ELSE 1 END),
		         priority DESC, created_at ASC, rowid ASC
		LIMIT 1
	`, planID, string(models.TaskStatusPending), agent, agent)

	var id string
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("next task: %w", err)
	}
	return s.GetTask(id)
}

func collectTasks(rows *sql.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func scanTask(scan func(dest ...any) error) (*models.Task, error) {
	var t models.Task
	var parentID, assigned, claimed, output, errMsg sql.NullString
	var createdAt string
	var startedAt, completedAt sql.NullString

	err := scan(&t.ID, &t.PlanID, &parentID, &t.Description, &assigned, &claimed,
		&t.Priority, &t.Status, &output, &errMsg, &t.RetryCount,
		&createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	t.ParentTaskID = parentID.String
	t.AssignedAgent = assigned.String
	t.ClaimedBy = claimed.String
	t.Output = output.String
	t.Error = errMsg.String
	t.CreatedAt, _ = store.ParseTime(createdAt)
	t.StartedAt = store.ParseNullableTime(startedAt)
	t.CompletedAt = store.ParseNullableTime(completedAt)
	return &t, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
