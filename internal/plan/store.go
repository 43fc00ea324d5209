// Package plan provides the persistent plan/task store: CRUD and
// lifecycle operations over plans and tasks, claim arbitration,
// priority scheduling, progress roll-up, and exports.
package plan

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calref/maestro/internal/store"
	"github.com/calref/maestro/pkg/models"
)

var (
	// ErrNotFound indicates an unknown plan or task id.
	ErrNotFound = errors.New("not found")
	// ErrBusy indicates a claim lost the race to another agent.
	// Callers should retry against a different task, not back off.
	ErrBusy = errors.New("task already claimed")
	// ErrInvalidState indicates an operation applied to a task in the
	// wrong status, e.g. completing a task that was never claimed.
	ErrInvalidState = errors.New("invalid task state")
	// ErrInvalidInput indicates a missing or malformed required field.
	ErrInvalidInput = errors.New("invalid input")
)

// Store persists plans and tasks against an injected database handle.
// There is no ambient singleton; the handle is opened once per process
// and shared across subsystems.
type Store struct {
	db *store.DB
}

// New creates a plan store backed by the given database.
func New(db *store.DB) *Store {
	return &Store{db: db}
}

// CreatePlan inserts a new pending plan and returns its generated id.
// Plan ids are UUIDs so concurrent creators cannot collide.
func (s *Store) CreatePlan(description, context string) (string, error) {
	if description == "" {
		return "", fmt.Errorf("%w: description is required", ErrInvalidInput)
	}

	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO plans (id, description, context, status, total_tasks, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, id, description, context, string(models.PlanStatusPending), store.FormatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("create plan: %w", err)
	}
	return id, nil
}

// GetPlan retrieves a plan by id.
func (s *Store) GetPlan(id string) (*models.Plan, error) {
	row := s.db.QueryRow(`
		SELECT id, description, context, status, total_tasks, created_at, completed_at
		FROM plans WHERE id = ?
	`, id)

	p, err := scanPlan(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

// UpdatePlanStatus sets a plan's status. The completed_at timestamp is
// stamped on the transition to completed and never overwritten.
func (s *Store) UpdatePlanStatus(id string, status models.PlanStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown plan status %q", ErrInvalidInput, status)
	}

	var result sql.Result
	var err error
	if status == models.PlanStatusCompleted {
		result, err = s.db.Exec(`
			UPDATE plans SET status = ?, completed_at = COALESCE(completed_at, ?)
			WHERE id = ?
		`, string(status), store.FormatTime(time.Now()), id)
	} else {
		result, err = s.db.Exec("UPDATE plans SET status = ? WHERE id = ?", string(status), id)
	}
	if err != nil {
		return fmt.Errorf("update plan status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update plan status: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePlan removes a plan and, via foreign keys, all of its tasks.
func (s *Store) DeletePlan(id string) error {
	result, err := s.db.Exec("DELETE FROM plans WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPlans returns plans newest-first, optionally filtered by status.
// limit <= 0 means no practical limit.
func (s *Store) ListPlans(status *models.PlanStatus, limit, offset int) ([]models.Plan, error) {
	if limit <= 0 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	var rows *sql.Rows
	var err error
	if status != nil {
		rows, err = s.db.Query(`
			SELECT id, description, context, status, total_tasks, created_at, completed_at
			FROM plans WHERE status = ?
			ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?
		`, string(*status), limit, offset)
	} else {
		rows, err = s.db.Query(`
			SELECT id, description, context, status, total_tasks, created_at, completed_at
			FROM plans ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?
		`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		p, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

// ActivePlan returns the most recently created active plan, if any.
func (s *Store) ActivePlan() (*models.Plan, error) {
	status := models.PlanStatusActive
	plans, err := s.ListPlans(&status, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, ErrNotFound
	}
	return &plans[0], nil
}

func scanPlan(scan func(dest ...any) error) (*models.Plan, error) {
	var p models.Plan
	var context sql.NullString
	var createdAt string
	var completedAt sql.NullString
	if err := scan(&p.ID, &p.Description, &context, &p.Status, &p.TotalTasks, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	p.Context = context.String
	p.CreatedAt, _ = store.ParseTime(createdAt)
	p.CompletedAt = store.ParseNullableTime(completedAt)
	return &p, nil
}
