package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been claimed.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates an agent has claimed the task.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Task represents a unit of work belonging to a plan.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// PlanID is the owning plan. Tasks are cascade-deleted with it.
	PlanID string `json:"plan_id"`
	// ParentTaskID links subtasks to their parent within the same plan.
	ParentTaskID string `json:"parent_task_id,omitempty"`
	// Description is what the task does.
	Description string `json:"description"`
	// AssignedAgent is an optional pre-assignment set at creation.
	AssignedAgent string `json:"assigned_agent,omitempty"`
	// ClaimedBy is the agent that won the claim, once in progress.
	ClaimedBy string `json:"claimed_by,omitempty"`
	// Priority orders scheduling; higher values are more urgent.
	Priority int `json:"priority"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Output holds the result recorded on completion.
	Output string `json:"output,omitempty"`
	// Error holds the failure message recorded on failure.
	Error string `json:"error,omitempty"`
	// RetryCount is incremented each time the task fails.
	RetryCount int `json:"retry_count,omitempty"`
	// CreatedAt is when the task was added to the plan.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the task was claimed, if it has been.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task completed or failed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
