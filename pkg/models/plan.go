// Package models defines the shared data types for plans, tasks,
// workflow runs, and group chats.
package models

import "time"

// PlanStatus represents the lifecycle state of a plan.
type PlanStatus string

const (
	// PlanStatusPending indicates no task has been claimed yet.
	PlanStatusPending PlanStatus = "pending"
	// PlanStatusActive indicates at least one task has been claimed.
	PlanStatusActive PlanStatus = "active"
	// PlanStatusCompleted indicates every task finished successfully.
	PlanStatusCompleted PlanStatus = "completed"
)

// Valid returns true if the status is a known value.
func (s PlanStatus) Valid() bool {
	switch s {
	case PlanStatusPending, PlanStatusActive, PlanStatusCompleted:
		return true
	default:
		return false
	}
}

// Plan represents a persisted execution plan.
type Plan struct {
	// ID is the generated unique identifier for this plan.
	ID string `json:"id"`
	// Description is the human-readable summary of the plan.
	Description string `json:"description"`
	// Context holds optional free-text background for the plan.
	Context string `json:"context,omitempty"`
	// Status is the current lifecycle state.
	Status PlanStatus `json:"status"`
	// TotalTasks is the cached count of tasks added to the plan.
	TotalTasks int `json:"total_tasks"`
	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is set exactly once on transition to completed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Progress is a derived roll-up of a plan's task counts.
type Progress struct {
	Total           int     `json:"total"`
	Pending         int     `json:"pending"`
	InProgress      int     `json:"in_progress"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	PercentComplete float64 `json:"percent_complete"`
}
