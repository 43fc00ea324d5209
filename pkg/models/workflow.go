package models

import "time"

// NodeKind identifies the behavior of a workflow node.
type NodeKind string

const (
	// NodeAction delegates to an agent with the node's prompt.
	NodeAction NodeKind = "action"
	// NodeDecision routes purely on its outgoing edge conditions.
	NodeDecision NodeKind = "decision"
	// NodeConverge joins parallel branches before proceeding.
	NodeConverge NodeKind = "converge"
	// NodeParallel fans out over each of its outgoing branches.
	NodeParallel NodeKind = "parallel"
	// NodeInput pauses the run until external input resumes it.
	NodeInput NodeKind = "input"
)

// Valid returns true if the kind is a known value.
func (k NodeKind) Valid() bool {
	switch k {
	case NodeAction, NodeDecision, NodeConverge, NodeParallel, NodeInput:
		return true
	default:
		return false
	}
}

// RunStatus represents the lifecycle state of a workflow run.
type RunStatus string

const (
	// RunPending indicates execution has not started.
	RunPending RunStatus = "pending"
	// RunRunning indicates the engine is driving the run.
	RunRunning RunStatus = "running"
	// RunPaused indicates the run is resting on external input.
	// This is a valid non-terminal state, distinct from failure.
	RunPaused RunStatus = "paused"
	// RunCompleted indicates the run reached a terminal node. Terminal.
	RunCompleted RunStatus = "completed"
	// RunFailed indicates the run failed unrecoverably. Terminal.
	RunFailed RunStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunPending, RunRunning, RunPaused, RunCompleted, RunFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true once the run can no longer progress.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// Checkpoint is an immutable snapshot of a workflow run's state and
// position. Checkpoints are append-only; restoring never deletes one.
type Checkpoint struct {
	// ID is the autoincremented checkpoint identifier.
	ID int64 `json:"id"`
	// WorkflowID scopes the checkpoint to a persisted workflow.
	WorkflowID int64 `json:"workflow_id"`
	// NodeID is the node the run was positioned at.
	NodeID string `json:"node_id"`
	// StateJSON is the serialized run state.
	StateJSON string `json:"state_json"`
	// MetadataJSON carries the label and any extra checkpoint metadata.
	MetadataJSON string `json:"metadata_json,omitempty"`
	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"created_at"`
}
