package workflow

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/calref/maestro/internal/store"
	"github.com/calref/maestro/pkg/models"
)

// checkpointMetadata is the shape of the metadata_json column.
type checkpointMetadata struct {
	Label string `json:"label,omitempty"`
}

// Checkpoint persists the workflow's current position and state. The
// workflow must carry a nonzero WorkflowID so checkpoints from distinct
// runs never collide; label is an optional human-readable tag.
func (e *Engine) Checkpoint(wf *Workflow, label string) (int64, error) {
	if e.db == nil {
		return 0, fmt.Errorf("%w: engine has no store", ErrNotCheckpointable)
	}
	if wf == nil {
		return 0, fmt.Errorf("%w: workflow is required", ErrInvalidInput)
	}
	if wf.WorkflowID == 0 {
		return 0, fmt.Errorf("%w: workflow has no id", ErrNotCheckpointable)
	}

	stateJSON, err := json.Marshal(wf.state)
	if err != nil {
		return 0, fmt.Errorf("serializing state: %w", err)
	}
	metaJSON, err := json.Marshal(checkpointMetadata{Label: label})
	if err != nil {
		return 0, fmt.Errorf("serializing metadata: %w", err)
	}

	id, err := e.db.SaveCheckpoint(wf.WorkflowID, wf.CurrentID, string(stateJSON), string(metaJSON))
	if err != nil {
		return 0, fmt.Errorf("saving checkpoint: %w", err)
	}
	e.debugLog("[engine] checkpoint %d saved for workflow %d at node %q", id, wf.WorkflowID, wf.CurrentID)
	return id, nil
}

// RestoreFromCheckpoint replaces the workflow's state and position with
// a previously saved checkpoint and leaves the run paused, ready to
// Resume. The workflow is left untouched on any error.
func (e *Engine) RestoreFromCheckpoint(wf *Workflow, checkpointID int64) error {
	if e.db == nil {
		return fmt.Errorf("%w: engine has no store", ErrNotCheckpointable)
	}
	if wf == nil {
		return fmt.Errorf("%w: workflow is required", ErrInvalidInput)
	}

	cp, err := e.db.GetCheckpoint(checkpointID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("checkpoint %d: %w", checkpointID, ErrNotFound)
		}
		return fmt.Errorf("loading checkpoint: %w", err)
	}
	if cp.WorkflowID != wf.WorkflowID {
		return fmt.Errorf("%w: checkpoint %d belongs to workflow %d, not %d",
			ErrInvalidInput, checkpointID, cp.WorkflowID, wf.WorkflowID)
	}
	if _, err := wf.Node(cp.NodeID); err != nil {
		return fmt.Errorf("checkpoint %d references unknown node %q: %w", checkpointID, cp.NodeID, err)
	}

	restored := NewState()
	if err := json.Unmarshal([]byte(cp.StateJSON), restored); err != nil {
		return fmt.Errorf("parsing checkpoint state: %w", err)
	}

	wf.state = restored
	wf.CurrentID = cp.NodeID
	wf.Status = models.RunPaused
	e.debugLog("[engine] workflow %d restored from checkpoint %d at node %q", wf.WorkflowID, checkpointID, cp.NodeID)
	return nil
}

// ListCheckpoints returns a workflow's checkpoints, newest first.
func (e *Engine) ListCheckpoints(workflowID int64) ([]models.Checkpoint, error) {
	if e.db == nil {
		return nil, fmt.Errorf("%w: engine has no store", ErrNotCheckpointable)
	}
	return e.db.ListCheckpoints(workflowID)
}

// CheckpointLabel extracts the label from a checkpoint's metadata.
func CheckpointLabel(cp *models.Checkpoint) string {
	if cp == nil || cp.MetadataJSON == "" {
		return ""
	}
	var meta checkpointMetadata
	if err := json.Unmarshal([]byte(cp.MetadataJSON), &meta); err != nil {
		return ""
	}
	return meta.Label
}
