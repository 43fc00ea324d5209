package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/calref/maestro/pkg/models"
)

// ErrNotFound indicates a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SaveCheckpoint appends a checkpoint row and returns its generated id.
// Checkpoint rows are never updated in place.
func (db *DB) SaveCheckpoint(workflowID int64, nodeID, stateJSON, metadataJSON string) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO workflow_checkpoints (workflow_id, node_id, state_json, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, workflowID, nodeID, stateJSON, metadataJSON, FormatTime(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("save checkpoint: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("checkpoint id: %w", err)
	}
	return id, nil
}

// GetCheckpoint retrieves a checkpoint by id.
func (db *DB) GetCheckpoint(id int64) (*models.Checkpoint, error) {
	row := db.QueryRow(`
		SELECT id, workflow_id, node_id, state_json, metadata_json, created_at
		FROM workflow_checkpoints WHERE id = ?
	`, id)

	cp, err := scanCheckpoint(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, nil
}

// ListCheckpoints returns all checkpoints for a workflow, newest first.
func (db *DB) ListCheckpoints(workflowID int64) ([]models.Checkpoint, error) {
	rows, err := db.Query(`
		SELECT id, workflow_id, node_id, state_json, metadata_json, created_at
		FROM workflow_checkpoints
		WHERE workflow_id = ?
		ORDER BY created_at DESC, id DESC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []models.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, *cp)
	}
	return checkpoints, rows.Err()
}

// DeleteCheckpoints removes all checkpoints for a workflow.
// Returns the number of rows deleted.
func (db *DB) DeleteCheckpoints(workflowID int64) (int64, error) {
	result, err := db.Exec("DELETE FROM workflow_checkpoints WHERE workflow_id = ?", workflowID)
	if err != nil {
		return 0, fmt.Errorf("delete checkpoints: %w", err)
	}
	return result.RowsAffected()
}

func scanCheckpoint(scan func(dest ...any) error) (*models.Checkpoint, error) {
	var cp models.Checkpoint
	var metadata sql.NullString
	var createdAt string
	if err := scan(&cp.ID, &cp.WorkflowID, &cp.NodeID, &cp.StateJSON, &metadata, &createdAt); err != nil {
		return nil, err
	}
	cp.MetadataJSON = metadata.String
	cp.CreatedAt, _ = ParseTime(createdAt)
	return &cp, nil
}
