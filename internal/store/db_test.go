package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// setupTestDB creates a new migrated temporary database.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	path := filepath.Join(nested, "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	// Running migrations again on an up-to-date schema is a no-op.
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

func TestSaveAndGetCheckpoint(t *testing.T) {
	db := setupTestDB(t)

	id, err := db.SaveCheckpoint(42, "review", `{"entries":[{"key":"a","value":"1"}]}`, `{"label":"before-review"}`)
	if err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}
	if id == 0 {
		t.Fatal("SaveCheckpoint returned id 0")
	}

	cp, err := db.GetCheckpoint(id)
	if err != nil {
		t.Fatalf("GetCheckpoint failed: %v", err)
	}
	if cp.WorkflowID != 42 {
		t.Errorf("WorkflowID = %d, want 42", cp.WorkflowID)
	}
	if cp.NodeID != "review" {
		t.Errorf("NodeID = %q, want %q", cp.NodeID, "review")
	}
	if cp.StateJSON != `{"entries":[{"key":"a","value":"1"}]}` {
		t.Errorf("StateJSON = %q", cp.StateJSON)
	}
	if cp.MetadataJSON != `{"label":"before-review"}` {
		t.Errorf("MetadataJSON = %q", cp.MetadataJSON)
	}
	if cp.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestGetCheckpoint_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetCheckpoint(9999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCheckpoint(9999) error = %v, want ErrNotFound", err)
	}
}

func TestListCheckpoints_NewestFirst(t *testing.T) {
	db := setupTestDB(t)

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := db.SaveCheckpoint(7, "node", "{}", "")
		if err != nil {
			t.Fatalf("SaveCheckpoint failed: %v", err)
		}
		ids = append(ids, id)
	}
	// Checkpoint for a different workflow must not appear.
	if _, err := db.SaveCheckpoint(8, "node", "{}", ""); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	cps, err := db.ListCheckpoints(7)
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(cps) != 3 {
		t.Fatalf("got %d checkpoints, want 3", len(cps))
	}
	for i, cp := range cps {
		want := ids[len(ids)-1-i]
		if cp.ID != want {
			t.Errorf("checkpoint[%d].ID = %d, want %d", i, cp.ID, want)
		}
	}
}

func TestDeleteCheckpoints(t *testing.T) {
	db := setupTestDB(t)

	for i := 0; i < 2; i++ {
		if _, err := db.SaveCheckpoint(5, "n", "{}", ""); err != nil {
			t.Fatalf("SaveCheckpoint failed: %v", err)
		}
	}

	n, err := db.DeleteCheckpoints(5)
	if err != nil {
		t.Fatalf("DeleteCheckpoints failed: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d checkpoints, want 2", n)
	}

	cps, err := db.ListCheckpoints(5)
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(cps) != 0 {
		t.Errorf("got %d checkpoints after delete, want 0", len(cps))
	}
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	s := FormatTime(now)
	parsed, err := ParseTime(s)
	if err != nil {
		t.Fatalf("ParseTime failed: %v", err)
	}
	if !parsed.Equal(now) {
		t.Errorf("round trip = %v, want %v", parsed, now)
	}
}
