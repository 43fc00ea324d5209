package workflow

import (
	"encoding/json"
	"testing"
)

func TestStateSetGetRemove(t *testing.T) {
	s := NewState()

	s.Set("a", "1")
	s.Set("b", "2")

	if v, ok := s.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v", v, ok)
	}
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) reported present")
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}

	// Overwriting keeps the original insertion position.
	s.Set("a", "updated")
	if v, _ := s.Get("a"); v != "updated" {
		t.Errorf("Get(a) after overwrite = %q", v)
	}
	if s.Len() != 2 {
		t.Errorf("Len after overwrite = %d, want 2", s.Len())
	}

	s.Remove("a")
	if _, ok := s.Get("a"); ok {
		t.Error("Get(a) present after Remove")
	}

	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", s.Len())
	}
}

func TestStateJSON_PreservesInsertionOrder(t *testing.T) {
	s := NewState()
	s.Set("zulu", "1")
	s.Set("alpha", "2")
	s.Set("mike", "3")

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var doc struct {
		Entries []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	wantKeys := []string{"zulu", "alpha", "mike"}
	if len(doc.Entries) != len(wantKeys) {
		t.Fatalf("got %d entries, want %d", len(doc.Entries), len(wantKeys))
	}
	for i, want := range wantKeys {
		if doc.Entries[i].Key != want {
			t.Errorf("entries[%d].key = %q, want %q", i, doc.Entries[i].Key, want)
		}
	}

	restored := NewState()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("Unmarshal into State failed: %v", err)
	}
	if v, _ := restored.Get("alpha"); v != "2" {
		t.Errorf("restored Get(alpha) = %q, want 2", v)
	}
	if restored.Len() != 3 {
		t.Errorf("restored Len = %d, want 3", restored.Len())
	}
}

func TestStateSnapshot_IsACopy(t *testing.T) {
	s := NewState()
	s.Set("k", "v")

	snap := s.Snapshot()
	snap["k"] = "mutated"

	if v, _ := s.Get("k"); v != "v" {
		t.Errorf("snapshot mutation leaked into state: %q", v)
	}
}
