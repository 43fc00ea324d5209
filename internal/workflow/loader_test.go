package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calref/maestro/pkg/models"
)

const sampleDefinition = `
name: review-cycle
description: Draft and review until approved
entry: draft
nodes:
  - id: draft
    kind: action
    agent: writer
    prompt: Write the first draft
    edges:
      - to: review
  - id: review
    kind: action
    agent: reviewer
    prompt: Review the draft
    fallback: draft
    edges:
      - to: publish
        condition: approved == "true"
      - to: draft
  - id: publish
    kind: action
    agent: publisher
    prompt: Publish it
`

func TestParse(t *testing.T) {
	wf, err := Parse([]byte(sampleDefinition))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if wf.Name != "review-cycle" {
		t.Errorf("Name = %q", wf.Name)
	}
	if wf.Entry() != "draft" {
		t.Errorf("Entry = %q, want draft", wf.Entry())
	}
	if got := wf.NodeIDs(); len(got) != 3 {
		t.Fatalf("got %d nodes, want 3", len(got))
	}

	review, err := wf.Node("review")
	if err != nil {
		t.Fatalf("Node(review) failed: %v", err)
	}
	if review.Kind != models.NodeAction {
		t.Errorf("review kind = %q", review.Kind)
	}
	if review.FallbackID != "draft" {
		t.Errorf("review fallback = %q", review.FallbackID)
	}
	if len(review.Edges) != 2 {
		t.Fatalf("review has %d edges, want 2", len(review.Edges))
	}
	if review.Edges[0].Condition != `approved == "true"` {
		t.Errorf("first edge condition = %q", review.Edges[0].Condition)
	}
	// The unconditional loop-back edge comes last.
	if review.Edges[1].To != "draft" || review.Edges[1].Condition != "" {
		t.Errorf("second edge = %+v", review.Edges[1])
	}
}

func TestParse_ForwardReferences(t *testing.T) {
	// Edges may point at nodes declared later in the file.
	def := `
name: forward
nodes:
  - id: a
    kind: action
    agent: x
    edges:
      - to: b
  - id: b
    kind: action
    agent: y
`
	wf, err := Parse([]byte(def))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	// First node becomes the entry when none is declared.
	if wf.Entry() != "a" {
		t.Errorf("Entry = %q, want a", wf.Entry())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		def  string
	}{
		{"no name", "nodes:\n  - id: a\n    kind: action\n"},
		{"no nodes", "name: empty\n"},
		{"bad kind", "name: x\nnodes:\n  - id: a\n    kind: sideways\n"},
		{"duplicate id", "name: x\nnodes:\n  - id: a\n    kind: action\n  - id: a\n    kind: action\n"},
		{"unknown edge target", "name: x\nnodes:\n  - id: a\n    kind: action\n    edges:\n      - to: ghost\n"},
		{"bad condition", "name: x\nnodes:\n  - id: a\n    kind: action\n    edges:\n      - to: a\n        condition: '== broken'\n"},
		{"unknown entry", "name: x\nentry: ghost\nnodes:\n  - id: a\n    kind: action\n"},
	}
	for _, tt := range tests {
		if _, err := Parse([]byte(tt.def)); err == nil {
			t.Errorf("%s: Parse succeeded, want error", tt.name)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wf.yaml")
	if err := os.WriteFile(path, []byte(sampleDefinition), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	wf, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if wf.Name != "review-cycle" {
		t.Errorf("Name = %q", wf.Name)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile on missing file succeeded")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	wf, err := Parse([]byte(sampleDefinition))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	data, err := Marshal(wf)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	again, err := Parse(data)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if again.Entry() != wf.Entry() {
		t.Errorf("entry changed: %q -> %q", wf.Entry(), again.Entry())
	}
	if len(again.NodeIDs()) != len(wf.NodeIDs()) {
		t.Errorf("node count changed: %d -> %d", len(wf.NodeIDs()), len(again.NodeIDs()))
	}
	review, err := again.Node("review")
	if err != nil {
		t.Fatalf("Node(review) after round trip: %v", err)
	}
	if review.FallbackID != "draft" {
		t.Errorf("fallback lost in round trip: %q", review.FallbackID)
	}
}
