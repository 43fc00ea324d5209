// Package workflow implements the directed-graph state machine that
// sequences agent work: nodes with conditional edges, per-run key/value
// state, fallback routing, and durable checkpoints.
package workflow

import (
	"errors"
	"fmt"

	"github.com/calref/maestro/pkg/models"
)

var (
	// ErrNotFound indicates an unknown node or checkpoint id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a missing or malformed required field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoRoute indicates no outgoing edge matched and no fallback
	// was declared, so the run cannot advance.
	ErrNoRoute = errors.New("no matching edge")
	// ErrNotCheckpointable indicates the workflow has never been
	// persisted (workflow id zero) and so cannot own checkpoints.
	ErrNotCheckpointable = errors.New("workflow is not checkpointable")
)

// Edge is a directed, optionally conditional transition between nodes.
// An edge with no condition is the default branch; by convention it is
// added last.
type Edge struct {
	To        string
	Condition string

	// cond is the parsed condition, cached at graph-build time so
	// traversal never re-parses.
	cond Expr
}

// Node is a named step in a workflow graph. Nodes hold only forward
// references; loop-back edges are ordinary entries in the owning
// workflow's registry.
type Node struct {
	ID      string
	Kind    models.NodeKind
	AgentID string
	Prompt  string
	Edges   []Edge
	// FallbackID is followed when this node's execution fails, or when
	// no outgoing edge matches.
	FallbackID string
}

// Workflow is a named run instance: a registry of nodes, an entry
// point, run status, and string-keyed state. A WorkflowID of zero means
// the workflow has never been persisted and cannot be checkpointed.
type Workflow struct {
	Name        string
	Description string
	// WorkflowID scopes durable checkpoints. Zero means unpersisted.
	WorkflowID int64
	Status     models.RunStatus
	// CurrentID is the node the run is positioned at.
	CurrentID string

	entryID string
	nodes   map[string]*Node
	// nodeOrder preserves registration order for listing and export.
	nodeOrder []string
	state     *State
}

// New creates a workflow with an empty node registry.
func New(name, description string) *Workflow {
	return &Workflow{
		Name:        name,
		Description: description,
		Status:      models.RunPending,
		nodes:       make(map[string]*Node),
		state:       NewState(),
	}
}

// AddNode registers a node. Node ids must be unique within the workflow.
func (w *Workflow) AddNode(id string, kind models.NodeKind) (*Node, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: node id is required", ErrInvalidInput)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown node kind %q", ErrInvalidInput, kind)
	}
	if _, exists := w.nodes[id]; exists {
		return nil, fmt.Errorf("%w: duplicate node id %q", ErrInvalidInput, id)
	}

	n := &Node{ID: id, Kind: kind}
	w.nodes[id] = n
	w.nodeOrder = append(w.nodeOrder, id)
	return n, nil
}

// NodeIDs returns node ids in registration order.
func (w *Workflow) NodeIDs() []string {
	ids := make([]string, len(w.nodeOrder))
	copy(ids, w.nodeOrder)
	return ids
}

// AddActionNode registers an action node with its agent and prompt.
func (w *Workflow) AddActionNode(id, agentID, prompt string) (*Node, error) {
	n, err := w.AddNode(id, models.NodeAction)
	if err != nil {
		return nil, err
	}
	n.AgentID = agentID
	n.Prompt = prompt
	return n, nil
}

// SetEntry sets the entry node for execution.
func (w *Workflow) SetEntry(id string) error {
	if _, exists := w.nodes[id]; !exists {
		return fmt.Errorf("entry node %q: %w", id, ErrNotFound)
	}
	w.entryID = id
	return nil
}

// Entry returns the entry node id.
func (w *Workflow) Entry() string {
	return w.entryID
}

// Node returns a registered node, or ErrNotFound.
func (w *Workflow) Node(id string) (*Node, error) {
	n, ok := w.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %q: %w", id, ErrNotFound)
	}
	return n, nil
}

// AddEdge adds a directed edge between two registered nodes. A
// non-empty condition is parsed once here and cached on the edge; a
// syntax error fails the graph build rather than a later traversal.
func (w *Workflow) AddEdge(from, to, condition string) error {
	src, err := w.Node(from)
	if err != nil {
		return err
	}
	if _, err := w.Node(to); err != nil {
		return err
	}

	edge := Edge{To: to, Condition: condition}
	if condition != "" {
		expr, err := ParseCondition(condition)
		if err != nil {
			return fmt.Errorf("edge %s->%s: %w", from, to, err)
		}
		edge.cond = expr
	}
	src.Edges = append(src.Edges, edge)
	return nil
}

// SetFallback declares the node control transfers to when the given
// node fails or routes nowhere.
func (w *Workflow) SetFallback(nodeID, fallbackID string) error {
	n, err := w.Node(nodeID)
	if err != nil {
		return err
	}
	if _, err := w.Node(fallbackID); err != nil {
		return err
	}
	n.FallbackID = fallbackID
	return nil
}

// SetState stores a key/value pair in the run state. Keys must be
// non-empty; values are opaque strings the caller serialized.
func (w *Workflow) SetState(key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: state key is required", ErrInvalidInput)
	}
	w.state.Set(key, value)
	return nil
}

// GetState returns a state value and whether the key is present.
func (w *Workflow) GetState(key string) (string, bool) {
	return w.state.Get(key)
}

// ClearState removes all state entries.
func (w *Workflow) ClearState() {
	w.state.Clear()
}

// RemoveState removes a single state entry.
func (w *Workflow) RemoveState(key string) {
	w.state.Remove(key)
}

// StateSnapshot returns a copy of the run state as a plain map.
func (w *Workflow) StateSnapshot() map[string]string {
	return w.state.Snapshot()
}
