package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/calref/maestro/pkg/models"
)

// Definition is the YAML-serializable form of a workflow graph.
type Definition struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Entry       string           `yaml:"entry"`
	Nodes       []NodeDefinition `yaml:"nodes"`
}

// NodeDefinition describes one node in a workflow definition file.
type NodeDefinition struct {
	ID       string           `yaml:"id"`
	Kind     string           `yaml:"kind"`
	Agent    string           `yaml:"agent,omitempty"`
	Prompt   string           `yaml:"prompt,omitempty"`
	Fallback string           `yaml:"fallback,omitempty"`
	Edges    []EdgeDefinition `yaml:"edges,omitempty"`
}

// EdgeDefinition describes one outgoing edge. An empty condition makes
// the edge unconditional.
type EdgeDefinition struct {
	To        string `yaml:"to"`
	Condition string `yaml:"condition,omitempty"`
}

// Parse builds a workflow from YAML definition bytes. Node ids, edge
// targets, and edge conditions are all validated up front, so a
// workflow that parses is ready to execute.
func Parse(data []byte) (*Workflow, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing workflow definition: %w", err)
	}
	return build(&def)
}

// LoadFile reads a workflow definition from a YAML file.
func LoadFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	wf, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}

func build(def *Definition) (*Workflow, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("%w: workflow name is required", ErrInvalidInput)
	}
	if len(def.Nodes) == 0 {
		return nil, fmt.Errorf("%w: workflow has no nodes", ErrInvalidInput)
	}

	wf := New(def.Name, def.Description)

	// Two passes: register every node first so edges and fallbacks can
	// reference nodes defined later in the file.
	for _, nd := range def.Nodes {
		kind := models.NodeKind(nd.Kind)
		node, err := wf.AddNode(nd.ID, kind)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", nd.ID, err)
		}
		node.AgentID = nd.Agent
		node.Prompt = nd.Prompt
	}

	for _, nd := range def.Nodes {
		for _, ed := range nd.Edges {
			if err := wf.AddEdge(nd.ID, ed.To, ed.Condition); err != nil {
				return nil, fmt.Errorf("node %q: %w", nd.ID, err)
			}
		}
		if nd.Fallback != "" {
			if err := wf.SetFallback(nd.ID, nd.Fallback); err != nil {
				return nil, fmt.Errorf("node %q: %w", nd.ID, err)
			}
		}
	}

	entry := def.Entry
	if entry == "" {
		entry = def.Nodes[0].ID
	}
	if err := wf.SetEntry(entry); err != nil {
		return nil, err
	}
	return wf, nil
}

// Export converts a workflow back into its serializable definition.
func Export(wf *Workflow) *Definition {
	def := &Definition{
		Name:        wf.Name,
		Description: wf.Description,
		Entry:       wf.Entry(),
	}
	for _, id := range wf.NodeIDs() {
		node, _ := wf.Node(id)
		nd := NodeDefinition{
			ID:       node.ID,
			Kind:     string(node.Kind),
			Agent:    node.AgentID,
			Prompt:   node.Prompt,
			Fallback: node.FallbackID,
		}
		for _, edge := range node.Edges {
			nd.Edges = append(nd.Edges, EdgeDefinition{To: edge.To, Condition: edge.Condition})
		}
		def.Nodes = append(def.Nodes, nd)
	}
	return def
}

// Marshal renders a workflow as YAML definition bytes.
func Marshal(wf *Workflow) ([]byte, error) {
	return yaml.Marshal(Export(wf))
}
