package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Persona describes one named agent: its role prompt and optional
// model override. Personas are loaded from YAML files.
type Persona struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name,omitempty"`
	Description  string `yaml:"description,omitempty"`
	SystemPrompt string `yaml:"system_prompt"`
	Model        string `yaml:"model,omitempty"`
}

// Registry holds the known personas, keyed by id. Lookups fall back to
// a default persona so unknown agent ids still execute with a generic
// system prompt.
type Registry struct {
	mu       sync.RWMutex
	personas map[string]*Persona
}

// NewRegistry creates an empty persona registry.
func NewRegistry() *Registry {
	return &Registry{personas: make(map[string]*Persona)}
}

// Register adds or replaces a persona.
func (r *Registry) Register(p *Persona) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("persona id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.personas[p.ID] = p
	return nil
}

// Get returns a persona and whether it was registered.
func (r *Registry) Get(id string) (*Persona, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[id]
	return p, ok
}

// IDs returns registered persona ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.personas))
	for id := range r.personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadFile loads a persona definition from a YAML file. A file may
// hold a single persona or a list under a "personas" key.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading persona file: %w", err)
	}

	var multi struct {
		Personas []*Persona `yaml:"personas"`
	}
	if err := yaml.Unmarshal(data, &multi); err == nil && len(multi.Personas) > 0 {
		for _, p := range multi.Personas {
			if err := r.Register(p); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		return nil
	}

	var single Persona
	if err := yaml.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := r.Register(&single); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadDir loads every .yaml/.yml file in a directory. A missing
// directory is not an error; registries work fine with no personas.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading persona dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := r.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
