package workflow

import (
	"encoding/json"
	"fmt"
	"sync"
)

// State is an ordered string-keyed map of run state. Insertion order is
// preserved so serialized snapshots are deterministic.
type State struct {
	mu     sync.RWMutex
	keys   []string
	values map[string]string
}

// NewState creates an empty state map.
func NewState() *State {
	return &State{values: make(map[string]string)}
}

// Set stores a value, preserving the key's original insertion position.
func (s *State) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Get returns a value and whether the key is present.
func (s *State) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Remove deletes a key if present.
func (s *State) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.values[key]; !exists {
		return
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Clear removes all entries.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = nil
	s.values = make(map[string]string)
}

// Len returns the number of entries.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Snapshot returns the entries as a plain map copy.
func (s *State) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// stateEntry is the serialized form of one state pair.
type stateEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type stateDocument struct {
	Entries []stateEntry `json:"entries"`
}

// MarshalJSON serializes entries in insertion order.
func (s *State) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := stateDocument{Entries: make([]stateEntry, 0, len(s.keys))}
	for _, k := range s.keys {
		doc.Entries = append(doc.Entries, stateEntry{Key: k, Value: s.values[k]})
	}
	return json.Marshal(doc)
}

// UnmarshalJSON replaces the state with the serialized entries.
func (s *State) UnmarshalJSON(data []byte) error {
	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = nil
	s.values = make(map[string]string, len(doc.Entries))
	for _, e := range doc.Entries {
		if _, exists := s.values[e.Key]; !exists {
			s.keys = append(s.keys, e.Key)
		}
		s.values[e.Key] = e.Value
	}
	return nil
}
