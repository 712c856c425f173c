// Package registry holds the static plugin table: every capability the
// orchestrator may dispatch, keyed by id, built once at process start
// and read-only afterwards. Keeping the table immutable is what makes
// plugin identity deterministic across concurrent requests.
package registry

import (
	"fmt"
	"sort"
	"time"

	"github.com/libreassistant/libreassistant/internal/plugin"
)

// Descriptor is the metadata for one registered plugin. InputExample
// is included verbatim in the model's system instructions so the model
// knows the payload shape to emit.
type Descriptor struct {
	ID           string         `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Description  string         `json:"description" yaml:"description"`
	InputExample map[string]any `json:"input_example,omitempty" yaml:"input_example,omitempty"`
	Timeout      time.Duration  `json:"-" yaml:"timeout,omitempty"`
}

// Entry pairs a descriptor with its executor.
type Entry struct {
	Descriptor Descriptor
	Plugin     plugin.Plugin
}

// Registry is the immutable plugin table. There is deliberately no
// registration API after New: request-time mutation is not supported.
type Registry struct {
	entries map[string]Entry
	ids     []string
}

// New builds a registry from the given entries. Duplicate or empty ids
// and nil executors are configuration errors.
func New(entries []Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Descriptor.ID == "" {
			return nil, fmt.Errorf("registry: entry with empty plugin id")
		}
		if e.Plugin == nil {
			return nil, fmt.Errorf("registry: plugin %q has no executor", e.Descriptor.ID)
		}
		if _, exists := r.entries[e.Descriptor.ID]; exists {
			return nil, fmt.Errorf("registry: plugin %q registered twice", e.Descriptor.ID)
		}
		r.entries[e.Descriptor.ID] = e
		r.ids = append(r.ids, e.Descriptor.ID)
	}
	sort.Strings(r.ids)
	return r, nil
}

// Lookup returns the entry for id.
func (r *Registry) Lookup(id string) (Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// List returns every descriptor, sorted by id.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.entries[id].Descriptor)
	}
	return out
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int { return len(r.entries) }
