package dataset

import (
	"fmt"
	"sort"
)

// Registry manages the available datasets.
type Registry struct {
	sets map[string]*Dataset
}

// NewRegistry creates a new empty dataset registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[string]*Dataset)}
}

// Register adds a dataset. Names must be unique.
func (r *Registry) Register(d *Dataset) error {
	if _, dup := r.sets[d.Name()]; dup {
		return fmt.Errorf("dataset %s already registered", d.Name())
	}
	r.sets[d.Name()] = d
	return nil
}

// Get returns a dataset by name, or nil if not found.
func (r *Registry) Get(name string) *Dataset {
	return r.sets[name]
}

// Lookup is Get with an error naming the known datasets.
func (r *Registry) Lookup(name string) (*Dataset, error) {
	if d := r.sets[name]; d != nil {
		return d, nil
	}
	return nil, fmt.Errorf("unknown dataset %q (known: %v)", name, r.Names())
}

// Names returns the registered dataset names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.sets))
	for n := range r.sets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
