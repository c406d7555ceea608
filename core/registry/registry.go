// Package registry holds the process-wide, read-only table of dispatch targets.
//
// A Registry is built once at start-up and never mutated afterwards, so it is
// safe for unsynchronised concurrent reads. It is passed explicitly to the
// components that need it rather than reached through a package global.
package registry

import (
	"errors"
	"fmt"

	"github.com/kilianp07/civicdispatch/core/model"
)

var (
	// ErrDuplicateID is returned when two targets share an identifier.
	ErrDuplicateID = errors.New("duplicate target id")
	// ErrInvalidTarget wraps validation failures of a single target.
	ErrInvalidTarget = errors.New("invalid target")
)

// Registry is an immutable, ordered set of dispatch targets.
type Registry struct {
	targets []model.DispatchTarget
	index   map[string]int
}

// New validates the targets and builds a registry preserving their order.
func New(targets []model.DispatchTarget) (*Registry, error) {
	r := &Registry{
		targets: make([]model.DispatchTarget, 0, len(targets)),
		index:   make(map[string]int, len(targets)),
	}
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidTarget, t.ID, err)
		}
		if _, ok := r.index[t.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
		}
		r.index[t.ID] = len(r.targets)
		r.targets = append(r.targets, t.Clone())
	}
	return r, nil
}

// MustNew is like New but panics on error. It is meant for static tables.
func MustNew(targets []model.DispatchTarget) *Registry {
	r, err := New(targets)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the target with the given id.
func (r *Registry) Lookup(id string) (model.DispatchTarget, bool) {
	i, ok := r.index[id]
	if !ok {
		return model.DispatchTarget{}, false
	}
	return r.targets[i].Clone(), true
}

// All returns every target in registration order.
func (r *Registry) All() []model.DispatchTarget {
	out := make([]model.DispatchTarget, len(r.targets))
	for i, t := range r.targets {
		out[i] = t.Clone()
	}
	return out
}

// Len returns the number of registered targets.
func (r *Registry) Len() int { return len(r.targets) }
