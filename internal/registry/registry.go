// Package registry resolves job type names from the roster to job values.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cronsched/internal/task/job"
)

var (
	ErrUnknownType   = errors.New("unknown job type")
	ErrDuplicateType = errors.New("job type already registered")
	ErrInvalidType   = errors.New("invalid job type registration")
)

// Factory builds a fresh job value for one roster entry.
type Factory func() job.Job

type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func New() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a factory under name. Names are matched exactly.
func (r *Registry) Register(name string, f Factory) error {
	name = strings.TrimSpace(name)
	if name == "" || f == nil {
		return fmt.Errorf("%w: name=%q", ErrInvalidType, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register for init-time wiring; it panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// New builds a job of the named type.
func (r *Registry) New(name string) (job.Job, error) {
	name = strings.TrimSpace(name)
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownType, name, strings.Join(r.Names(), ", "))
	}
	j := f()
	if j == nil {
		return nil, fmt.Errorf("%w: factory for %s returned nil", ErrInvalidType, name)
	}
	return j, nil
}

// Names lists registered types, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
