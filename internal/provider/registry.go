package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a provider from its configured name and options.
type Factory func(name string, options map[string]any) (Provider, error)

// Registry maps provider kinds to factories. Kinds are registered at
// program start; there is no dynamic plugin loading.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory for kind. Empty and duplicate kinds are rejected.
func (r *Registry) Register(kind string, f Factory) error {
	if kind == "" {
		return fmt.Errorf("provider kind must not be empty")
	}
	if f == nil {
		return fmt.Errorf("provider %q: factory must not be nil", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[kind]; dup {
		return fmt.Errorf("provider %q already registered", kind)
	}
	r.factories[kind] = f
	return nil
}

// MustRegister is Register for program initialization. It panics on error.
func (r *Registry) MustRegister(kind string, f Factory) {
	if err := r.Register(kind, f); err != nil {
		panic(err)
	}
}

// New constructs a provider of the given kind.
func (r *Registry) New(kind, name string, options map[string]any) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %v)", kind, r.Kinds())
	}
	p, err := f(name, options)
	if err != nil {
		return nil, fmt.Errorf("provider %s (%s): %w", name, kind, err)
	}
	return p, nil
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind]
	return ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
