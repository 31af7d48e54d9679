package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownKind is returned for a resource kind nobody registered.
var ErrUnknownKind = errors.New("unknown resource kind")

// Factory builds the shared handler for one resource kind.
type Factory func(ctx context.Context) (Kind, error)

// Registry manages the lifecycle of resource kinds. Each kind is built at
// most once per process, on first use, and shared by every invocation.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	kinds     map[string]Kind
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		kinds:     make(map[string]Kind),
	}
}

// Register adds a factory for a kind. Registering the same name twice
// replaces the factory and drops any handler already built.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = f
	delete(r.kinds, name)
}

// LoadKind returns the shared handler for a kind, building it on first use.
// A failed build is not cached, so a later call retries it.
func (r *Registry) LoadKind(ctx context.Context, name string) (Kind, error) {
	r.mu.RLock()
	k, ok := r.kinds[name]
	r.mu.RUnlock()
	if ok {
		return k, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if k, ok := r.kinds[name]; ok {
		return k, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	k, err := f(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load kind %s: %w", name, err)
	}
	r.kinds[name] = k
	return k, nil
}

// Has reports whether a factory is registered for name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered kind names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
