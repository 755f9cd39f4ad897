package weather

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownProvider is returned when a provider name is not registered.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrDuplicateProvider is returned when two descriptors share a name.
	ErrDuplicateProvider = errors.New("duplicate provider name")
)

// Registry holds the configured providers. Descriptors are immutable except
// for their enabled flag, which only Toggle changes.
type Registry struct {
	mu          sync.RWMutex
	descriptors []ProviderDescriptor
	index       map[string]int
}

// NewRegistry validates descriptors and returns a registry ordered by
// priority, then name.
func NewRegistry(descriptors []ProviderDescriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make([]ProviderDescriptor, 0, len(descriptors)),
		index:       make(map[string]int, len(descriptors)),
	}

	for _, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("provider with locator %q has no name", d.Locator)
		}
		if d.Locator == "" {
			return nil, fmt.Errorf("provider %s has no locator", d.Name)
		}
		if _, exists := r.index[d.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, d.Name)
		}
		r.index[d.Name] = -1
		r.descriptors = append(r.descriptors, d)
	}

	sort.SliceStable(r.descriptors, func(i, j int) bool {
		if r.descriptors[i].Priority != r.descriptors[j].Priority {
			return r.descriptors[i].Priority < r.descriptors[j].Priority
		}
		return r.descriptors[i].Name < r.descriptors[j].Name
	})
	for i, d := range r.descriptors {
		r.index[d.Name] = i
	}

	return r, nil
}

// All returns a copy of every descriptor.
func (r *Registry) All() []ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderDescriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Enabled returns a copy of the descriptors that are currently enabled.
func (r *Registry) Enabled() []ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderDescriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (ProviderDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return ProviderDescriptor{}, false
	}
	return r.descriptors[i], true
}

// Toggle sets the enabled flag of the named provider.
func (r *Registry) Toggle(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	r.descriptors[i].Enabled = enabled
	return nil
}
