package collector

import (
	"sort"
	"sync"

	"github.com/shinmindoree/llmtradingtest/internal/core"
)

// Registry manages bar sources by name
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates a new source registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]Source),
	}
}

// Register adds a source to the registry
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
}

// Get retrieves a source by name
func (r *Registry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	return s, ok
}

// MustGet is Get returning core.ErrNotFound for unknown names.
func (r *Registry) MustGet(name string) (Source, error) {
	s, ok := r.Get(name)
	if !ok {
		return nil, core.Errorf(core.ErrNotFound, "bar source %q", name)
	}
	return s, nil
}

// Names returns registered source names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
