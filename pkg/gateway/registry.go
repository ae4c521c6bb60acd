package gateway

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates an initialized gateway variant.
type Factory func(cfg Config) (Gateway, error)

// Registry maps variant names to factories. It is an explicit object
// built once at startup and injected where needed; there is no package
// global. Registration happens before calls are served, so lookups need
// no coordination beyond the internal lock.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry creates a registry with all built-in variants.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("websocket", func(cfg Config) (Gateway, error) {
		g := NewWebSocket()
		return g, g.Initialize(cfg)
	})
	r.Register("rtp", func(cfg Config) (Gateway, error) {
		g := NewRTP()
		return g, g.Initialize(cfg)
	})
	r.Register("browser", func(cfg Config) (Gateway, error) {
		g := NewBrowser()
		return g, g.Initialize(cfg)
	})
	return r
}

// Register adds a factory under name, replacing any previous entry.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New creates an initialized gateway by variant name.
func (r *Registry) New(name string, cfg Config) (Gateway, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("gateway: unknown variant %q (have %v)", name, r.Names())
	}
	return f(cfg)
}

// Names returns the registered variant names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
