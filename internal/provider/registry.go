package provider

import (
	"fmt"
	"sync"

	"github.com/bytedance/gg/gmap"
)

var (
	defaultRegistry = NewRegistry()

	Get      = defaultRegistry.Get
	Register = defaultRegistry.Register
)

// Registry holds the configured provider instances, keyed by ID.
type Registry struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	return nil
}

// Get returns the provider registered under id, or an error if no
// provider with that id exists.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider not registered: %s", id)
	}
	return p, nil
}

func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return gmap.ToSlice(r.providers, func(k string, v Provider) Provider { return v })
}

func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[id] != nil
}

func (r *Registry) Unregister(id string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, id)
}

func List() []Provider {
	return defaultRegistry.List()
}

func Exists(id string) bool {
	return defaultRegistry.Exists(id)
}

func Unregister(id string) {
	defaultRegistry.Unregister(id)
}
