package plugin

import (
	"fmt"
	"slices"
	"sync"
)

// Registry holds notification plugins in registration order. The order is
// the fan-out order for every notification kind, so a given configuration
// always delivers to its plugins in the same sequence.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	plugins map[string]*Plugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]*Plugin),
	}
}

// Add registers a plugin at the end of the registry.
func (r *Registry) Add(p *Plugin) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("plugin id is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[p.ID]; exists {
		return fmt.Errorf("plugin %q already registered", p.ID)
	}
	r.plugins[p.ID] = p
	r.order = append(r.order, p.ID)
	return nil
}

// Remove unregisters a plugin. It reports whether the plugin was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plugins[id]; !ok {
		return false
	}
	delete(r.plugins, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
	return true
}

// Get retrieves a plugin by id.
func (r *Registry) Get(id string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[id]
	return p, ok
}

// All returns the registered plugins in registration order.
func (r *Registry) All() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Plugin, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plugins[id])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// PluginsInterestedIn returns the ids of plugins subscribed to kind, in
// registration order. Unknown kinds yield an empty set.
func (r *Registry) PluginsInterestedIn(kind string) IDSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for _, id := range r.order {
		if r.plugins[id].InterestedIn(kind) {
			ids = append(ids, id)
		}
	}
	return NewIDSet(ids...)
}
