package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the fixed set of agents known at startup.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Capability
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]Capability),
	}
}

// Register adds an agent under its own name.
func (r *Registry) Register(a Capability) error {
	if a == nil || a.Name() == "" {
		return fmt.Errorf("agent name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[a.Name()]; exists {
		return fmt.Errorf("agent '%s' already registered", a.Name())
	}

	r.agents[a.Name()] = a
	return nil
}

// Get returns the named agent.
func (r *Registry) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.agents[name]
	return a, exists
}

// Names returns all registered agent names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.agents)
}
