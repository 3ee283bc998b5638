package collector

import (
	"sort"
	"sync"

	"github.com/newthinker/perftrack/internal/core"
)

// Registry maps each universe to the provider serving its history
type Registry struct {
	mu        sync.RWMutex
	providers map[core.Universe]Provider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[core.Universe]Provider),
	}
}

// Register sets the provider for a universe, replacing any previous one
func (r *Registry) Register(universe core.Universe, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[universe] = p
}

// Get retrieves the provider of a universe
func (r *Registry) Get(universe core.Universe) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[universe]
	return p, ok
}

// Universes returns the registered universes in name order
func (r *Registry) Universes() []core.Universe {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]core.Universe, 0, len(r.providers))
	for u := range r.providers {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
