// Package template holds the template providers available to templated
// queries: a registry keyed by provider name and DistinctValues, a provider
// that builds SQL fragments from the distinct values of a query.
package template

import (
	"fmt"
	"sort"
	"sync"

	"github.com/darianmavgo/mince/query"
)

// Registry maps provider names to providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]query.TemplateProvider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]query.TemplateProvider)}
}

// Register adds p under p.Name(). It panics if p is nil or the name is taken.
func (r *Registry) Register(p query.TemplateProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == nil {
		panic("template: Register provider is nil")
	}
	name := p.Name()
	if _, dup := r.providers[name]; dup {
		panic("template: Register called twice for provider " + name)
	}
	r.providers[name] = p
}

// Lookup returns the provider registered as name.
func (r *Registry) Lookup(name string) (query.TemplateProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("template: unknown provider %q", name)
	}
	return p, nil
}

// Names returns the sorted provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]string, 0, len(r.providers))
	for name := range r.providers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

var defaultRegistry = NewRegistry()

// Register adds a provider implemented in Go to the process-wide registry,
// usually from an init function.
func Register(p query.TemplateProvider) { defaultRegistry.Register(p) }

// Lookup finds a provider in the process-wide registry.
func Lookup(name string) (query.TemplateProvider, error) { return defaultRegistry.Lookup(name) }
