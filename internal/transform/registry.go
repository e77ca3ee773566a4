package transform

import (
	"sort"
	"strings"
	"sync"
)

// Registry holds the named transforms and image transformers currently
// bound. Binding and unbinding may happen while requests are served.
type Registry struct {
	mu           sync.RWMutex
	named        map[string]Named
	transformers map[string]ImageTransformer
}

func NewRegistry() *Registry {
	return &Registry{
		named:        make(map[string]Named),
		transformers: make(map[string]ImageTransformer),
	}
}

func (r *Registry) BindNamed(n Named) {
	name := strings.TrimSpace(n.Name)
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.named[name] = n
}

func (r *Registry) UnbindNamed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.named, name)
}

func (r *Registry) BindTransformer(t ImageTransformer) {
	if t == nil || strings.TrimSpace(t.Type()) == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transformers[t.Type()] = t
}

func (r *Registry) UnbindTransformer(typ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.transformers, typ)
}

func (r *Registry) Named(name string) (Named, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.named[name]
	return n, ok
}

func (r *Registry) HasNamed(name string) bool {
	_, ok := r.Named(name)
	return ok
}

func (r *Registry) Transformer(typ string) (ImageTransformer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transformers[typ]
	return t, ok
}

func (r *Registry) NamedNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.named))
	for name := range r.named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SyncNamed binds every definition in defs and unbinds the named transforms
// that defs no longer declares. It returns the unbound names, sorted.
func (r *Registry) SyncNamed(defs []Named) []string {
	keep := make(map[string]struct{}, len(defs))
	for _, n := range defs {
		r.BindNamed(n)
		keep[strings.TrimSpace(n.Name)] = struct{}{}
	}

	var removed []string
	for _, name := range r.NamedNames() {
		if _, ok := keep[name]; !ok {
			r.UnbindNamed(name)
			removed = append(removed, name)
		}
	}
	return removed
}
