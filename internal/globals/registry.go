// Package globals tracks strong and weak global references shared by every
// call context.
package globals

import (
	"sync"

	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

// Registry is a liveness oracle for global references. It does not count:
// a second Add is absorbed and removing an absent reference is a no-op.
type Registry struct {
	mu     sync.RWMutex
	strong map[vm.Ref]struct{}
	weak   map[vm.Ref]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		strong: make(map[vm.Ref]struct{}),
		weak:   make(map[vm.Ref]struct{}),
	}
}

func (r *Registry) set(weak bool) map[vm.Ref]struct{} {
	if weak {
		return r.weak
	}
	return r.strong
}

// Add records ref in the strong or weak set.
func (r *Registry) Add(ref vm.Ref, weak bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.set(weak)
	if _, ok := set[ref]; ok {
		return
	}
	set[ref] = struct{}{}
	GlobalRefs.WithLabelValues(kindLabel(weak)).Inc()
}

// Remove drops ref from the strong or weak set.
func (r *Registry) Remove(ref vm.Ref, weak bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.set(weak)
	if _, ok := set[ref]; !ok {
		return
	}
	delete(set, ref)
	GlobalRefs.WithLabelValues(kindLabel(weak)).Dec()
}

// Contains reports membership in one set.
func (r *Registry) Contains(ref vm.Ref, weak bool) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.set(weak)[ref]
	return ok
}

// Alive reports membership in either set.
func (r *Registry) Alive(ref vm.Ref) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.strong[ref]; ok {
		return true
	}
	_, ok := r.weak[ref]
	return ok
}

// Len returns the size of one set.
func (r *Registry) Len(weak bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.set(weak))
}
