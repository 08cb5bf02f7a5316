package objects

import "sync"

// Registry is the process-wide runtime registry of every live kernel
// object, spec.md §5's "global object registry" — a reader-writer lock
// guards it, lookup/iteration under read, register/unregister under
// write. Grounded on pet_os's kernel/src/object/runtime.rs.
type Registry struct {
	mu      sync.RWMutex
	objects map[Handle]*Object
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{objects: make(map[Handle]*Object)}
}

// Register publishes obj under its own Handle and, if it has a
// non-zero parent already present in the registry, links it as that
// parent's child.
func (r *Registry) Register(obj *Object) Handle {
	h := obj.Handle()

	r.mu.Lock()
	r.objects[h] = obj
	r.mu.Unlock()

	if obj.parent != Zero {
		if p, ok := r.Lookup(obj.parent); ok {
			p.addChild(h)
		}
	}

	return h
}

func (r *Registry) unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.objects, h)
}

// Lookup resolves a Handle to its Object, reporting whether it is
// still live.
func (r *Registry) Lookup(h Handle) (*Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.objects[h]
	return obj, ok
}

// Contains reports whether h currently names a live object (spec.md §8
// invariant 1: runtime.contains(h)).
func (r *Registry) Contains(h Handle) bool {
	_, ok := r.Lookup(h)
	return ok
}

// Len returns the number of live objects, for diagnostics and tests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// CloneHandle increments the named object's use-count and returns it
// unchanged, the syscall-level CloneHandle primitive (spec.md §6).
func (r *Registry) CloneHandle(h Handle) (Handle, bool) {
	obj, ok := r.Lookup(h)
	if !ok {
		return Zero, false
	}
	obj.Clone()
	return h, true
}

// FreeKernelObject drops one reference to the named object, freeing it
// via its release callback once the use-count reaches zero (spec.md §6
// FreeKernelObject). Reports whether h named a live object; dropping a
// clone while other references remain also reports true.
func (r *Registry) FreeKernelObject(h Handle) bool {
	obj, ok := r.Lookup(h)
	if !ok {
		return false
	}
	obj.Drop(r)
	return true
}

// Subtree returns every handle reachable from root by following child
// links, root included, in breadth-first order. Used by dispatch's
// module-crash unload path to enumerate every object a module owns
// before waking its waiters (spec.md §7, §9 Open Question resolution).
func (r *Registry) Subtree(root Handle) []Handle {
	var out []Handle
	queue := []Handle{root}
	seen := map[Handle]bool{}

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if seen[h] {
			continue
		}
		seen[h] = true

		obj, ok := r.Lookup(h)
		if !ok {
			continue
		}
		out = append(out, h)
		queue = append(queue, obj.Children()...)
	}

	return out
}
