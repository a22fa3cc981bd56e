// Package gcheap is the VM's garbage collector, treated elsewhere in
// the system as a black-box collaborator: it provides allocation, root
// registration, and an explicit collection request, and nothing above
// this package needs to know how collection works.
//
// Objects are addressed by opaque handles rather than Go pointers.
// That indirection is what lets Collect move or discard the backing
// storage of unreachable objects without invalidating any Value a
// caller is still holding: a Value only ever carries a handle, and the
// handle table is the single place that gets rewritten during
// collection.
package gcheap

import (
	"runtime"
	"sync"

	"b9vm/internal/value"
)

// RootProvider is registered with a Heap so that Collect can discover
// every Value currently reachable from outside the heap (an operand
// stack, held locals, etc). ExecutionContext implements this.
type RootProvider interface {
	VisitRoots(visit func(value.Value))
}

// Stats summarizes the outcome of a Collect call, useful for the
// diagnostics sink and for tests asserting a collection actually ran.
type Stats struct {
	LiveObjects int
	LiveDoubles int
	Freed       int
	Cycles      int
}

// Heap owns every Object and boxed double the VM allocates, plus the
// shared root Map new objects wear (so that objects allocated at
// different times still participate in the same transition memoization
// and get shape identity).
type Heap struct {
	mu    sync.Mutex
	root  *value.Map
	roots []RootProvider

	objects      []*value.Object // handle -> object, nil if freed
	freeObjects  []uint32
	doubles      []float64
	doubleLive   []bool
	freeDoubles  []uint32

	stats Stats
}

// New creates an empty Heap.
func New() *Heap {
	return &Heap{root: value.RootMap()}
}

// RegisterRoot registers p as a GC root provider. Providers are
// consulted on every Collect; there is no Unregister because the only
// providers in this system (the ExecutionContext and the VM's
// interned-string roots) live exactly as long as the VM that owns the
// Heap, destroyed when the VM is torn down.
func (h *Heap) RegisterRoot(p RootProvider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.roots = append(h.roots, p)
}

// Alloc allocates a fresh, empty object wearing the heap's shared root
// map and returns an object-reference Value for it.
func (h *Heap) Alloc() value.Value {
	h.mu.Lock()
	defer h.mu.Unlock()
	obj := value.NewObject(h.root)
	handle := h.putObject(obj)
	return value.NewObjectRef(handle)
}

func (h *Heap) putObject(obj *value.Object) uint32 {
	if n := len(h.freeObjects); n > 0 {
		handle := h.freeObjects[n-1]
		h.freeObjects = h.freeObjects[:n-1]
		h.objects[handle] = obj
		return handle
	}
	h.objects = append(h.objects, obj)
	return uint32(len(h.objects) - 1)
}

// Object resolves an object handle to its backing *value.Object. It
// panics on a freed or out-of-range handle: reaching one means a
// Value outlived a collection that should have kept it alive via a
// registered root, which is an internal GC invariant violation, not a
// recoverable script-level fault.
func (h *Heap) Object(handle uint32) *value.Object {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(handle) >= len(h.objects) || h.objects[handle] == nil {
		panic("gcheap: use of freed or invalid object handle")
	}
	return h.objects[handle]
}

// AllocDouble boxes f on the heap and returns a double-reference
// Value for it.
func (h *Heap) AllocDouble(f float64) value.Value {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.freeDoubles); n > 0 {
		handle := h.freeDoubles[n-1]
		h.freeDoubles = h.freeDoubles[:n-1]
		h.doubles[handle] = f
		h.doubleLive[handle] = true
		return value.NewDoubleRef(handle)
	}
	h.doubles = append(h.doubles, f)
	h.doubleLive = append(h.doubleLive, true)
	return value.NewDoubleRef(uint32(len(h.doubles) - 1))
}

// Double resolves a double handle to its boxed float64.
func (h *Heap) Double(handle uint32) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(handle) >= len(h.doubles) || !h.doubleLive[handle] {
		panic("gcheap: use of freed or invalid double handle")
	}
	return h.doubles[handle]
}

// Collect performs a synchronous mark-and-free pass over the heap: it
// walks every registered root, transitively marks object slots that
// themselves hold object/double references, frees everything
// unreached, and then asks the Go runtime to collect the underlying
// memory. SYSTEM_COLLECT is the only bytecode that drives this; object
// handles (not raw pointers) are what a caller holds across the call,
// so nothing above this package needs to re-fetch anything — Collect
// never changes a live handle's meaning, only frees dead ones.
func (h *Heap) Collect() Stats {
	h.mu.Lock()
	liveObjects := make([]bool, len(h.objects))
	liveDoubles := make([]bool, len(h.doubles))
	var stack []value.Value

	for _, r := range h.roots {
		r.VisitRoots(func(v value.Value) { stack = append(stack, v) })
	}

	freedBefore := 0
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch v.Tag() {
		case value.TagObject:
			handle := v.ObjectHandle()
			if int(handle) >= len(h.objects) || liveObjects[handle] {
				continue
			}
			liveObjects[handle] = true
			obj := h.objects[handle]
			if obj == nil {
				continue
			}
			for _, slot := range obj.Slots {
				stack = append(stack, slot)
			}
		case value.TagDouble:
			handle := v.DoubleHandle()
			if int(handle) < len(h.doubles) {
				liveDoubles[handle] = true
			}
		}
	}

	for handle, obj := range h.objects {
		if obj != nil && !liveObjects[handle] {
			h.objects[handle] = nil
			h.freeObjects = append(h.freeObjects, uint32(handle))
			freedBefore++
		}
	}
	for handle, live := range h.doubleLive {
		if live && !liveDoubles[handle] {
			h.doubleLive[handle] = false
			h.freeDoubles = append(h.freeDoubles, uint32(handle))
			freedBefore++
		}
	}

	liveObjCount := 0
	for _, ok := range liveObjects {
		if ok {
			liveObjCount++
		}
	}
	liveDblCount := 0
	for _, ok := range liveDoubles {
		if ok {
			liveDblCount++
		}
	}

	h.stats.LiveObjects = liveObjCount
	h.stats.LiveDoubles = liveDblCount
	h.stats.Freed += freedBefore
	h.stats.Cycles++
	stats := h.stats
	h.mu.Unlock()

	runtime.GC()
	return stats
}
