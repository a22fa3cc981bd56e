package value

// SlotType tags the kind of value stored in a slot. The interpreter
// only ever transitions slots with SlotValue today (NEW_OBJECT/
// POP_INTO_OBJECT deal purely in Values); the type exists so a future
// producer of richer object shapes (inline-stored doubles, etc.) has
// somewhere to record that without changing the transition protocol.
type SlotType uint8

const SlotValue SlotType = 0

// transitionKey is the memoization key for a map transition: a single
// slot addition is identified by the id being added and its type.
type transitionKey struct {
	slotID   int32
	slotType SlotType
}

// Map is a persistent, tree-shaped description of object layout.
// Every Map node (other than the shared root) records the slot it adds
// relative to its parent. The chain of parents enumerates an object's
// slots in reverse-insertion order; Depth is also the object's slot
// count when wearing this map, and Depth-1 is the newly-added slot's
// storage offset.
type Map struct {
	parent   *Map
	slotID   int32
	slotType SlotType
	depth    int

	// transitions memoizes this map's children so that two objects
	// performing the same slot addition end up wearing the same
	// child map (shape identity, required for inline-cache
	// correctness).
	transitions map[transitionKey]*Map
}

// RootMap returns a fresh, empty root map (depth 0, no slots). Every
// freshly-allocated object starts wearing a root map; because
// transitions are memoized per-parent and not globally, two distinct
// root maps do not share a transition table — callers that need shape
// identity across objects must share one RootMap (the Heap in package
// gcheap does this for all objects it allocates).
func RootMap() *Map {
	return &Map{transitions: make(map[transitionKey]*Map)}
}

// Depth is the number of slots an object wearing this map has.
func (m *Map) Depth() int { return m.depth }

// Descriptor is the result of a successful slot lookup: where the
// slot lives in an object's slot vector, and what type it was declared
// with.
type Descriptor struct {
	Offset int
	Type   SlotType
}

// Lookup walks the map chain from m toward the root looking for
// slotID, returning the first match (nearer ancestors shadow none —
// there can be at most one slotID per chain since the object API
// never re-adds an existing slot).
func (m *Map) Lookup(slotID int32) (Descriptor, bool) {
	for node := m; node != nil && node.depth > 0; node = node.parent {
		if node.slotID == slotID {
			return Descriptor{Offset: node.depth - 1, Type: node.slotType}, true
		}
	}
	return Descriptor{}, false
}

// Transition returns the child map extending m with one additional
// slot (slotID, slotType), allocating and memoizing it on first use.
func (m *Map) Transition(slotID int32, slotType SlotType) *Map {
	key := transitionKey{slotID: slotID, slotType: slotType}
	if child, ok := m.transitions[key]; ok {
		return child
	}
	child := &Map{
		parent:      m,
		slotID:      slotID,
		slotType:    slotType,
		depth:       m.depth + 1,
		transitions: make(map[transitionKey]*Map),
	}
	m.transitions[key] = child
	return child
}
