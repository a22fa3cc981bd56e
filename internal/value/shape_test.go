package value

import "testing"

func TestWriteThenReadRoundTrip(t *testing.T) {
	root := RootMap()
	obj := NewObject(root)
	obj.Set(1, SlotValue, NewInt(42))

	got, ok := obj.Get(1)
	if !ok {
		t.Fatal("expected slot 1 to exist after Set")
	}
	if got.Int() != 42 {
		t.Errorf("got %v, want 42", got)
	}
}

func TestReadMissingSlotFails(t *testing.T) {
	root := RootMap()
	obj := NewObject(root)
	if _, ok := obj.Get(5); ok {
		t.Fatal("expected missing slot lookup to fail")
	}
}

func TestShapeIdentityAcrossObjects(t *testing.T) {
	root := RootMap()
	a := NewObject(root)
	b := NewObject(root)

	for _, id := range []int32{10, 11, 12} {
		a.Set(id, SlotValue, NewInt(int64(id)))
		b.Set(id, SlotValue, NewInt(int64(id)*2))
	}

	if a.Map != b.Map {
		t.Fatal("two objects performing identical slot-id transitions must share a map (shape identity)")
	}
	if a.Map.Depth() != 3 {
		t.Fatalf("expected depth 3, got %d", a.Map.Depth())
	}
}

func TestTransitionMemoizedOnParent(t *testing.T) {
	root := RootMap()
	child1 := root.Transition(1, SlotValue)
	child2 := root.Transition(1, SlotValue)
	if child1 != child2 {
		t.Fatal("identical transitions from the same parent must yield the same child map")
	}

	other := root.Transition(2, SlotValue)
	if other == child1 {
		t.Fatal("different slot ids must yield different child maps")
	}
}

func TestSlotCountMatchesMapDepth(t *testing.T) {
	root := RootMap()
	obj := NewObject(root)
	if len(obj.Slots) != obj.Map.Depth() {
		t.Fatalf("fresh object: slots=%d depth=%d", len(obj.Slots), obj.Map.Depth())
	}
	obj.Set(1, SlotValue, NewInt(1))
	obj.Set(2, SlotValue, NewInt(2))
	if len(obj.Slots) != obj.Map.Depth() {
		t.Fatalf("after writes: slots=%d depth=%d", len(obj.Slots), obj.Map.Depth())
	}
}

func TestOverwriteExistingSlotDoesNotTransition(t *testing.T) {
	root := RootMap()
	obj := NewObject(root)
	obj.Set(1, SlotValue, NewInt(1))
	mapAfterFirst := obj.Map
	obj.Set(1, SlotValue, NewInt(2))
	if obj.Map != mapAfterFirst {
		t.Fatal("overwriting an existing slot must not transition the map")
	}
	got, _ := obj.Get(1)
	if got.Int() != 2 {
		t.Errorf("got %v, want 2", got)
	}
}
