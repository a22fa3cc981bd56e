package gcheap

import (
	"testing"

	"b9vm/internal/value"
)

type fakeRoot struct {
	vals []value.Value
}

func (f *fakeRoot) VisitRoots(visit func(value.Value)) {
	for _, v := range f.vals {
		visit(v)
	}
}

func TestAllocAndResolve(t *testing.T) {
	h := New()
	ref := h.Alloc()
	if !ref.IsObject() {
		t.Fatal("Alloc should return an object reference")
	}
	obj := h.Object(ref.ObjectHandle())
	obj.Set(1, value.SlotValue, value.NewInt(7))
	got, ok := h.Object(ref.ObjectHandle()).Get(1)
	if !ok || got.Int() != 7 {
		t.Fatalf("got %v, ok=%v", got, ok)
	}
}

func TestCollectFreesUnreachable(t *testing.T) {
	h := New()
	kept := h.Alloc()
	_ = h.Alloc() // unreachable after Collect

	root := &fakeRoot{vals: []value.Value{kept}}
	h.RegisterRoot(root)

	stats := h.Collect()
	if stats.LiveObjects != 1 {
		t.Fatalf("expected 1 live object, got %d", stats.LiveObjects)
	}
	if stats.Freed != 1 {
		t.Fatalf("expected 1 freed object, got %d", stats.Freed)
	}

	// The kept object must still resolve correctly after collection.
	obj := h.Object(kept.ObjectHandle())
	if obj == nil {
		t.Fatal("kept object should still resolve after Collect")
	}
}

func TestCollectReclaimsHandlesForReuse(t *testing.T) {
	h := New()
	_ = h.Alloc()
	h.RegisterRoot(&fakeRoot{})
	h.Collect()

	next := h.Alloc()
	if next.ObjectHandle() != 0 {
		t.Fatalf("expected freed handle 0 to be reused, got %d", next.ObjectHandle())
	}
}

func TestDoubleBoxRoundTrip(t *testing.T) {
	h := New()
	ref := h.AllocDouble(3.5)
	if !ref.IsDouble() {
		t.Fatal("expected double reference")
	}
	if got := h.Double(ref.DoubleHandle()); got != 3.5 {
		t.Errorf("got %v, want 3.5", got)
	}
}

func TestTransitiveMarkThroughObjectGraph(t *testing.T) {
	h := New()
	parent := h.Alloc()
	child := h.Alloc()
	h.Object(parent.ObjectHandle()).Set(1, value.SlotValue, child)

	h.RegisterRoot(&fakeRoot{vals: []value.Value{parent}})
	stats := h.Collect()

	if stats.LiveObjects != 2 {
		t.Fatalf("expected both parent and child to survive, got %d live", stats.LiveObjects)
	}
}
