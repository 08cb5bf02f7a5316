package slab

import "testing"

type widget struct {
	a, b uint32
}

func (widget) SlabName() string { return "widget" }

func TestBoxAllocInitializesValue(t *testing.T) {
	a, _ := newTestAllocator(t)

	box, err := Alloc(a, func() widget { return widget{a: 7, b: 9} })
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if box.Value.a != 7 || box.Value.b != 9 {
		t.Fatalf("box.Value = %+v, want {7 9}", *box.Value)
	}

	full, partial := a.Occupancy("widget")
	if full+partial != 1 {
		t.Fatalf("expected exactly one entry backing the widget head, got full=%d partial=%d", full, partial)
	}
}

func TestBoxReleaseReturnsOccupancy(t *testing.T) {
	a, _ := newTestAllocator(t)

	box, err := Alloc(a, func() widget { return widget{} })
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if err := box.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	full, partial := a.Occupancy("widget")
	if full != 0 || partial != 0 {
		t.Fatalf("occupancy after releasing the only box = (%d,%d), want (0,0)", full, partial)
	}
}

func TestSizeClassNameForAnonymousType(t *testing.T) {
	a, _ := newTestAllocator(t)

	box, err := Alloc(a, func() uint32 { return 42 })
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if *box.Value != 42 {
		t.Fatalf("box.Value = %d, want 42", *box.Value)
	}

	if full, partial := a.Occupancy(SizeClassName(4)); full+partial != 1 {
		t.Fatalf("expected one entry under the generic size class, got full=%d partial=%d", full, partial)
	}
}
