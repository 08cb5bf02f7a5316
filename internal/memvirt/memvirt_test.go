package memvirt

import (
	"testing"

	"github.com/paval-belarus/moskit/internal/memphys"
)

func newTestPhys(t *testing.T) *memphys.Allocator {
	t.Helper()
	ca, err := memphys.NewCaptureAllocator([]memphys.MemRegion{{Start: 0, Length: 64 * memphys.PageSize}}, 0, 0, 6)
	if err != nil {
		t.Fatalf("NewCaptureAllocator: %v", err)
	}
	a, err := ca.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return a
}

func TestMapUserRangeBacksEveryPageWithExactlyOneFrame(t *testing.T) {
	phys := newTestPhys(t)
	marker := New(phys)

	if err := marker.MapUserRange(Region{Virtual: 0x1000, PageCount: 3, Flags: UserDataLayout}); err != nil {
		t.Fatalf("MapUserRange: %v", err)
	}

	for i := uintptr(0); i < 3; i++ {
		frame, flags, ok := marker.Translate(0x1000 + i*memphys.PageSize)
		if !ok {
			t.Fatalf("page %d not resident after MapUserRange", i)
		}
		if !flags.Present || !flags.Writable || !flags.User {
			t.Fatalf("page %d flags = %+v, want present+writable+user", i, flags)
		}
		if frame.UseCount.Load() != 1 {
			t.Fatalf("page %d frame use-count = %d, want 1", i, frame.UseCount.Load())
		}
	}
}

func TestMapKernelRangeVisibleFromEveryMarker(t *testing.T) {
	phys := newTestPhys(t)
	a := New(phys)
	b := New(phys)

	if err := a.MapKernelRange(Region{Virtual: 0x2000, PageCount: 1, Flags: KernelLayout}); err != nil {
		t.Fatalf("MapKernelRange: %v", err)
	}

	if _, _, ok := b.Translate(0x2000); !ok {
		t.Fatalf("kernel mapping installed via marker a is not visible from marker b")
	}
}

func TestUnmapDropsUseCount(t *testing.T) {
	phys := newTestPhys(t)
	marker := New(phys)

	if err := marker.MapUserRange(Region{Virtual: 0x3000, PageCount: 1, Flags: UserDataLayout}); err != nil {
		t.Fatalf("MapUserRange: %v", err)
	}
	frame, _, _ := marker.Translate(0x3000)

	if err := marker.Unmap(0x3000); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if frame.UseCount.Load() != 0 {
		t.Fatalf("frame use-count after unmap = %d, want 0", frame.UseCount.Load())
	}
	if _, _, ok := marker.Translate(0x3000); ok {
		t.Fatalf("page still resident after Unmap")
	}
}

func TestShareEntriesIncrementsUseCountAcrossMarkers(t *testing.T) {
	phys := newTestPhys(t)
	parent := New(phys)

	if err := parent.MapUserRange(Region{Virtual: 0x4000, PageCount: 2, Flags: UserDataLayout}); err != nil {
		t.Fatalf("MapUserRange: %v", err)
	}

	shared := parent.ShareEntries()
	if len(shared) != 2 {
		t.Fatalf("ShareEntries returned %d entries, want 2", len(shared))
	}

	child := New(phys)
	child.AdoptShared(shared)

	for _, e := range shared {
		if e.Frame.UseCount.Load() != 2 {
			t.Fatalf("shared frame use-count = %d, want 2 (parent + child)", e.Frame.UseCount.Load())
		}
	}
	if _, _, ok := child.Translate(0x4000); !ok {
		t.Fatalf("child marker does not resolve a shared page")
	}
}

func TestRemapExposesArbitraryPhysicalRange(t *testing.T) {
	phys := newTestPhys(t)
	marker := New(phys)

	if err := marker.Remap(0, 0x5000, int(memphys.PageSize), UserDataLayout); err != nil {
		t.Fatalf("Remap: %v", err)
	}

	frame, _, ok := marker.Translate(0x5000)
	if !ok {
		t.Fatalf("remapped page not resident")
	}
	if frame != phys.Frame(0) {
		t.Fatalf("Remap bound the wrong physical frame")
	}
}
