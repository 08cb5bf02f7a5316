package memphys

import "testing"

func TestAllocDeallocRoundTrip(t *testing.T) {
	a := NewAllocator(64, 6)
	a.seedFree(0, 6)

	initial := a.FreeFrameCount()

	frames, err := a.AllocPages(17)
	if err != nil {
		t.Fatalf("AllocPages(17): %v", err)
	}
	if len(frames) != 17 {
		t.Fatalf("got %d frames, want 17", len(frames))
	}

	if err := a.DeallocPages(frames[:10]); err != nil {
		t.Fatalf("dealloc batch 1: %v", err)
	}
	if err := a.DeallocPages(frames[10:]); err != nil {
		t.Fatalf("dealloc batch 2: %v", err)
	}

	if got := a.FreeFrameCount(); got != initial {
		t.Fatalf("free frame count after round trip = %d, want %d", got, initial)
	}
}

func TestAllocOutOfMemory(t *testing.T) {
	a := NewAllocator(8, 3)
	a.seedFree(0, 3)

	if _, err := a.AllocPages(9); err == nil {
		t.Fatalf("expected OutOfMemory allocating more frames than exist")
	}
	if got := a.FreeFrameCount(); got != 8 {
		t.Fatalf("a failed alloc must not leak partial frames: free=%d, want 8", got)
	}
}

func TestCaptureAllocatorExcisesKernelRange(t *testing.T) {
	regions := []MemRegion{{Start: 0, Length: 64 * PageSize}}
	ca, err := NewCaptureAllocator(regions, 4*PageSize, 4*PageSize, 6)
	if err != nil {
		t.Fatalf("NewCaptureAllocator: %v", err)
	}

	alloc, err := ca.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if got, want := alloc.FreeFrameCount(), 60; got != want {
		t.Fatalf("free frames after excising kernel image = %d, want %d", got, want)
	}
	for i := uint32(4); i < 8; i++ {
		if alloc.Frame(i).IsFree() {
			t.Fatalf("frame %d overlaps the kernel image and must not be free", i)
		}
	}
}

func TestCaptureAllocatorRejectsOversizedMemoryMap(t *testing.T) {
	regions := make([]MemRegion, maxBootRegions+1)
	if _, err := NewCaptureAllocator(regions, 0, 0, 6); err == nil {
		t.Fatalf("expected an error for a memory map exceeding boot allocator capacity")
	}
}
