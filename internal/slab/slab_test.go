package slab

import (
	"testing"

	"github.com/paval-belarus/moskit/internal/memphys"
)

func newTestAllocator(t *testing.T) (*Allocator, *memphys.Allocator) {
	t.Helper()
	ca, err := memphys.NewCaptureAllocator([]memphys.MemRegion{{Start: 0, Length: 64 * memphys.PageSize}}, 0, 0, 6)
	if err != nil {
		t.Fatalf("NewCaptureAllocator: %v", err)
	}
	phys, err := ca.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return NewAllocator(phys), phys
}

func TestAllocDeallocRoundTripLeavesOccupancyUnchanged(t *testing.T) {
	a, _ := newTestAllocator(t)

	fullBefore, partialBefore := a.Occupancy("slab-16")

	addr, _, err := a.AllocNamed("slab-16", 16, 256)
	if err != nil {
		t.Fatalf("AllocNamed: %v", err)
	}

	if err := a.DeallocNamed("slab-16", addr); err != nil {
		t.Fatalf("DeallocNamed: %v", err)
	}

	fullAfter, partialAfter := a.Occupancy("slab-16")
	if fullAfter != fullBefore || partialAfter != partialBefore {
		t.Fatalf("occupancy after round trip = (%d,%d), want (%d,%d)", fullAfter, partialAfter, fullBefore, partialBefore)
	}
}

func TestEntryMigratesFullToPartialOnRelease(t *testing.T) {
	a, _ := newTestAllocator(t)

	const slotsPerPage = 4
	addrs := make([]VirtualAddress, 0, slotsPerPage)
	for i := 0; i < slotsPerPage; i++ {
		addr, _, err := a.AllocNamed("slab-small", 8, slotsPerPage)
		if err != nil {
			t.Fatalf("AllocNamed #%d: %v", i, err)
		}
		addrs = append(addrs, addr)
	}

	full, partial := a.Occupancy("slab-small")
	if full != 1 || partial != 0 {
		t.Fatalf("occupancy after filling one entry = (%d,%d), want (1,0)", full, partial)
	}

	if err := a.DeallocNamed("slab-small", addrs[0]); err != nil {
		t.Fatalf("DeallocNamed: %v", err)
	}

	full, partial = a.Occupancy("slab-small")
	if full != 0 || partial != 1 {
		t.Fatalf("occupancy after releasing one slot = (%d,%d), want (0,1)", full, partial)
	}
}

func TestEmptyEntryReleasedBackToPageAllocator(t *testing.T) {
	a, phys := newTestAllocator(t)
	freeBefore := phys.FreeFrameCount()

	addr, _, err := a.AllocNamed("slab-32", 32, 128)
	if err != nil {
		t.Fatalf("AllocNamed: %v", err)
	}
	if got := phys.FreeFrameCount(); got != freeBefore-1 {
		t.Fatalf("free frames after growing one entry = %d, want %d", got, freeBefore-1)
	}

	if err := a.DeallocNamed("slab-32", addr); err != nil {
		t.Fatalf("DeallocNamed: %v", err)
	}

	if got := phys.FreeFrameCount(); got != freeBefore {
		t.Fatalf("free frames after emptying the only entry = %d, want %d (page should return)", got, freeBefore)
	}
}

func TestDeallocUnknownAddressFails(t *testing.T) {
	a, _ := newTestAllocator(t)
	if err := a.DeallocNamed("slab-16", 0xdead); err == nil {
		t.Fatalf("expected error deallocating an address no entry owns")
	}
}

// TestOccupyReleaseChurnReusesSlotsWithoutGrowing repeatedly occupies
// and releases the single slot of a one-slot entry far more times than
// its capacity. A monotonically increasing slot cursor would walk off
// the end of the entry's page after the first release; reusing freed
// slot indices keeps every address within the entry's own page.
func TestOccupyReleaseChurnReusesSlotsWithoutGrowing(t *testing.T) {
	a, phys := newTestAllocator(t)
	freeBefore := phys.FreeFrameCount()

	const slotsPerPage = 1
	var last VirtualAddress
	for i := 0; i < slotsPerPage*50; i++ {
		addr, _, err := a.AllocNamed("slab-churn", 64, slotsPerPage)
		if err != nil {
			t.Fatalf("AllocNamed #%d: %v", i, err)
		}
		if i > 0 && addr != last {
			t.Fatalf("occupy #%d reused address %#x, want reuse of %#x", i, addr, last)
		}
		last = addr

		if err := a.DeallocNamed("slab-churn", addr); err != nil {
			t.Fatalf("DeallocNamed #%d: %v", i, err)
		}
	}

	if got := phys.FreeFrameCount(); got != freeBefore {
		t.Fatalf("free frames after churn = %d, want %d (no page leaked)", got, freeBefore)
	}
}

// TestOccupyReleaseChurnOnMultiSlotEntryStaysWithinPage exercises an
// entry with several slots, keeping one slot permanently held (so the
// entry never empties out and gets handed back to the page allocator)
// while repeatedly occupying and releasing the rest far more times
// than the entry's capacity. Without a free list the slot cursor would
// run past capacity and spill into whatever page is allocated next.
func TestOccupyReleaseChurnOnMultiSlotEntryStaysWithinPage(t *testing.T) {
	a, _ := newTestAllocator(t)

	const slotsPerPage = 4
	pin, _, err := a.AllocNamed("slab-multi-churn", 16, slotsPerPage)
	if err != nil {
		t.Fatalf("AllocNamed pin: %v", err)
	}

	seen := make(map[VirtualAddress]bool)
	for round := 0; round < 10; round++ {
		addrs := make([]VirtualAddress, 0, slotsPerPage-1)
		for i := 0; i < slotsPerPage-1; i++ {
			addr, _, err := a.AllocNamed("slab-multi-churn", 16, slotsPerPage)
			if err != nil {
				t.Fatalf("round %d AllocNamed #%d: %v", round, i, err)
			}
			addrs = append(addrs, addr)
			seen[addr] = true
		}
		for _, addr := range addrs {
			if err := a.DeallocNamed("slab-multi-churn", addr); err != nil {
				t.Fatalf("round %d DeallocNamed: %v", round, err)
			}
		}
	}

	if len(seen) != slotsPerPage-1 {
		t.Fatalf("churn visited %d distinct addresses, want exactly %d (no growth beyond one page)", len(seen), slotsPerPage-1)
	}

	full, partial := a.Occupancy("slab-multi-churn")
	if full != 0 || partial != 1 {
		t.Fatalf("occupancy after churn = (%d,%d), want (0,1)", full, partial)
	}

	if err := a.DeallocNamed("slab-multi-churn", pin); err != nil {
		t.Fatalf("DeallocNamed pin: %v", err)
	}
}
