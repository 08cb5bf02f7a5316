// Package slab implements the slab allocator of spec.md §4.2, layered
// on top of internal/memphys's page-granular physical allocator: named
// slab heads track full/partial entries, each entry a page carved into
// fixed-size slots. Grounded on pet_os's kernel/src/memory/allocators/
// system/{slab_head,tree}.rs (full/partial migration) and the teacher's
// heap.go for page-granular backing.
package slab

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/paval-belarus/moskit/internal/kerr"
	"github.com/paval-belarus/moskit/internal/memphys"
)

// PageSource is the physical-page supplier a slab allocator draws new
// backing pages from; internal/memphys.Allocator satisfies this
// directly, since slab (L3) sits on top of the physical allocator (L1)
// per spec.md §2's dependency order.
type PageSource interface {
	AllocPages(n int) ([]*memphys.PageFrame, error)
	DeallocPages([]*memphys.PageFrame) error
}

// VirtualAddress names one allocated slot, the hosted analogue of a
// slab slot's address (spec.md §4.2 "locate the owning entry by
// address range").
type VirtualAddress = uintptr

// Slab is implemented by every type allocatable via Alloc, naming its
// slab by string (spec.md §4.2 Slab::NAME).
type Slab interface {
	SlabName() string
}

// sizeClassName returns the generic size-class name ("slab-4" ..
// "slab-64") for an ad-hoc allocation that doesn't implement Slab.
func sizeClassName(size uintptr) string {
	classes := []uintptr{4, 8, 16, 32, 64}
	for _, c := range classes {
		if size <= c {
			return fmt.Sprintf("slab-%d", c)
		}
	}
	return fmt.Sprintf("slab-%d", size)
}

// Entry is one page's worth of fixed-size slots and their occupancy.
// Invariant (spec.md §3): every entry belongs to exactly one of
// {full, partial}; full ⇒ no free slots, partial ⇒ >= 1 free slot.
type Entry struct {
	page     *memphys.PageFrame
	slotSize uintptr
	capacity int
	held     map[VirtualAddress]bool
	nextSlot int
	free     []int
}

func newEntry(page *memphys.PageFrame, slotSize uintptr, capacity int) *Entry {
	return &Entry{page: page, slotSize: slotSize, capacity: capacity, held: make(map[VirtualAddress]bool, capacity)}
}

// IsFull reports whether every slot in this entry is occupied.
func (e *Entry) IsFull() bool { return len(e.held) >= e.capacity }

// IsEmpty reports whether no slot in this entry is occupied.
func (e *Entry) IsEmpty() bool { return len(e.held) == 0 }

// Holds reports whether addr names a slot of this entry.
func (e *Entry) Holds(addr VirtualAddress) bool { return e.held[addr] }

// occupy claims a free slot, returning its address. Slots released by
// release are reused from e.free before any untouched slot past
// nextSlot is handed out, so repeated occupy/release churn on one
// entry never runs past its capacity.
func (e *Entry) occupy() (VirtualAddress, error) {
	if e.IsFull() {
		return 0, kerr.Wrap(kerr.InvalidArgument, "slab entry has no free slot")
	}
	var slot int
	if n := len(e.free); n > 0 {
		slot = e.free[n-1]
		e.free = e.free[:n-1]
	} else {
		slot = e.nextSlot
		e.nextSlot++
	}
	addr := e.page.PhysicalAddress() + uintptr(slot)*e.slotSize
	e.held[addr] = true
	return addr, nil
}

func (e *Entry) release(addr VirtualAddress) {
	if !e.held[addr] {
		return
	}
	delete(e.held, addr)
	slot := int((addr - e.page.PhysicalAddress()) / e.slotSize)
	e.free = append(e.free, slot)
}

// Head names a size class and holds its full/partial entry lists
// (spec.md §3 Slab Head).
type Head struct {
	mu      sync.Mutex
	name    string
	full    *list.List // of *Entry
	partial *list.List // of *Entry
}

func newHead(name string) *Head {
	return &Head{name: name, full: list.New(), partial: list.New()}
}

// Name returns this head's size-class or type name.
func (h *Head) Name() string { return h.name }

// occupancy returns (entriesFull, entriesPartial), for diagnostics and
// the round-trip law tests (spec.md §8: "leaves the owning head's
// occupancy unchanged").
func (h *Head) occupancy() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.full.Len(), h.partial.Len()
}

// Tree maps slab names to heads (spec.md §4.2 "slab tree"), created
// lazily per name on first use.
type Tree struct {
	mu    sync.Mutex
	heads map[string]*Head
}

func newTree() *Tree {
	return &Tree{heads: make(map[string]*Head)}
}

func (t *Tree) headFor(name string) *Head {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.heads[name]
	if !ok {
		h = newHead(name)
		t.heads[name] = h
	}
	return h
}

// Allocator is the slab allocator proper: a Tree of named heads backed
// by a PageSource for growing entries on demand.
type Allocator struct {
	tree  *Tree
	pages PageSource
}

// NewAllocator builds a slab allocator drawing backing pages from src.
func NewAllocator(src PageSource) *Allocator {
	return &Allocator{tree: newTree(), pages: src}
}

// Occupancy exposes a named head's full/partial entry counts, for
// tests asserting the round-trip law.
func (a *Allocator) Occupancy(name string) (full, partial int) {
	return a.tree.headFor(name).occupancy()
}

// AllocNamed allocates one slot of slotSize bytes from the named head,
// growing it with a fresh page (capacity slotsPerPage) if every
// existing entry is full.
func (a *Allocator) AllocNamed(name string, slotSize uintptr, slotsPerPage int) (VirtualAddress, *Head, error) {
	h := a.tree.headFor(name)

	h.mu.Lock()
	defer h.mu.Unlock()

	e := h.partial.Front()
	if e == nil {
		entry, err := a.grow(slotSize, slotsPerPage)
		if err != nil {
			return 0, nil, err
		}
		e = h.partial.PushBack(entry)
	}

	entry := e.Value.(*Entry)
	addr, err := entry.occupy()
	if err != nil {
		return 0, nil, err
	}
	if entry.IsFull() {
		h.partial.Remove(e)
		h.full.PushBack(entry)
	}
	return addr, h, nil
}

func (a *Allocator) grow(slotSize uintptr, slotsPerPage int) (*Entry, error) {
	pages, err := a.pages.AllocPages(1)
	if err != nil {
		return nil, err
	}
	return newEntry(pages[0], slotSize, slotsPerPage), nil
}

// Dealloc releases the slot at addr, migrating its entry from full to
// partial as needed (spec.md §4.2). Scans full then partial, per spec.
// An entry left empty after release is opportunistically handed back to
// the page allocator rather than held idle (spec.md §4.2).
func (h *Head) dealloc(addr VirtualAddress, pages PageSource) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for e := h.full.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*Entry)
		if entry.Holds(addr) {
			entry.release(addr)
			h.full.Remove(e)
			if entry.IsEmpty() {
				pages.DeallocPages([]*memphys.PageFrame{entry.page})
			} else {
				h.partial.PushBack(entry)
			}
			return true
		}
	}
	for e := h.partial.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*Entry)
		if entry.Holds(addr) {
			entry.release(addr)
			if entry.IsEmpty() {
				h.partial.Remove(e)
				pages.DeallocPages([]*memphys.PageFrame{entry.page})
			}
			return true
		}
	}
	return false
}

// DeallocNamed releases addr from the named head.
func (a *Allocator) DeallocNamed(name string, addr VirtualAddress) error {
	h := a.tree.headFor(name)
	if !h.dealloc(addr, a.pages) {
		return kerr.Wrap(kerr.InvalidArgument, "address not owned by any entry of "+name)
	}
	return nil
}

// SizeClassName is exported so ad-hoc small allocations can pick their
// generic head name without implementing Slab.
func SizeClassName(size uintptr) string { return sizeClassName(size) }
