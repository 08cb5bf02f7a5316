package memphys

import (
	"container/list"
	"sync"

	"github.com/paval-belarus/moskit/internal/kerr"
)

// Allocator is the buddy-batch physical-frame allocator of spec.md §4.1.
// Free lists are indexed by order 0..MaxOrder; MaxOrder caps
// MAX_BUDDY_BATCH_SIZE at 2^MaxOrder pages.
type Allocator struct {
	mu       sync.Mutex
	frames   []PageFrame
	maxOrder int

	// freeList[order] holds the head frame index of every free block
	// of size 2^order currently available, in FIFO order.
	freeList []*list.List
	// elems lets removal from freeList be O(1) by head index.
	elems map[uint32]*list.Element
	// headOrder records the order of the free block currently headed
	// by a given index, so buddy merges can confirm the buddy is a
	// free block of the same size rather than a sub-range of a larger
	// one.
	headOrder map[uint32]int
}

// NewAllocator builds an allocator with totalFrames physical pages, all
// initially unused (free). Seeding a real free-page set from a boot
// memory map is CaptureAllocator's job.
func NewAllocator(totalFrames uint32, maxOrder int) *Allocator {
	a := &Allocator{
		frames:    make([]PageFrame, totalFrames),
		maxOrder:  maxOrder,
		freeList:  make([]*list.List, maxOrder+1),
		elems:     make(map[uint32]*list.Element),
		headOrder: make(map[uint32]int),
	}
	for i := range a.frames {
		a.frames[i].Index = uint32(i)
		a.frames[i].Flags.Used = true
	}
	for i := range a.freeList {
		a.freeList[i] = list.New()
	}
	return a
}

// seedFree marks the pages [start, start+1<<order) as a single free
// block of the given order, without attempting to merge with
// neighbours. Used by CaptureAllocator while carving the initial free
// set out of the boot memory map.
func (a *Allocator) seedFree(start uint32, order int) {
	for i := uint32(0); i < 1<<uint(order); i++ {
		a.frames[start+i].Flags.Used = false
	}
	a.insertFree(order, start)
}

func (a *Allocator) insertFree(order int, head uint32) {
	e := a.freeList[order].PushBack(head)
	a.elems[head] = e
	a.headOrder[head] = order
}

func (a *Allocator) removeFree(order int, head uint32) bool {
	e, ok := a.elems[head]
	if !ok || a.headOrder[head] != order {
		return false
	}
	a.freeList[order].Remove(e)
	delete(a.elems, head)
	delete(a.headOrder, head)
	return true
}

// allocOrder pops (splitting a larger block if necessary) one free
// block of exactly the given order. Returns false if none is available.
func (a *Allocator) allocOrder(order int) (uint32, bool) {
	for o := order; o <= a.maxOrder; o++ {
		e := a.freeList[o].Front()
		if e == nil {
			continue
		}
		head := e.Value.(uint32)
		a.removeFree(o, head)

		for cur := o; cur > order; cur-- {
			half := cur - 1
			buddy := head + (1 << uint(half))
			a.insertFree(half, buddy)
		}
		return head, true
	}
	return 0, false
}

// largestFittingOrder returns the largest order whose 2^order page
// count is still <= pages, capped at maxOrder — the biggest single
// buddy batch that can contribute to the remainder of a request
// without overshooting it.
func largestFittingOrder(pages uint32, maxOrder int) int {
	order := 0
	for order < maxOrder && (uint32(1)<<uint(order+1)) <= pages {
		order++
	}
	return order
}

// AllocPages returns exactly n page frames, satisfying the request by
// combining as many largest-fitting buddy batches as needed (spec.md
// §4.1). Returns kerr.OutOfMemory with no partial allocation left
// dangling if n cannot be satisfied.
func (a *Allocator) AllocPages(n int) ([]*PageFrame, error) {
	if n <= 0 {
		return nil, kerr.Wrap(kerr.InvalidArgument, "page count must be positive")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var result []*PageFrame
	remaining := uint32(n)

	for remaining > 0 {
		order := largestFittingOrder(remaining, a.maxOrder)
		head, ok := a.allocOrderDownFrom(order)
		if !ok {
			a.freeLocked(result)
			return nil, kerr.Wrap(kerr.OutOfMemory, "physical_alloc")
		}

		size := uint32(1) << uint(order)
		for i := uint32(0); i < size; i++ {
			f := &a.frames[head+i]
			f.Flags.Used = true
			f.UseCount.Store(1)
			result = append(result, f)
		}
		remaining -= size
	}

	return result, nil
}

// allocOrderDownFrom tries order, then every smaller order, returning
// the first block it can satisfy.
func (a *Allocator) allocOrderDownFrom(order int) (uint32, bool) {
	for o := order; o >= 0; o-- {
		if head, ok := a.allocOrder(o); ok {
			return head, true
		}
	}
	return 0, false
}

// DeallocPages returns frames to the free pool, coalescing each with
// its buddy wherever both are free (spec.md §4.1). Frames may come from
// any combination of prior allocations and be freed in any grouping —
// round-trip invariant 3 (spec.md §8) holds regardless of how a caller
// batches its frees.
func (a *Allocator) DeallocPages(frames []*PageFrame) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freeLocked(frames)
}

func (a *Allocator) freeLocked(frames []*PageFrame) error {
	for _, f := range frames {
		if f == nil {
			continue
		}
		a.freeOne(f.Index)
	}
	return nil
}

func (a *Allocator) freeOne(idx uint32) {
	a.frames[idx].Flags.Used = false
	a.frames[idx].UseCount.Store(0)

	order := 0
	cur := idx

	for order < a.maxOrder {
		buddy := cur ^ (1 << uint(order))
		if int(buddy) >= len(a.frames) {
			break
		}
		if a.frames[buddy].Flags.Used {
			break
		}
		if !a.removeFree(order, buddy) {
			break
		}
		if buddy < cur {
			cur = buddy
		}
		order++
	}

	a.insertFree(order, cur)
}

// FreeFrameCount returns the total number of frames currently free,
// for the round-trip invariant tests of spec.md §8.
func (a *Allocator) FreeFrameCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	for order, l := range a.freeList {
		count += l.Len() * (1 << uint(order))
	}
	return count
}

// TotalFrames returns the size of the physical frame database.
func (a *Allocator) TotalFrames() int {
	return len(a.frames)
}

// Frame returns the frame record at index i, for tests and diagnostics.
func (a *Allocator) Frame(i uint32) *PageFrame {
	return &a.frames[i]
}
