// Package memvirt implements the page marker of spec.md §4.3: the
// authoritative representation of one address space, mapping virtual
// page ranges onto physical frames with a {present, writable, user,
// write-through, cache-disabled} flag set. Grounded on the teacher's
// mmu.go (page-table bookkeeping, region mapping) and pet_os's
// kernel/src/memory/mapping.rs (MemoryMappingFlag/MemoryMappingRegion)
// and paging/directory.rs (share_entries).
package memvirt

import (
	"sync"

	"github.com/paval-belarus/moskit/internal/kerr"
	"github.com/paval-belarus/moskit/internal/memphys"
)

// Flags holds the per-page attribute bits named in spec.md §4.3, tagged
// for internal/bitfield like memphys.PageFrameFlags; nothing in this
// package packs it.
type Flags struct {
	Present       bool   `bitfield:",1"`
	Writable      bool   `bitfield:",1"`
	User          bool   `bitfield:",1"`
	WriteThrough  bool   `bitfield:",1"`
	CacheDisabled bool   `bitfield:",1"`
	Spare         uint32 `bitfield:",27"`
}

// KernelLayout is the flag set every kernel mapping installs: present,
// writable, supervisor-only (spec.md §4.3 invariant).
var KernelLayout = Flags{Present: true, Writable: true}

// UserCodeLayout is present, user-accessible, not writable.
var UserCodeLayout = Flags{Present: true, User: true}

// UserDataLayout adds Writable to UserCodeLayout.
var UserDataLayout = Flags{Present: true, User: true, Writable: true}

// pageOf computes the page-aligned number for a virtual address.
func pageOf(addr uintptr) uintptr { return addr / memphys.PageSize }

// mapping is one resident virtual page's backing.
type mapping struct {
	frame *memphys.PageFrame
	flags Flags
}

// kernelTable is the single shared set of kernel-half mappings: every
// PageMarker's top-half directory entries alias this table, so a
// kernel mapping installed once is visible from every address space
// (spec.md §4.3 "Kernel regions are shared across all page markers").
type kernelTable struct {
	mu       sync.Mutex
	mappings map[uintptr]mapping
}

var sharedKernel = &kernelTable{mappings: make(map[uintptr]mapping)}

// PageMarker is one address space: the kernel half (aliasing
// sharedKernel) plus a private user half.
type PageMarker struct {
	mu     sync.Mutex
	user   map[uintptr]mapping
	kernel *kernelTable
	pages  *memphys.Allocator
}

// New builds an empty page marker drawing frames from pages.
func New(pages *memphys.Allocator) *PageMarker {
	return &PageMarker{user: make(map[uintptr]mapping), kernel: sharedKernel, pages: pages}
}

// Region names a virtual range to map, optionally pre-bound to
// physical frames (e.g. for Remap); when Frames is nil, MapUserRange
// and MapKernelRange draw fresh frames from the allocator.
type Region struct {
	Virtual   uintptr
	PageCount int                  // used to draw fresh frames when Frames is nil
	Frames    []*memphys.PageFrame // pre-bound frames, e.g. Remap's device pages
	Flags     Flags
}

// MapUserRange installs region into this marker's user half, drawing
// fresh physical frames from the allocator when region.Frames is nil.
func (m *PageMarker) MapUserRange(region Region) error {
	region.Flags.User = true
	return m.mapRange(m.user, region)
}

// MapKernelRange installs region into the shared kernel table, visible
// from every page marker immediately (spec.md §4.3).
func (m *PageMarker) MapKernelRange(region Region) error {
	m.kernel.mu.Lock()
	defer m.kernel.mu.Unlock()
	return m.mapRangeLocked(m.kernel.mappings, region)
}

func (m *PageMarker) mapRange(table map[uintptr]mapping, region Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mapRangeLocked(table, region)
}

func (m *PageMarker) mapRangeLocked(table map[uintptr]mapping, region Region) error {
	if region.Virtual%memphys.PageSize != 0 {
		return kerr.Wrap(kerr.InvalidArgument, "virtual address not page-aligned")
	}

	frames := region.Frames
	fresh := frames == nil
	if fresh {
		if region.PageCount <= 0 {
			return kerr.Wrap(kerr.InvalidArgument, "region names no pages")
		}
		var err error
		frames, err = m.pages.AllocPages(region.PageCount)
		if err != nil {
			return err
		}
	}
	if len(frames) == 0 {
		return kerr.Wrap(kerr.InvalidArgument, "region names no pages")
	}

	page := pageOf(region.Virtual)
	for i, frame := range frames {
		entry := mapping{frame: frame, flags: region.Flags}
		entry.flags.Present = true
		table[page+uintptr(i)] = entry
		// AllocPages already set each fresh frame's use-count to 1, which
		// counts this mapping.
		if !fresh {
			frame.UseCount.Add(1)
		}
	}
	return nil
}

// Unmap removes the mapping at virtual, decrementing the backing
// frame's use-count. Reports kerr.NotFound if no mapping is present.
func (m *PageMarker) Unmap(virtual uintptr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	page := pageOf(virtual)
	entry, ok := m.user[page]
	if !ok {
		return kerr.Wrap(kerr.NotFound, "virtual page not mapped")
	}
	delete(m.user, page)
	entry.frame.UseCount.Add(-1)
	return nil
}

// Translate resolves a virtual address to its backing physical frame
// and flags, checking the user half then the shared kernel half.
func (m *PageMarker) Translate(virtual uintptr) (*memphys.PageFrame, Flags, bool) {
	page := pageOf(virtual)

	m.mu.Lock()
	entry, ok := m.user[page]
	m.mu.Unlock()
	if ok {
		return entry.frame, entry.flags, true
	}

	m.kernel.mu.Lock()
	entry, ok = m.kernel.mappings[page]
	m.kernel.mu.Unlock()
	if ok {
		return entry.frame, entry.flags, true
	}
	return nil, Flags{}, false
}

// Remap exposes the physical range [physical, physical+length) into
// this marker's user half starting at virtual, for device MMIO
// (spec.md §4.3). Unlike MapUserRange, the physical frames are not
// drawn from the allocator — they must already exist in the frame
// database — so Remap aliases them without perturbing ownership
// beyond the use-count bump every mapping performs.
func (m *PageMarker) Remap(physical, virtual uintptr, length int, flags Flags) error {
	if physical%memphys.PageSize != 0 || virtual%memphys.PageSize != 0 {
		return kerr.Wrap(kerr.InvalidArgument, "remap addresses must be page-aligned")
	}
	pageCount := (length + memphys.PageSize - 1) / memphys.PageSize
	if pageCount == 0 {
		return kerr.Wrap(kerr.InvalidArgument, "remap length must be positive")
	}

	frames := make([]*memphys.PageFrame, pageCount)
	for i := range frames {
		idx := uint32(physical/memphys.PageSize) + uint32(i)
		frames[i] = m.pages.Frame(idx)
	}

	return m.mapRange(m.user, Region{Virtual: virtual, Frames: frames, Flags: flags})
}

// SharedEntry is one mapping handed from a parent marker to a child
// during fork, naming the page, its backing frame, and its flags.
type SharedEntry struct {
	Page  uintptr
	Frame *memphys.PageFrame
	Flags Flags
}

// ShareEntries increments the use-count of every frame this marker's
// user half references and returns them so a forked address space can
// alias the same backing frames (spec.md §4.3 "share_entries").
func (m *PageMarker) ShareEntries() []SharedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	shared := make([]SharedEntry, 0, len(m.user))
	for page, entry := range m.user {
		entry.frame.UseCount.Add(1)
		shared = append(shared, SharedEntry{Page: page, Frame: entry.frame, Flags: entry.flags})
	}
	return shared
}

// AdoptShared installs entries produced by another marker's
// ShareEntries into this marker's user half (the child side of a
// fork). The use-count bump already happened in ShareEntries.
func (m *PageMarker) AdoptShared(entries []SharedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.user[e.Page] = mapping{frame: e.Frame, flags: e.Flags}
	}
}
