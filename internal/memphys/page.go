// Package memphys implements the physical-memory layer of spec.md §3/§4.1:
// one PageFrame record per physical page, and a buddy-style free-list
// allocator over them. Grounded on the teacher's page.go (page metadata,
// free list) and pet_os's kernel/src/memory/allocators/physical/{buddy,
// page}.rs for the split/merge algorithm and MAX_BUDDY_BATCH_SIZE naming.
package memphys

import (
	"sync/atomic"

	"github.com/paval-belarus/moskit/internal/bitfield"
)

// PageSize is the hosted page granularity (4 KiB, matching x86 non-PAE
// paging).
const PageSize = 4096

// PageFrameFlags packs the flag bits spec.md §3 names for a page frame
// (kernel/user/reserved/used), generalized from the teacher's PageFlags
// type via internal/bitfield.
type PageFrameFlags struct {
	Used     bool   `bitfield:",1"`
	Kernel   bool   `bitfield:",1"`
	UserMode bool   `bitfield:",1"`
	Reserved bool   `bitfield:",1"`
	Spare    uint32 `bitfield:",28"`
}

// Pack returns the 32-bit packed representation of f.
func (f PageFrameFlags) Pack() uint32 {
	packed, err := bitfield.Pack(f, &bitfield.Config{NumBits: 32})
	if err != nil {
		// Every field here fits by construction; a packing error would
		// mean the flag set itself is malformed.
		panic(err)
	}
	return uint32(packed)
}

// PageFrame is the per-physical-page metadata record (spec.md §3).
// Created once at boot by the capture allocator and never destroyed.
// Flags/Index are mutated only while the owning Allocator's lock is
// held; UseCount is atomic because internal/memvirt's page markers
// bump it independently of the physical allocator's lock whenever a
// frame gains or loses a virtual mapping (spec.md §4.3 "share_entries").
type PageFrame struct {
	Index    uint32
	UseCount atomic.Int32
	Flags    PageFrameFlags
}

// IsFree reports whether this frame currently belongs to no allocation.
func (p *PageFrame) IsFree() bool {
	return !p.Flags.Used
}

// PhysicalAddress returns the frame's physical base address.
func (p *PageFrame) PhysicalAddress() uintptr {
	return uintptr(p.Index) * PageSize
}
