package memphys

import "github.com/paval-belarus/moskit/internal/kerr"

// MemRegion is one entry of the multiboot/BIOS memory map, in bytes.
// The boot-time multiboot parser itself is out of scope (spec.md §1);
// this is the interface boundary it hands regions across.
type MemRegion struct {
	Start  uint64
	Length uint64
}

// CaptureAllocator is the one-shot boot allocator of spec.md §4.1: it
// consumes the multiboot memory map, excises the ranges occupied by the
// kernel image and its own bookkeeping, and seeds the buddy lists with
// whatever remains. Grounded on pet_os's src/memory/allocators/kernel.rs
// (capture-to-buddy handoff) and kernel/src/boot/mod.rs.
type CaptureAllocator struct {
	regions      []MemRegion
	kernelStart  uint64
	kernelLength uint64
	maxOrder     int
}

// maxBootRegions bounds the fixed-size boot record table a real
// freestanding kernel would reserve on its own stack/capture buffer
// before any heap exists.
const maxBootRegions = 64

// NewCaptureAllocator validates the memory map against the fixed-size
// boot record table. Open Question resolved (spec.md §9): pet_os's
// parse_grub_args returns BootStatus::InvalidBootAllocator rather than
// panicking when the map holds more areas than the table can hold, so
// this constructor returns kerr.InvalidArgument instead of panicking —
// the boot sequence aborts cleanly and the caller decides what to do.
func NewCaptureAllocator(regions []MemRegion, kernelStart, kernelLength uint64, maxOrder int) (*CaptureAllocator, error) {
	if len(regions) > maxBootRegions {
		return nil, kerr.Wrap(kerr.InvalidArgument, "memory map exceeds boot allocator capacity")
	}
	return &CaptureAllocator{
		regions:      regions,
		kernelStart:  kernelStart,
		kernelLength: kernelLength,
		maxOrder:     maxOrder,
	}, nil
}

// Finish builds the physical-page frame database and seeds the buddy
// free lists with every page not occupied by the kernel image.
func (c *CaptureAllocator) Finish() (*Allocator, error) {
	var highest uint64
	for _, r := range c.regions {
		if end := r.Start + r.Length; end > highest {
			highest = end
		}
	}
	if highest == 0 {
		return nil, kerr.Wrap(kerr.InvalidArgument, "empty memory map")
	}

	totalFrames := uint32((highest + PageSize - 1) / PageSize)
	a := NewAllocator(totalFrames, c.maxOrder)

	kernelStartFrame := uint32(c.kernelStart / PageSize)
	kernelEndFrame := uint32((c.kernelStart + c.kernelLength + PageSize - 1) / PageSize)

	for _, r := range c.regions {
		startFrame := uint32(r.Start / PageSize)
		endFrame := uint32((r.Start + r.Length) / PageSize)
		c.seedRange(a, startFrame, endFrame, kernelStartFrame, kernelEndFrame)
	}

	return a, nil
}

// seedRange marks every page in [start, end) as free except the ones
// overlapping the kernel image, splitting the run into the largest
// power-of-two-aligned blocks the buddy free lists can hold.
func (c *CaptureAllocator) seedRange(a *Allocator, start, end, kernelStart, kernelEnd uint32) {
	idx := start
	for idx < end {
		if idx >= kernelStart && idx < kernelEnd {
			idx++
			continue
		}
		// Largest order whose aligned block starting at idx fits
		// inside both the remaining range and before the kernel image.
		limit := end
		if idx < kernelStart && kernelStart < limit {
			limit = kernelStart
		}

		order := 0
		for {
			next := order + 1
			blockSize := uint32(1) << uint(next)
			if next > a.maxOrder || idx%blockSize != 0 || idx+blockSize > limit {
				break
			}
			order = next
		}

		a.seedFree(idx, order)
		idx += 1 << uint(order)
	}
}
