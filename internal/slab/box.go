package slab

import (
	"unsafe"

	"github.com/paval-belarus/moskit/internal/memphys"
)

// Box is a typed handle to one slab-allocated value, the hosted
// analogue of pet_os's SlabBox<T>: Release returns the slot instead of
// relying on a destructor running at an unpredictable time.
type Box[T any] struct {
	Value *T
	addr  VirtualAddress
	head  *Head
	alloc *Allocator
	name  string
}

// Alloc allocates a T from the head named by T's Slab implementation
// (or from a generic size class if T doesn't implement Slab),
// constructs it with init, and returns a Box owning the slot.
func Alloc[T any](a *Allocator, init func() T) (*Box[T], error) {
	var zero T
	name := slabNameFor(zero, unsafe.Sizeof(zero))
	slotSize := unsafe.Sizeof(zero)
	if slotSize == 0 {
		slotSize = 1
	}

	slotsPerPage := memphys.PageSize / int(slotSize)
	if slotsPerPage < 1 {
		slotsPerPage = 1
	}

	addr, head, err := a.AllocNamed(name, slotSize, slotsPerPage)
	if err != nil {
		return nil, err
	}

	value := new(T)
	*value = init()

	return &Box[T]{Value: value, addr: addr, head: head, alloc: a, name: name}, nil
}

// slabNameFor takes T's size from the caller: inside this function zero
// is an interface value, whose own size is not T's.
func slabNameFor(zero any, size uintptr) string {
	if named, ok := zero.(Slab); ok {
		return named.SlabName()
	}
	return SizeClassName(size)
}

// Release returns the slot to its owning entry. After Release, Value
// must not be dereferenced — this mirrors spec.md §4.2's "locate the
// owning entry by address range" dealloc path.
func (b *Box[T]) Release() error {
	b.head.dealloc(b.addr, b.alloc.pages)
	return nil
}

// Addr returns the slot's virtual address, for diagnostics.
func (b *Box[T]) Addr() VirtualAddress { return b.addr }
