// Package kbuf implements spec.md §4.7's kernel/user buffer primitives:
// a cursor-advancing KernelBuf/KernelBufMut for decoding requests, and
// UserBuf/UserBufMut handles the KernelCopy syscall validates against a
// memvirt.PageMarker's mapped ranges before copying, standing in for
// real page-fault vectoring on a host that has no ring-0 access.
// Grounded on pet_os's kernel-lib/src/object/kernel_buf/kernel.rs for
// the cursor shape.
package kbuf

import (
	"github.com/paval-belarus/moskit/internal/kerr"
	"github.com/paval-belarus/moskit/internal/memvirt"
)

// KernelBuf is a read-only cursor over a kernel-owned byte region,
// consumed moving forward as a request is decoded.
type KernelBuf struct {
	data   []byte
	cursor int
}

// NewKernelBuf wraps data for sequential consumption.
func NewKernelBuf(data []byte) *KernelBuf { return &KernelBuf{data: data} }

// MoveBytes returns the next n bytes and advances the cursor past
// them, reporting kerr.InvalidArgument if fewer than n bytes remain.
func (b *KernelBuf) MoveBytes(n int) ([]byte, error) {
	if n < 0 || b.cursor+n > len(b.data) {
		return nil, kerr.Wrap(kerr.InvalidArgument, "kernel buffer cursor out of range")
	}
	out := b.data[b.cursor : b.cursor+n]
	b.cursor += n
	return out, nil
}

// Remaining reports how many unconsumed bytes are left.
func (b *KernelBuf) Remaining() int { return len(b.data) - b.cursor }

// KernelBufMut is KernelBuf's write-side counterpart: callers reserve
// space to encode a response into rather than decode one from.
type KernelBufMut struct {
	data   []byte
	cursor int
}

// NewKernelBufMut wraps data for sequential production.
func NewKernelBufMut(data []byte) *KernelBufMut { return &KernelBufMut{data: data} }

// MoveBytes returns the next n bytes as a writable window and advances
// the cursor past them.
func (b *KernelBufMut) MoveBytes(n int) ([]byte, error) {
	if n < 0 || b.cursor+n > len(b.data) {
		return nil, kerr.Wrap(kerr.InvalidArgument, "kernel buffer cursor out of range")
	}
	out := b.data[b.cursor : b.cursor+n]
	b.cursor += n
	return out, nil
}

// Remaining reports how much writable space is left.
func (b *KernelBufMut) Remaining() int { return len(b.data) - b.cursor }

// UserBuf names a caller-claimed (virtual, length) range backed by
// bytes the caller already holds as a Go slice — there is no real user
// address space to dereference on a hosted machine, so the "pointer"
// the syscall ABI would otherwise carry is this Go slice, and the
// (virtual, length) pair is only used to validate it against the
// process's page marker before use.
type UserBuf struct {
	Virtual uintptr
	Data    []byte
}

// UserBufMut is UserBuf's writable counterpart, for syscalls that
// write into user memory (e.g. a read() result).
type UserBufMut struct {
	Virtual uintptr
	Data    []byte
}

// validate reports whether every page in [virtual, virtual+length)
// is mapped in marker, and writable if requireWritable is set — the
// hosted analogue of the page-fault a bad user pointer would raise on
// real hardware.
func validate(marker *memvirt.PageMarker, virtual uintptr, length int, requireWritable bool) error {
	if length <= 0 {
		return kerr.Wrap(kerr.InvalidArgument, "zero-length user buffer")
	}
	const pageSize = 4096
	first := virtual - virtual%pageSize
	last := (virtual + uintptr(length) - 1)
	last -= last % pageSize

	for page := first; ; page += pageSize {
		_, flags, ok := marker.Translate(page)
		if !ok {
			return kerr.Wrap(kerr.InvalidArgument, "user buffer not mapped")
		}
		if requireWritable && !flags.Writable {
			return kerr.Wrap(kerr.PermissionDenied, "user buffer not writable")
		}
		if page == last {
			break
		}
	}
	return nil
}

// KernelCopy validates dst against marker (requiring a writable
// mapping) and copies src into it, the hosted implementation of
// spec.md §6's KernelCopy syscall (kernel -> user direction).
func KernelCopy(marker *memvirt.PageMarker, dst UserBufMut, src []byte) (int, error) {
	if err := validate(marker, dst.Virtual, len(dst.Data), true); err != nil {
		return 0, err
	}
	n := copy(dst.Data, src)
	return n, nil
}

// KernelCopyFromUser validates src against marker and copies it into
// dst, the user -> kernel direction (e.g. a write() syscall's payload).
func KernelCopyFromUser(marker *memvirt.PageMarker, dst []byte, src UserBuf) (int, error) {
	if err := validate(marker, src.Virtual, len(src.Data), false); err != nil {
		return 0, err
	}
	n := copy(dst, src.Data)
	return n, nil
}
