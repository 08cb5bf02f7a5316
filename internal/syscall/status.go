// Package syscall implements spec.md §6's fixed syscall ABI as plain Go
// functions taking the calling *task.Task plus typed arguments — the
// hosted "int 0x80" boundary is the ordinary Go function call
// (internal/kernel builds the World they take), since nothing in
// this process ever runs in ring 0. Grounded on pet_os's
// kernel_types/src/syscall.rs for the request-code list (spec.md §6)
// and on the teacher's mazboot/golang/main/syscall.go, which implements
// each syscall as its own SyscallXxx function (SyscallRead,
// SyscallOpenat, SyscallMmap, ...) rather than one table-driven switch
// — moskit follows that per-request-function shape.
package syscall

import (
	"github.com/paval-belarus/moskit/internal/kerr"
)

// Status is the fixed SyscallError code set spec.md §7 names.
type Status int32

const (
	StatusOK Status = iota
	StatusOutOfMemory
	StatusNotSupported
	StatusNotFound
	StatusInvalidHandle
	StatusInvalidArgument
	StatusQueueFull
	StatusPermissionDenied
	StatusIoFailed
	StatusAlreadyExists
	StatusUnknown
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusOutOfMemory:
		return "out_of_memory"
	case StatusNotSupported:
		return "not_supported"
	case StatusNotFound:
		return "not_found"
	case StatusInvalidHandle:
		return "invalid_handle"
	case StatusInvalidArgument:
		return "invalid_argument"
	case StatusQueueFull:
		return "queue_full"
	case StatusPermissionDenied:
		return "permission_denied"
	case StatusIoFailed:
		return "io_failed"
	case StatusAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// FromError maps an internal error onto its fixed Status code (spec.md
// §7 "Syscalls map internal errors to a fixed set of SyscallError
// codes"). A nil err maps to StatusOK.
func FromError(err error) Status {
	if err == nil {
		return StatusOK
	}
	switch {
	case kerr.Is(err, kerr.OutOfMemory):
		return StatusOutOfMemory
	case kerr.Is(err, kerr.NotSupported):
		return StatusNotSupported
	case kerr.Is(err, kerr.NotFound):
		return StatusNotFound
	case kerr.Is(err, kerr.InvalidHandle):
		return StatusInvalidHandle
	case kerr.Is(err, kerr.InvalidArgument):
		return StatusInvalidArgument
	case kerr.Is(err, kerr.QueueFull):
		return StatusQueueFull
	case kerr.Is(err, kerr.PermissionDenied):
		return StatusPermissionDenied
	case kerr.Is(err, kerr.IoFailed):
		return StatusIoFailed
	case kerr.Is(err, kerr.AlreadyExists):
		return StatusAlreadyExists
	default:
		return StatusUnknown
	}
}
