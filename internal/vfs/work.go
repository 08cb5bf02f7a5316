// Package vfs implements spec.md §3/§4.6: the classical super-block /
// index-node / path-node / mount-point / file model, plus the
// BlockWork/FileWork/FsRequest-FsResponse work items that carry
// requests between a syscall caller and a driver module's task.
//
// Grounded on pet_os's kernel/src/fs/* and kernel_types/src/fs/* for
// the object shapes, and on hanwen-go-fuse's fs package for the
// idiomatic Go expression of path-node caching and lookup-miss-issues-
// a-request — moskit is not a FUSE filesystem, but the
// inode/path-cache/lookup pattern is identical in shape.
package vfs

import (
	"github.com/paval-belarus/moskit/internal/ksync"
	"github.com/paval-belarus/moskit/internal/objects"
)

// workBase is the producer/consumer handshake every work item shares
// (spec.md §3 "Each work item has exactly one producer ... the
// producer blocks on the work until response is set"). It is not a
// kind of its own; concrete work types embed it alongside their own
// payload fields.
type workBase struct {
	objects.Object
	done *ksync.Event
	err  error
}

func initWorkBase(w *workBase, reg *objects.Registry, kind objects.Kind) {
	w.Object.Init(kind, objects.Zero)
	reg.Register(&w.Object)
	w.done = ksync.NewEvent(reg, w.Object.Handle())
	// Wires the module unload sweep (internal/dispatch.Registry.
	// Unregister calls Cancel on every item still queued on the
	// module's devices) to complete this item with the given error
	// instead of leaving its producer blocked forever.
	w.Object.SetOnCancel(w.Complete)
}

// Wait blocks the calling goroutine until Complete is called. Callers
// running inside a scheduled task pass this to
// (*task.Scheduler).BlockOn rather than calling it directly, so the
// task's state reflects Blocked(handle) for the duration.
func (w *workBase) Wait() { w.done.Wait() }

// Complete marks the work finished, records err (nil on success), and
// wakes the producer. Called exactly once, by the consuming driver
// module task — or, if the owning module crashes or is unloaded first,
// by the Cancel sweep (see initWorkBase), with kerr.InvalidHandle.
// A second call is a no-op: the first one already woke the producer.
func (w *workBase) Complete(err error) {
	if w.Object.Status() == objects.StatusCompleted {
		return
	}
	w.err = err
	w.Object.SetStatus(objects.StatusCompleted)
	w.done.NotifyOne()
}

// Err reports the result recorded by Complete; valid only after Wait
// returns.
func (w *workBase) Err() error { return w.err }

// BlockOp names a BlockWork's operation (spec.md §3 "read sector /
// write sector / passthrough").
type BlockOp int

const (
	BlockRead BlockOp = iota
	BlockWrite
	BlockPassthrough
)

// BlockWork is a block-device request/response pair bound to a
// device's queue (spec.md §3 BlockWork, §4.6 read/write path).
type BlockWork struct {
	workBase
	Op     BlockOp
	Sector uint64
	Buffer []byte // caller-owned; the module reads into or writes from it
}

// NewBlockWork allocates a pending BlockWork.
func NewBlockWork(reg *objects.Registry, op BlockOp, sector uint64, buf []byte) *BlockWork {
	w := &BlockWork{Op: op, Sector: sector, Buffer: buf}
	initWorkBase(&w.workBase, reg, objects.KindBlockWork)
	return w
}

// FileOp names a FileWork's operation (spec.md §3 "read / write / ioctl
// on an open file").
type FileOp int

const (
	FileRead FileOp = iota
	FileWrite
	FileIoctl
)

// FileWork is a file-level request/response pair (spec.md §3 FileWork).
type FileWork struct {
	workBase
	Op      FileOp
	Inode   objects.Handle
	Offset  int64
	Buffer  []byte
	Request uintptr // ioctl request code
	Arg     uintptr // ioctl argument
	Result  uintptr // ioctl result, set by Complete's caller before Complete
	N       int     // bytes actually read/written, set before Complete
}

// NewFileWork allocates a pending FileWork.
func NewFileWork(reg *objects.Registry, op FileOp, inode objects.Handle) *FileWork {
	w := &FileWork{Op: op, Inode: inode}
	initWorkBase(&w.workBase, reg, objects.KindFileWork)
	return w
}

// FsOp names an FsRequest's operation (spec.md §3 "mount / unmount /
// lookup / create / flush / destroy on a super-block").
type FsOp int

const (
	FsMount FsOp = iota
	FsUnmount
	FsLookupNode
	FsCreateFile
	FsCreateDirectory
	FsFlushNode
	FsDestroyNode
)

// FsRequest/FsResponse is the canonical FsWork shape this spec adopts
// (see DESIGN.md's Open Question resolution): super-block-level
// operations, not the file-level Read/Write/Open/Close enum that
// FileWork already covers.
type FsRequest struct {
	workBase
	Op         FsOp
	SuperBlock objects.Handle
	Parent     objects.Handle // parent index node, for LookupNode/CreateFile/CreateDirectory
	Name       string

	// Response, populated by the module task before Complete.
	Inode objects.Handle
}

// NewFsRequest allocates a pending FsRequest.
func NewFsRequest(reg *objects.Registry, op FsOp, sb objects.Handle) *FsRequest {
	w := &FsRequest{Op: op, SuperBlock: sb}
	initWorkBase(&w.workBase, reg, objects.KindFsWork)
	return w
}
