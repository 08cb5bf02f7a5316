// Package objects implements the uniform, reference-countable
// parent/child object graph spec.md §3 describes: every kernel-visible
// entity (queues, events, mutexes, work items, inodes, super blocks...)
// embeds an Object header and is named by a Handle equal to the
// object's address. Grounded on pet_os's kernel/src/object/{mod,handle,
// runtime}.rs.
package objects

import (
	"container/list"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Kind tags what an Object actually is. Kept open (not a closed enum)
// since drivers may register their own work/queue kinds, the way
// pet_os's object::Kind enum is extended per subsystem.
type Kind string

const (
	KindQueue      Kind = "queue"
	KindEvent      Kind = "event"
	KindMutex      Kind = "mutex"
	KindBlockWork  Kind = "block_work"
	KindFileWork   Kind = "file_work"
	KindFsWork     Kind = "fs_work"
	KindIrqEvent   Kind = "irq_event"
	KindIndexNode  Kind = "index_node"
	KindSuperBlock Kind = "super_block"
	KindPathNode   Kind = "path_node"
	KindMountPoint  Kind = "mount_point"
	KindFile        Kind = "file"
	KindTask        Kind = "task"
	KindProcess     Kind = "process"
	KindModule      Kind = "module"
	KindBlockDevice Kind = "block_device"
	KindCharDevice  Kind = "char_device"
	KindFsDriver    Kind = "fs_driver"
)

// Status is an Object's lifecycle state (spec.md §3).
type Status int32

const (
	StatusIdle Status = iota
	StatusRunning
	StatusBlocked
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusBlocked:
		return "blocked"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Handle is an opaque word-sized identifier equal to the virtual
// address of the Object it names (spec.md §3). Typed handles
// (TypedHandle[T]) add a compile-time phantom kind tag over this raw
// form.
type Handle uintptr

// Zero is the null handle: no object, no parent.
const Zero Handle = 0

// TypedHandle adds a phantom type discriminator to a raw Handle so
// callers cannot pass a queue handle where an event handle is
// expected without an explicit cast, matching pet_os's
// object::Handle<T> wrapper.
type TypedHandle[T any] struct {
	Handle
}

// Object is the header every kernel-visible entity embeds by value.
// A Handle is the address of this header, computed from the embedding
// container's heap allocation (the Go analogue of pet_os's
// container_of! offset arithmetic).
type Object struct {
	mu       sync.Mutex
	kind     Kind
	status   atomic.Int32
	useCount atomic.Int32
	parent   Handle
	children list.List // of Handle

	// onRelease, if set through SetOnRelease, is invoked exactly once,
	// when useCount drops to zero. internal/slab does not install one;
	// objects never imports slab.
	onRelease func()

	// onCancel, if set, lets a module-crash/unload sweep (internal/
	// dispatch.Registry.Unregister) wake this object's waiters with an
	// error without needing to know its concrete type. Queues wire it
	// to Close; work items wire it to Complete.
	onCancel func(error)
}

// Init prepares a freshly allocated Object with use-count 1. Callers
// must embed Object by value in their container, call Init, and then
// register it with a Registry before publishing its Handle.
func (o *Object) Init(kind Kind, parent Handle) {
	o.kind = kind
	o.parent = parent
	o.useCount.Store(1)
	o.status.Store(int32(StatusIdle))
}

// Handle returns this Object's address as its Handle. Valid only once
// the Object is heap-allocated (embedded in a container obtained via
// new/&T{}) and never moved — Go does not relocate heap objects once
// a pointer to them has escaped, the same assumption pet_os makes
// about its own non-moving allocator.
func (o *Object) Handle() Handle {
	return Handle(uintptr(unsafe.Pointer(o)))
}

// SetOnRelease installs the callback invoked when the use-count reaches
// zero. Call it right after registering the object.
func (o *Object) SetOnRelease(f func()) {
	o.mu.Lock()
	o.onRelease = f
	o.mu.Unlock()
}

// SetOnCancel installs the callback a module-crash/unload sweep invokes
// via Cancel to wake this object's waiters with an error, without the
// sweep needing to know the object's concrete type.
func (o *Object) SetOnCancel(f func(error)) {
	o.mu.Lock()
	o.onCancel = f
	o.mu.Unlock()
}

// Cancel invokes the installed onCancel callback, if any. A no-op for
// objects that never wired one (most Kinds don't need it).
func (o *Object) Cancel(err error) {
	o.mu.Lock()
	f := o.onCancel
	o.mu.Unlock()
	if f != nil {
		f(err)
	}
}

func (o *Object) Kind() Kind     { return o.kind }
func (o *Object) Parent() Handle { return o.parent }

func (o *Object) Status() Status {
	return Status(o.status.Load())
}

func (o *Object) SetStatus(s Status) {
	o.status.Store(int32(s))
}

// UseCount returns the current reference count (invariant 1, spec.md §8).
func (o *Object) UseCount() int32 {
	return o.useCount.Load()
}

// Clone increments the use-count, the hosted analogue of CloneHandle.
func (o *Object) Clone() {
	o.useCount.Add(1)
}

// addChild links h as a child of o; called by Registry.Register when h
// has a non-zero parent.
func (o *Object) addChild(h Handle) {
	o.mu.Lock()
	o.children.PushBack(h)
	o.mu.Unlock()
}

func (o *Object) removeChild(h Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for e := o.children.Front(); e != nil; e = e.Next() {
		if e.Value.(Handle) == h {
			o.children.Remove(e)
			return
		}
	}
}

// Children returns a snapshot of this object's live child handles.
func (o *Object) Children() []Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Handle, 0, o.children.Len())
	for e := o.children.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Handle))
	}
	return out
}

// Drop decrements the use-count; at zero it detaches from its parent's
// child list, detaches and decrements all of its own live children, and
// invokes the release callback (FreeKernelObject). Returns true if this
// call actually freed the object.
func (o *Object) Drop(reg *Registry) bool {
	if o.useCount.Add(-1) > 0 {
		return false
	}

	self := o.Handle()

	o.mu.Lock()
	children := make([]Handle, 0, o.children.Len())
	for e := o.children.Front(); e != nil; e = e.Next() {
		children = append(children, e.Value.(Handle))
	}
	o.children.Init()
	release := o.onRelease
	o.mu.Unlock()

	for _, ch := range children {
		if child, ok := reg.Lookup(ch); ok {
			child.Drop(reg)
		}
	}

	if o.parent != Zero {
		if p, ok := reg.Lookup(o.parent); ok {
			p.removeChild(self)
		}
	}

	reg.unregister(self)

	if release != nil {
		release()
	}

	return true
}
