package syscall

import (
	"github.com/paval-belarus/moskit/internal/dispatch"
	"github.com/paval-belarus/moskit/internal/kbuf"
	"github.com/paval-belarus/moskit/internal/klog"
	"github.com/paval-belarus/moskit/internal/ksync"
	"github.com/paval-belarus/moskit/internal/memvirt"
	"github.com/paval-belarus/moskit/internal/objects"
	"github.com/paval-belarus/moskit/internal/task"
	"github.com/paval-belarus/moskit/internal/vfs"
	"go.uber.org/zap"
)

// World bundles the subsystem handles every syscall needs. One World
// is constructed once at boot by internal/kernel and threaded through
// every call, rather than referenced as a hidden global (spec.md §9
// "model them as modules with explicit init(&mut world)").
type World struct {
	Objects   *objects.Registry
	Scheduler *task.Scheduler
	Modules   *dispatch.Registry
	Log       *klog.Logger
}

// PrintK writes a kernel log line attributed to the calling task
// (spec.md §6 PrintK).
func PrintK(w *World, t *task.Task, msg string) Status {
	name := "?"
	if t != nil {
		name = t.Name
	}
	if w.Log != nil {
		w.Log.Info(msg, zap.String("task", name))
	}
	return StatusOK
}

// SpawnTask creates a new task at the given priority level running fn
// (spec.md §6 SpawnTask). Level is one of task.Idle()/User(n)/
// Module(n)/Kernel().
func SpawnTask(w *World, level int, name string, fn func(*task.Task)) (objects.Handle, Status) {
	t := w.Scheduler.Spawn(level, name, fn)
	return t.Handle(), StatusOK
}

// TerminateCurrentTask retires the calling task (spec.md §6
// TerminateCurrentTask). Like a real exit() syscall, it does not
// return to the caller in any meaningful sense: the task's goroutine
// is never scheduled again after this call.
func TerminateCurrentTask(w *World, t *task.Task) Status {
	w.Scheduler.Exit(t)
	return StatusOK
}

// RegBlockDevice registers a block device owned by module (spec.md §6
// RegBlockDevice).
func RegBlockDevice(w *World, module objects.Handle, name string, sectorSize, queueCapacity int) (*dispatch.BlockDevice, Status) {
	dev, err := w.Modules.RegisterBlockDevice(module, name, sectorSize, queueCapacity)
	return dev, FromError(err)
}

// RegCharDevice registers a character device owned by module (spec.md
// §6 RegCharDevice).
func RegCharDevice(w *World, module objects.Handle, name string, queueCapacity int) (*dispatch.CharDevice, Status) {
	dev, err := w.Modules.RegisterCharDevice(module, name, queueCapacity)
	return dev, FromError(err)
}

// RegFs registers a filesystem driver owned by module (spec.md §6
// RegFs).
func RegFs(w *World, module objects.Handle, name string, queueCapacity int) (*dispatch.FsDriver, Status) {
	fs, err := w.Modules.RegisterFS(module, name, queueCapacity)
	return fs, FromError(err)
}

// MountDevFs mounts a registered filesystem driver at path, creating
// its vfs.SuperBlock and a vfs.MountPoint bound to the driver's
// FsRequest queue (spec.md §6 MountDevFs).
func MountDevFs(w *World, fs *dispatch.FsDriver, path string, parent objects.Handle) (*vfs.MountPoint, Status) {
	sb := vfs.NewSuperBlock(w.Objects, fs.Name, "dev", fs.Queue)
	mp := vfs.NewMountPoint(w.Objects, sb.Handle(), parent, path)
	return mp, StatusOK
}

// IoOperation performs a read, write, or ioctl through an open file's
// inherited operations table (spec.md §6 IoOperation).
func IoOperation(f *vfs.File, op vfs.FileOp, buf []byte, request, arg uintptr) (uintptr, Status) {
	switch op {
	case vfs.FileRead:
		n, err := f.Read(buf)
		return uintptr(n), FromError(err)
	case vfs.FileWrite:
		n, err := f.Write(buf)
		return uintptr(n), FromError(err)
	case vfs.FileIoctl:
		if f.Ops.Ioctl == nil {
			return 0, StatusNotSupported
		}
		result, err := f.Ops.Ioctl(f, request, arg)
		return result, FromError(err)
	default:
		return 0, StatusInvalidArgument
	}
}

// MemRemap exposes a physical range into marker's user half at virtual
// (spec.md §6 MemRemap), e.g. for a driver module mapping an MMIO
// region or framebuffer into its own address space.
func MemRemap(marker *memvirt.PageMarker, physical, virtual uintptr, length int, flags memvirt.Flags) Status {
	return FromError(marker.Remap(physical, virtual, length, flags))
}

// QueueBlockingGet blocks the calling task until an item is available
// on q, then returns it (spec.md §6 QueueBlockingGet). Routed through
// Scheduler.BlockOn so the task's state reflects Blocked(q.Handle())
// for the duration, exactly like every other suspension point.
func QueueBlockingGet[T any](w *World, t *task.Task, q *ksync.Queue[T]) (T, Status) {
	var (
		result T
		err    error
	)
	w.Scheduler.BlockOn(t, q.Handle(), func() { result, err = q.BlockingPop() })
	return result, FromError(err)
}

// EventNew allocates a new Event (spec.md §6 EventNew).
func EventNew(w *World, parent objects.Handle) *ksync.Event {
	return ksync.NewEvent(w.Objects, parent)
}

// EventBlock blocks the calling task on e until notified (spec.md §6
// EventBlock).
func EventBlock(w *World, t *task.Task, e *ksync.Event) Status {
	w.Scheduler.BlockOn(t, e.Handle(), e.Wait)
	return StatusOK
}

// EventNotifyOne wakes exactly one waiter on e, FIFO order (spec.md §6
// EventNotifyOne).
func EventNotifyOne(e *ksync.Event) Status {
	e.NotifyOne()
	return StatusOK
}

// EventNotifyAll wakes every waiter on e (spec.md §6 EventNotifyAll).
func EventNotifyAll(e *ksync.Event) Status {
	e.NotifyAll()
	return StatusOK
}

// MutexNew allocates a new, unheld Mutex (spec.md §6 MutexNew).
func MutexNew(w *World, parent objects.Handle) *ksync.Mutex {
	return ksync.NewMutex(w.Objects, parent)
}

// MutexAcquire blocks the calling task until it owns m (spec.md §6
// MutexAcquire), routed through Scheduler.BlockOn like every other
// suspension point. BlockOn always hands the turnstile on and re-queues
// the task, even when m is uncontested; m.Acquire itself only blocks
// the goroutine on contention.
func MutexAcquire(w *World, t *task.Task, m *ksync.Mutex) Status {
	w.Scheduler.BlockOn(t, m.Handle(), m.Acquire)
	return StatusOK
}

// MutexRelease releases m, transferring ownership directly to the
// longest-waiting task if one exists (spec.md §6 MutexRelease).
func MutexRelease(m *ksync.Mutex) Status {
	m.Release()
	return StatusOK
}

// CloneHandle increments h's use-count (spec.md §6 CloneHandle).
func CloneHandle(w *World, h objects.Handle) (objects.Handle, Status) {
	nh, ok := w.Objects.CloneHandle(h)
	if !ok {
		return objects.Zero, StatusInvalidHandle
	}
	return nh, StatusOK
}

// FreeKernelObject drops one reference to h (spec.md §6
// FreeKernelObject).
func FreeKernelObject(w *World, h objects.Handle) Status {
	if !w.Objects.FreeKernelObject(h) {
		return StatusInvalidHandle
	}
	return StatusOK
}

// GetModuleInfo looks up a loaded module by name (spec.md §6
// GetModuleInfo).
func GetModuleInfo(w *World, name string) (*dispatch.ModuleInfo, Status) {
	m, ok := w.Modules.ModuleByName(name)
	if !ok {
		return nil, StatusNotFound
	}
	return m, StatusOK
}

// KernelCopy copies from a kernel-owned buffer into a caller-claimed
// user buffer, validated against marker (spec.md §6 KernelCopy).
func KernelCopy(marker *memvirt.PageMarker, dst kbuf.UserBufMut, src []byte) (uintptr, Status) {
	n, err := kbuf.KernelCopy(marker, dst, src)
	return uintptr(n), FromError(err)
}
