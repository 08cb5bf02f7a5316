// Package task implements spec.md §4.4's scheduler: priority-indexed
// round-robin over ready, sleeping, and blocked tasks, with voluntary
// and timer-driven preemptive context switches.
//
// Each Task is backed by a real goroutine, gated by a single-token
// turnstile channel so that exactly one task's code runs at a time —
// the hosted stand-in for "single CPU". Blocking (sleep, block_on,
// queue.blocking_pop, event.wait, mutex.lock) hands the token to
// whichever task runs next and then genuinely parks the goroutine,
// either on its own turnstile channel or, for BlockOn, inside the
// ksync primitive itself. Grounded on the teacher's goroutine.go
// (SimpleChannel as a minimal blocking handoff, runtimeG status
// constants, timerPreempt calling runtime.Gosched() from IRQ context to
// force a switch at the next safe point — the same "preempt at the
// nearest checkpoint, not mid-instruction" relaxation this package
// makes explicit via Checkpoint) and scheduler_bootstrap.go's
// gopark/goready framing, generalized with pet_os's
// kernel/src/task/priority.rs (Idle/User(n)/Module(n)/Kernel levels)
// and scheduler/queue.rs (32 FIFOs, sleeping list ordered by wake-time).
package task

import (
	"sync/atomic"
	"time"

	"github.com/paval-belarus/moskit/internal/objects"
)

// State is a Task's scheduling state (spec.md §3 Task.status).
type State int32

const (
	StateReady State = iota
	StateRunning
	StateSleeping
	StateBlocked
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateBlocked:
		return "blocked"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Priority levels, spec.md §4.4: 32 queues, Idle at the bottom, Kernel
// at the top, User(n) and Module(n) occupying the bands between.
const (
	levelIdle   = 0
	levelKernel = 31
)

// Idle is the bottom priority level, reserved for the scheduler's own
// idle task.
func Idle() int { return levelIdle }

// User returns the level for User(n), n in 1..10.
func User(n int) int { return n }

// Module returns the level for Module(n) = 10+n, n in 1..10.
func Module(n int) int { return 10 + n }

// Kernel is the top priority level.
func Kernel() int { return levelKernel }

// sliceForLevel returns the static time-slice, in ticks, for a
// priority level (spec.md §4.4: Idle=50, User(n)=100+n, Module(n)=150+n,
// Kernel=200).
func sliceForLevel(level int) int {
	switch {
	case level == levelIdle:
		return 50
	case level >= 1 && level <= 10:
		return 100 + level
	case level >= 11 && level <= 20:
		return 150 + (level - 10)
	case level == levelKernel:
		return 200
	default:
		return 100
	}
}

// Task is the schedulable unit: preserved context (here, a parked
// goroutine instead of a saved register frame), priority, state,
// wake-time, and an optional owning Process (spec.md §3).
type Task struct {
	objects.Object

	Name     string
	priority int
	state    atomic.Int32
	wakeAt   time.Time
	blockedOn objects.Handle

	// preemptPending is set by Tick when this task's slice has expired;
	// cleared and acted on the next time the task calls Checkpoint.
	preemptPending atomic.Bool

	sliceRemaining int

	// turn is this task's turnstile: the scheduler sends exactly one
	// value whenever it is this task's turn to run, and the task's own
	// goroutine blocks receiving from it between turns.
	turn chan struct{}

	proc *Process
}

// Priority reports the task's scheduling level.
func (t *Task) Priority() int { return t.priority }

// State reports the task's current scheduling state.
func (t *Task) State() State { return State(t.state.Load()) }

// BlockedOn reports the handle this task is blocked on, or objects.Zero.
func (t *Task) BlockedOn() objects.Handle { return t.blockedOn }

// Process returns the owning process, or nil for a bare kernel task.
func (t *Task) Process() *Process { return t.proc }

// SetProcess attaches an address space to the task.
func (t *Task) SetProcess(p *Process) { t.proc = p }

// Segment is a contiguous range within a process's address space
// (spec.md §3: code, data, heap, stack).
type Segment struct {
	Base   uintptr
	Length uintptr
}

// Process is the address-space owner a Task may belong to (spec.md
// §3): a page marker, its loaded segments, a fixed-size open-file
// table, and a pid. Callers install open files with OpenFile; they
// are kept as opaque handles here so this package does not need to
// import internal/vfs.
type Process struct {
	objects.Object

	Pid    uint64
	Marker PageMarker

	Code, Data, Heap, Stack Segment

	files []objects.Handle
}

// PageMarker is the subset of *memvirt.PageMarker a Process needs to
// reference. Declared as an interface here (rather than importing
// internal/memvirt directly) so internal/task stays below internal/vfs
// and internal/kernel in the dependency order of spec.md §2 without a
// hard import cycle risk once process teardown needs to unmap things.
type PageMarker interface {
	Unmap(virtual uintptr) error
}

// NewProcess allocates a Process with an open-file table of the given
// capacity (spec.md §3 "fixed size"; internal/kconfig.OpenFileTableSize
// names the default size, though internal/kernel creates no Process).
func NewProcess(reg *objects.Registry, pid uint64, marker PageMarker, openFileTableSize int) *Process {
	p := &Process{Pid: pid, Marker: marker, files: make([]objects.Handle, openFileTableSize)}
	p.Object.Init(objects.KindProcess, objects.Zero)
	reg.Register(&p.Object)
	return p
}

// OpenFile installs handle in the first free open-file table slot,
// returning its file descriptor, or -1 if the table is full.
func (p *Process) OpenFile(handle objects.Handle) int {
	for i, h := range p.files {
		if h == objects.Zero {
			p.files[i] = handle
			return i
		}
	}
	return -1
}

// File returns the handle installed at descriptor fd, or objects.Zero
// if fd is out of range or unused.
func (p *Process) File(fd int) objects.Handle {
	if fd < 0 || fd >= len(p.files) {
		return objects.Zero
	}
	return p.files[fd]
}

// CloseFile clears descriptor fd, returning the handle that was there.
func (p *Process) CloseFile(fd int) objects.Handle {
	if fd < 0 || fd >= len(p.files) {
		return objects.Zero
	}
	h := p.files[fd]
	p.files[fd] = objects.Zero
	return h
}
