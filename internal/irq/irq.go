// Package irq implements spec.md §4.5: per-line interrupt objects
// holding an ordered callback chain, and module IRQ registration that
// fans a line's firing out into a driver module's event queue.
// Grounded on the teacher's gic_qemu.go (one handler slot per
// interrupt ID, dispatched from a single exception entry point) and
// exceptions.go, generalized to pet_os's kernel/src/interrupts/object.rs
// (a chain of callbacks per line rather than one slot) and
// kernel/src/io/irq/{event,hook,mod}.rs (the optional in-kernel hook
// executed before the event is queued).
package irq

import (
	"sync"

	"github.com/paval-belarus/moskit/internal/arch/pic"
	"github.com/paval-belarus/moskit/internal/kerr"
	"github.com/paval-belarus/moskit/internal/klog"
	"github.com/paval-belarus/moskit/internal/ksync"
	"github.com/paval-belarus/moskit/internal/objects"
	"go.uber.org/zap"
)

// Callback is one entry in an InterruptObject's chain. alreadyHandled
// reports whether an earlier callback in the chain already claimed the
// line; the callback returns whether it handled the interrupt itself
// (spec.md §4.5).
type Callback func(alreadyHandled bool) bool

type callbackEntry struct {
	id int
	fn Callback
}

// InterruptObject holds the ordered callback chain for one PIC line.
type InterruptObject struct {
	mu        sync.Mutex
	line      int
	nextID    int
	callbacks []callbackEntry
}

func newInterruptObject(line int) *InterruptObject {
	return &InterruptObject{line: line}
}

// Register appends cb to the end of the line's callback chain,
// registration order (spec.md §4.5 "invokes each callback in
// registration order"). The returned id unregisters it.
func (o *InterruptObject) Register(cb Callback) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	id := o.nextID
	o.callbacks = append(o.callbacks, callbackEntry{id: id, fn: cb})
	return id
}

// Unregister removes the callback previously returned by Register.
func (o *InterruptObject) Unregister(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.callbacks {
		if e.id == id {
			o.callbacks = append(o.callbacks[:i], o.callbacks[i+1:]...)
			return
		}
	}
}

// Invoke runs every registered callback in order, threading through
// whether an earlier one already handled the line, and reports whether
// any callback handled it.
func (o *InterruptObject) Invoke() bool {
	o.mu.Lock()
	cbs := make([]Callback, len(o.callbacks))
	for i, e := range o.callbacks {
		cbs[i] = e.fn
	}
	o.mu.Unlock()

	handled := false
	for _, cb := range cbs {
		if cb(handled) {
			handled = true
		}
	}
	return handled
}

// IrqEvent is the kernel object pushed to a module's queue each time
// its registered line fires (spec.md §3 Work Items, §4.5).
type IrqEvent struct {
	objects.Object
	Line     int
	Sequence uint64
}

// ModuleRegistration is what a driver module handed back to it when it
// registers for a line (spec.md §4.5 "A driver module registers
// {line, optional hook, queue<IrqEvent>}").
type ModuleRegistration struct {
	Line  int
	Hook  func()
	Queue *ksync.Queue[*IrqEvent]

	callbackID int
}

// Router owns one InterruptObject per line that has ever been touched,
// the module registered against each line, and the PIC those lines are
// EOI'd through. There is one Router per kernel instance.
type Router struct {
	mu      sync.Mutex
	reg     *objects.Registry
	pic     *pic.PIC
	log     *klog.Logger
	lines   map[int]*InterruptObject
	modules map[int]*ModuleRegistration
	seq     uint64
}

// NewRouter returns a Router with no lines yet touched.
func NewRouter(reg *objects.Registry, p *pic.PIC, log *klog.Logger) *Router {
	return &Router{
		reg:     reg,
		pic:     p,
		log:     log,
		lines:   make(map[int]*InterruptObject),
		modules: make(map[int]*ModuleRegistration),
	}
}

func (r *Router) lineLocked(line int) *InterruptObject {
	o, ok := r.lines[line]
	if !ok {
		o = newInterruptObject(line)
		r.lines[line] = o
	}
	return o
}

// Line returns the InterruptObject for a line, creating it on first
// use. Exposed so L0-level code (e.g. the PIT driver) can register its
// own kernel-internal callback on top of whatever module claims the
// line.
func (r *Router) Line(line int) *InterruptObject {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lineLocked(line)
}

// RegisterModule attaches a driver module to a line: an optional
// in-kernel hook run immediately at fire time (port-write/memory-write,
// spec.md §4.5's tight-hardware-deadline escape hatch) and the bounded
// queue new IrqEvents are pushed onto. A line may have only one module
// registration.
func (r *Router) RegisterModule(line int, hook func(), queue *ksync.Queue[*IrqEvent]) error {
	r.mu.Lock()
	if _, exists := r.modules[line]; exists {
		r.mu.Unlock()
		return kerr.Wrap(kerr.AlreadyExists, "irq line already claimed by a module")
	}
	reg := &ModuleRegistration{Line: line, Hook: hook, Queue: queue}
	r.modules[line] = reg
	o := r.lineLocked(line)
	r.mu.Unlock()

	id := o.Register(func(alreadyHandled bool) bool {
		if hook != nil {
			hook()
		}

		r.mu.Lock()
		r.seq++
		seq := r.seq
		r.mu.Unlock()

		ev := &IrqEvent{Line: line, Sequence: seq}
		ev.Object.Init(objects.KindIrqEvent, objects.Zero)
		r.reg.Register(&ev.Object)

		if err := queue.Push(ev); err != nil {
			if r.log != nil {
				r.log.Warn("irq queue full, dropping event",
					zap.Int("line", line), zap.Uint64("sequence", seq))
			}
			ev.Object.Drop(r.reg)
		}
		return true
	})
	reg.callbackID = id
	return nil
}

// Fire simulates a line firing: invokes its callback chain and then
// unconditionally EOIs the PIC (spec.md §4.5 "If none handled it, the
// PIC EOI is issued unconditionally" — issued regardless either way).
// Real hardware calls this from the exception entry stub; hosted, the
// PIT timer and test code call it directly.
func (r *Router) Fire(line int) bool {
	o := r.Line(line)
	handled := o.Invoke()
	if r.pic != nil {
		r.pic.EOI(line)
	}
	return handled
}

// Unregister removes a module's claim on a line, the counterpart to a
// driver module crashing or unloading. internal/dispatch's Unregister
// does not call it.
func (r *Router) Unregister(line int) {
	r.mu.Lock()
	reg, ok := r.modules[line]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.modules, line)
	o := r.lineLocked(line)
	r.mu.Unlock()

	o.Unregister(reg.callbackID)
}
