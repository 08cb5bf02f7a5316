package ksync

import (
	"container/list"
	"sync"

	"github.com/paval-belarus/moskit/internal/objects"
)

// Event is the kernel object of spec.md §4.4/§6: a handle tasks can
// block on and another task (or an IRQ handler) can notify, waking one
// waiter or all of them. Grounded on pet_os's kernel/src/task/event.rs
// (wait == block_on, notify == unblock_on) and object/event.rs for the
// slab/object wiring.
type Event struct {
	objects.Object

	mu      sync.Mutex
	waiters list.List // of chan struct{}
}

// NewEvent allocates an Event as a child of parent (Zero for a root
// object) and registers it, returning its handle.
func NewEvent(reg *objects.Registry, parent objects.Handle) *Event {
	e := &Event{}
	e.Object.Init(objects.KindEvent, parent)
	reg.Register(&e.Object)
	return e
}

// Wait blocks the calling goroutine until a NotifyOne or NotifyAll
// wakes it (spec.md §4.4 block_on/unblock_on for Event).
func (e *Event) Wait() {
	e.mu.Lock()
	ch := make(chan struct{})
	elem := e.waiters.PushBack(ch)
	e.mu.Unlock()

	<-ch

	// Remove is a no-op if a notifier already unlinked elem; list.List
	// only performs the unlink when elem is still a member of this list.
	e.mu.Lock()
	e.waiters.Remove(elem)
	e.mu.Unlock()
}

// NotifyOne wakes exactly the longest-waiting blocked task, FIFO order
// (spec.md §4.4 "wakes exactly one (FIFO) ... depending on the
// caller").
func (e *Event) NotifyOne() {
	e.mu.Lock()
	defer e.mu.Unlock()

	front := e.waiters.Front()
	if front == nil {
		return
	}
	e.waiters.Remove(front)
	close(front.Value.(chan struct{}))
}

// NotifyAll wakes every task currently blocked on this event.
func (e *Event) NotifyAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for el := e.waiters.Front(); el != nil; {
		next := el.Next()
		e.waiters.Remove(el)
		close(el.Value.(chan struct{}))
		el = next
	}
}

// WaiterCount reports how many tasks are currently blocked, for tests
// and diagnostics.
func (e *Event) WaiterCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waiters.Len()
}
