package ksync

import (
	"container/list"
	"sync"

	"github.com/paval-belarus/moskit/internal/objects"
)

// Mutex is the kernel object of spec.md §4.4/§6: FIFO-fair, ownership
// transfers directly from releaser to the next waiter so a released
// mutex is never briefly "free" for a third task to steal. Grounded on
// pet_os's kernel/src/object/event.rs block_on/notify comment
// ("Mutex: block_on -> block on locked mutex, notify -> mutex will be
// released") generalized the way Event is.
type Mutex struct {
	objects.Object

	mu      sync.Mutex
	held    bool
	waiters list.List // of chan struct{}
}

// NewMutex allocates an unheld Mutex as a child of parent.
func NewMutex(reg *objects.Registry, parent objects.Handle) *Mutex {
	m := &Mutex{}
	m.Object.Init(objects.KindMutex, parent)
	reg.Register(&m.Object)
	return m
}

// Acquire blocks until the mutex is uncontested, then takes ownership.
func (m *Mutex) Acquire() {
	m.mu.Lock()
	if !m.held {
		m.held = true
		m.mu.Unlock()
		return
	}

	ch := make(chan struct{})
	m.waiters.PushBack(ch)
	m.mu.Unlock()

	<-ch // ownership was already marked held by the releaser
}

// TryAcquire acquires the mutex only if it is currently free, without
// blocking.
func (m *Mutex) TryAcquire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held {
		return false
	}
	m.held = true
	return true
}

// Release hands ownership directly to the longest-waiting task if one
// exists, or marks the mutex free.
func (m *Mutex) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	front := m.waiters.Front()
	if front == nil {
		m.held = false
		return
	}
	m.waiters.Remove(front)
	close(front.Value.(chan struct{}))
}

// WaiterCount reports how many tasks are blocked waiting to acquire.
func (m *Mutex) WaiterCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiters.Len()
}
