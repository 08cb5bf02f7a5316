package ksync

import (
	"container/list"
	"sync"

	"github.com/paval-belarus/moskit/internal/kerr"
	"github.com/paval-belarus/moskit/internal/objects"
)

// Queue is the kernel object of spec.md §3/§4.4: a bounded FIFO of
// values another task can block-pop from. Grounded on kernel_types'
// object/queue.rs (blocking_recv) generalized to Go generics. Every
// Queue takes its bound explicitly from NewQueue.
type Queue[T any] struct {
	objects.Object

	mu        sync.Mutex
	items     list.List // of T
	capacity  int
	waiters   list.List // of chan struct{}, one per blocked popper
	closed    bool
	closedErr error
}

// NewQueue allocates a Queue bounded at capacity items, as a child of
// parent. Wires its Cancel hook to Close, so a module-crash/unload
// sweep (internal/dispatch.Registry.Unregister) can wake every blocked
// popper without knowing this is a Queue.
func NewQueue[T any](reg *objects.Registry, parent objects.Handle, capacity int) *Queue[T] {
	q := &Queue[T]{capacity: capacity}
	q.Object.Init(objects.KindQueue, parent)
	reg.Register(&q.Object)
	q.Object.SetOnCancel(q.Close)
	return q
}

// Close marks the queue closed with err and wakes every goroutine
// currently blocked in BlockingPop. Further Push calls fail with err;
// BlockingPop calls that find the queue empty and closed return
// (zero, err) instead of blocking forever.
func (q *Queue[T]) Close(err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.closedErr = err
	waiters := make([]chan struct{}, 0, q.waiters.Len())
	for e := q.waiters.Front(); e != nil; e = e.Next() {
		waiters = append(waiters, e.Value.(chan struct{}))
	}
	q.waiters.Init()
	q.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

// Push enqueues v, waking the longest-blocked popper if one is
// waiting. Reports kerr.QueueFull once the queue is at capacity.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()

	if q.closed {
		err := q.closedErr
		q.mu.Unlock()
		return err
	}
	if q.items.Len() >= q.capacity {
		q.mu.Unlock()
		return kerr.Wrap(kerr.QueueFull, "queue at capacity")
	}
	q.items.PushBack(v)

	front := q.waiters.Front()
	if front != nil {
		q.waiters.Remove(front)
	}
	q.mu.Unlock()

	if front != nil {
		close(front.Value.(chan struct{}))
	}
	return nil
}

// TryPop removes and returns the front item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.items.Front()
	if front == nil {
		var zero T
		return zero, false
	}
	q.items.Remove(front)
	return front.Value.(T), true
}

// BlockingPop blocks the calling goroutine until an item is available,
// then returns it (spec.md §4.4 blocking_pop). If the queue is Closed
// (its owning module crashed or was unloaded) while empty, it returns
// the zero value and the error Close was given.
func (q *Queue[T]) BlockingPop() (T, error) {
	for {
		if v, ok := q.TryPop(); ok {
			return v, nil
		}

		q.mu.Lock()
		if q.closed {
			err := q.closedErr
			q.mu.Unlock()
			var zero T
			return zero, err
		}
		ch := make(chan struct{})
		elem := q.waiters.PushBack(ch)
		q.mu.Unlock()

		<-ch

		q.mu.Lock()
		q.waiters.Remove(elem)
		closed := q.closed
		err := q.closedErr
		q.mu.Unlock()
		if closed {
			if v, ok := q.TryPop(); ok {
				return v, nil
			}
			var zero T
			return zero, err
		}
	}
}

// Len returns the number of items currently queued.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
