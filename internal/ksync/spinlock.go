// Package ksync implements the blockable kernel synchronization
// primitives of spec.md §3/§4.4/§5: SpinLock, Mutex, Event and
// Queue[T]. Mutex, Event and Queue[T] each embed an objects.Object so
// they participate in the handle/registry/parent-child model like
// every other kernel object; SpinLock is a bare atomic flag.
// Grounded on pet_os's kernel/src/io/lock.rs (uniprocessor spinlock
// assumption) and kernel/src/{task/event.rs,object/queue.rs} for
// block_on/notify semantics, and the teacher's goroutine.go for the
// runtime.Gosched-based cooperative spin idiom.
package ksync

import (
	"runtime"
	"sync/atomic"
)

// SpinLock busy-waits rather than blocking a whole goroutine, for the
// short critical sections the kernel itself uses internally (object
// registry, free lists) rather than ones a task can be suspended
// inside of. Valid only under the single-core assumption spec.md §1
// names explicitly.
type SpinLock struct {
	held atomic.Bool
}

// Lock spins until the lock is free, yielding the processor between
// attempts the way a uniprocessor kernel yields to the only other
// runnable context.
func (s *SpinLock) Lock() {
	for !s.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// TryLock attempts to acquire the lock without spinning.
func (s *SpinLock) TryLock() bool {
	return s.held.CompareAndSwap(false, true)
}

// Unlock releases the lock. Unlocking an unheld lock is a caller bug,
// the same contract a bare spinlock has in the original kernel.
func (s *SpinLock) Unlock() {
	s.held.Store(false)
}
