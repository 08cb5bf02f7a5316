// Package pit models the programmable interval timer driving the
// periodic preemption tick (spec.md §4.4, default 50 Hz). Grounded on
// the teacher's timer_qemu.go, which arms a periodic QEMU virtual timer
// and calls into the scheduler on each fire.
package pit

import (
	"sync/atomic"
	"time"
)

// Timer is a periodic tick source. Callers either drive it themselves
// with Tick (deterministic, used by scheduler scenario tests) or start
// it against a wall-clock rate with Run.
type Timer struct {
	rate  time.Duration
	ticks atomic.Uint64
	stop  chan struct{}
}

// New returns a Timer at the given tick rate (e.g. 20ms for 50 Hz).
func New(rate time.Duration) *Timer {
	return &Timer{rate: rate, stop: make(chan struct{})}
}

// Ticks returns the number of ticks delivered so far.
func (t *Timer) Ticks() uint64 {
	return t.ticks.Load()
}

// Tick delivers one timer interrupt synchronously, invoking onTick the
// way the teacher's IRQ handler calls timerPreempt/timerSignal. Used by
// tests that need deterministic scheduling decisions instead of
// wall-clock jitter.
func (t *Timer) Tick(onTick func()) {
	t.ticks.Add(1)
	if onTick != nil {
		onTick()
	}
}

// Run arms the timer at its configured rate and calls onTick on every
// fire until Stop is called. It runs in its own goroutine, the hosted
// analogue of the PIT firing an IRQ line asynchronously.
func (t *Timer) Run(onTick func()) {
	ticker := time.NewTicker(t.rate)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.Tick(onTick)
			case <-t.stop:
				return
			}
		}
	}()
}

// Stop halts a timer started with Run.
func (t *Timer) Stop() {
	close(t.stop)
}
