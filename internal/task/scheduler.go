package task

import (
	"container/list"
	"runtime"
	"sync"
	"time"

	"github.com/paval-belarus/moskit/internal/kconfig"
	"github.com/paval-belarus/moskit/internal/objects"
)

// Scheduler owns the 32 ready FIFOs, the sleeping list, and the
// single turnstile token that models "one task runs at a time" on this
// uniprocessor machine (spec.md §4.4, §5).
type Scheduler struct {
	mu   sync.Mutex
	reg  *objects.Registry
	cfg  kconfig.Config
	ready []list.List // index 0..cfg.PriorityLevels-1, one FIFO per level
	sleeping list.List // of *Task, ascending wakeAt

	current *Task
	idle    *Task
}

// New creates a Scheduler and its idle task (spec.md §4.4 "Task 1 is
// the idle task"). Nothing runs until Boot names the first task to
// receive the turnstile token.
func New(reg *objects.Registry, cfg kconfig.Config) *Scheduler {
	s := &Scheduler{reg: reg, cfg: cfg, ready: make([]list.List, cfg.PriorityLevels)}
	s.idle = s.Spawn(Idle(), "idle", func(t *Task) {
		for {
			runtime.Gosched()
			s.Yield(t)
		}
	})
	return s
}

// Current returns the task currently holding the turnstile token, or
// nil before Boot.
func (s *Scheduler) Current() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Scheduler) newTask(priority int, name string) *Task {
	t := &Task{priority: priority, Name: name, turn: make(chan struct{})}
	t.state.Store(int32(StateReady))
	t.Object.Init(objects.KindTask, objects.Zero)
	s.reg.Register(&t.Object)
	return t
}

// Spawn creates a new task at the given priority and starts its
// goroutine, which blocks immediately until the scheduler hands it the
// turnstile token for the first time. The task is placed at the tail
// of its priority level's ready queue (spec.md §4.4 "new_task").
func (s *Scheduler) Spawn(priority int, name string, fn func(*Task)) *Task {
	t := s.newTask(priority, name)

	go func() {
		<-t.turn
		fn(t)
		s.Exit(t)
	}()

	s.mu.Lock()
	s.ready[priority].PushBack(t)
	s.mu.Unlock()
	return t
}

// Boot spawns a task exactly like Spawn, then immediately performs the
// first scheduling decision so something actually starts running
// (spec.md §4.4 "Task 0 is the boot task running in kernel priority").
// Call it once per Scheduler after any tasks that must exist before the
// system starts executing have been Spawned.
func (s *Scheduler) Boot(priority int, name string, fn func(*Task)) *Task {
	booted := s.Spawn(priority, name, fn)

	s.mu.Lock()
	next := s.pickNextLocked()
	if next == nil {
		s.mu.Unlock()
		panic("task: Boot found no ready task (idle task missing)")
	}
	s.current = next
	next.state.Store(int32(StateRunning))
	next.sliceRemaining = sliceForLevel(next.priority)
	s.mu.Unlock()

	next.turn <- struct{}{}
	return booted
}

// pickNextLocked scans priority levels high to low and pops the front
// of the first non-empty FIFO (spec.md §4.4 "Selection"). Must be
// called with mu held.
func (s *Scheduler) pickNextLocked() *Task {
	for lvl := len(s.ready) - 1; lvl >= 0; lvl-- {
		if front := s.ready[lvl].Front(); front != nil {
			s.ready[lvl].Remove(front)
			return front.Value.(*Task)
		}
	}
	return nil
}

func (s *Scheduler) insertSleepingLocked(t *Task) {
	for e := s.sleeping.Front(); e != nil; e = e.Next() {
		if e.Value.(*Task).wakeAt.After(t.wakeAt) {
			s.sleeping.InsertBefore(t, e)
			return
		}
	}
	s.sleeping.PushBack(t)
}

// handoffFrom performs a context switch away from self, which the
// caller has already repositioned (pushed onto a ready/sleeping list,
// or left out of every list for a block/exit). It picks the next
// task to run, installs it as current, and wakes it over the
// turnstile. If park is true, the caller's own goroutine blocks on its
// turnstile until it is scheduled again; BlockOn passes false because
// the caller is about to block on a real synchronization primitive
// instead.
func (s *Scheduler) handoffFrom(self *Task, park bool) {
	s.mu.Lock()
	next := s.pickNextLocked()
	if next == nil {
		s.mu.Unlock()
		panic("task: no ready task to switch to (idle task missing)")
	}
	s.current = next
	next.state.Store(int32(StateRunning))
	next.sliceRemaining = sliceForLevel(next.priority)
	s.mu.Unlock()

	if next != self {
		next.turn <- struct{}{}
	}
	if park && next != self {
		<-self.turn
	}
}

// Yield voluntarily gives up the remainder of the current slice,
// re-entering the ready queue at the tail of its priority level
// (spec.md §4.4 "re-enqueued at its level's tail if preempted").
func (s *Scheduler) Yield(t *Task) {
	s.mu.Lock()
	t.state.Store(int32(StateReady))
	s.ready[t.priority].PushBack(t)
	s.mu.Unlock()
	s.handoffFrom(t, true)
}

// Checkpoint is the hosted stand-in for the timer IRQ actually
// interrupting a running task: since nothing can force a goroutine to
// give up the CPU mid-instruction without runtime-internal hooks (the
// same limitation the teacher's timerPreempt works around by only ever
// forcing a Gosched() at a safe point), task bodies that run for more
// than a trivial amount of work call Checkpoint at natural loop
// boundaries. If Tick has marked this task's slice expired, Checkpoint
// yields exactly as a real preemption would; otherwise it returns
// immediately.
func (s *Scheduler) Checkpoint(t *Task) {
	if t.preemptPending.CompareAndSwap(true, false) {
		s.Yield(t)
	}
}

// Sleep moves the current task to the sleeping list with wake-time
// now+d (spec.md §4.4 "Sleep").
func (s *Scheduler) Sleep(t *Task, d time.Duration) {
	s.mu.Lock()
	t.state.Store(int32(StateSleeping))
	t.wakeAt = time.Now().Add(d)
	s.insertSleepingLocked(t)
	s.mu.Unlock()
	s.handoffFrom(t, true)
}

// BlockOn records handle as the reason the task is blocked, hands the
// turnstile to the next ready task, and then calls wait — which must
// genuinely block the calling goroutine (e.g. an (*ksync.Event).Wait,
// (*ksync.Mutex).Acquire, or (*ksync.Queue[T]).BlockingPop) until
// something notifies it. Once wait returns, the task re-enters the
// ready queue and competes for the turnstile like any other task
// (spec.md §4.4 "Block / Unblock").
func (s *Scheduler) BlockOn(t *Task, handle objects.Handle, wait func()) {
	s.mu.Lock()
	t.state.Store(int32(StateBlocked))
	t.blockedOn = handle
	s.mu.Unlock()

	s.handoffFrom(t, false)
	wait()
	s.rejoin(t)
}

func (s *Scheduler) rejoin(t *Task) {
	s.mu.Lock()
	t.state.Store(int32(StateReady))
	t.blockedOn = objects.Zero
	s.ready[t.priority].PushBack(t)
	s.mu.Unlock()
	s.handoffFrom(t, true)
}

// Exit retires a task that has finished running (its entry function
// returned). Called automatically by Spawn/Boot's goroutine wrapper;
// internal/syscall.TerminateCurrentTask calls it directly for the
// calling task (spec.md §5 "Cancellation").
func (s *Scheduler) Exit(t *Task) {
	s.mu.Lock()
	t.state.Store(int32(StateTerminated))
	s.mu.Unlock()

	s.handoffFrom(t, false)
	t.Object.Drop(s.reg)
}

// Tick drives the scheduler's timer-interrupt path (spec.md §4.4): it
// promotes every sleeper whose wake-time has elapsed to its priority
// ready list, then decrements the running task's remaining slice,
// marking it for preemption at zero. The kernel wiring calls Tick at
// internal/kconfig.Config.TickRate.
func (s *Scheduler) Tick() {
	now := time.Now()

	s.mu.Lock()
	for e := s.sleeping.Front(); e != nil; {
		next := e.Next()
		t := e.Value.(*Task)
		if !t.wakeAt.After(now) {
			s.sleeping.Remove(e)
			t.state.Store(int32(StateReady))
			s.ready[t.priority].PushBack(t)
		}
		e = next
	}

	var expired *Task
	if s.current != nil && s.current != s.idle {
		s.current.sliceRemaining--
		if s.current.sliceRemaining <= 0 {
			expired = s.current
		}
	}
	s.mu.Unlock()

	if expired != nil {
		expired.preemptPending.Store(true)
	}
}
