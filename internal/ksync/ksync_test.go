package ksync

import (
	"testing"
	"time"

	"github.com/paval-belarus/moskit/internal/kerr"
	"github.com/paval-belarus/moskit/internal/objects"
)

func TestEventWaitBlocksUntilNotifyOne(t *testing.T) {
	reg := objects.NewRegistry()
	e := NewEvent(reg, objects.Zero)

	woke := make(chan struct{})
	go func() {
		e.Wait()
		close(woke)
	}()

	deadline := time.Now().Add(time.Second)
	for e.WaiterCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if e.WaiterCount() != 1 {
		t.Fatalf("waiter never registered")
	}

	select {
	case <-woke:
		t.Fatalf("Wait returned before NotifyOne")
	default:
	}

	e.NotifyOne()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatalf("Wait did not unblock after NotifyOne")
	}
}

func TestEventNotifyAllWakesEveryWaiter(t *testing.T) {
	reg := objects.NewRegistry()
	e := NewEvent(reg, objects.Zero)

	const n = 4
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			e.Wait()
			done <- struct{}{}
		}()
	}

	deadline := time.Now().Add(time.Second)
	for e.WaiterCount() != n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	e.NotifyAll()

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("waiter %d never woke after NotifyAll", i)
		}
	}
}

func TestMutexIsFIFOFair(t *testing.T) {
	reg := objects.NewRegistry()
	m := NewMutex(reg, objects.Zero)
	m.Acquire()

	const n = 3
	order := make(chan int, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			m.Acquire()
			order <- i
			m.Release()
		}()
		deadline := time.Now().Add(time.Second)
		for m.WaiterCount() != i+1 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}

	m.Release()

	for i := 0; i < n; i++ {
		select {
		case got := <-order:
			if got != i {
				t.Fatalf("acquire order[%d] = %d, want %d (FIFO)", i, got, i)
			}
		case <-time.After(time.Second):
			t.Fatalf("waiter %d never acquired the mutex", i)
		}
	}
}

func TestQueueBlockingPopWaitsForPush(t *testing.T) {
	reg := objects.NewRegistry()
	q := NewQueue[int](reg, objects.Zero, 4)

	got := make(chan int, 1)
	go func() { v, _ := q.BlockingPop(); got <- v }()

	select {
	case <-got:
		t.Fatalf("BlockingPop returned before any Push")
	case <-time.After(50 * time.Millisecond):
	}

	if err := q.Push(42); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case v := <-got:
		if v != 42 {
			t.Fatalf("BlockingPop() = %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("BlockingPop never returned after Push")
	}
}

func TestQueueCloseWakesBlockedPopperWithError(t *testing.T) {
	reg := objects.NewRegistry()
	q := NewQueue[int](reg, objects.Zero, 4)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.BlockingPop()
		errCh <- err
	}()

	select {
	case <-errCh:
		t.Fatalf("BlockingPop returned before Close")
	case <-time.After(20 * time.Millisecond):
	}

	wantErr := kerr.Wrap(kerr.InvalidHandle, "owner unloaded")
	q.Object.Cancel(wantErr)

	select {
	case err := <-errCh:
		if err != wantErr {
			t.Fatalf("BlockingPop error = %v, want %v", err, wantErr)
		}
	case <-time.After(time.Second):
		t.Fatalf("BlockingPop never returned after Close")
	}

	if err := q.Push(1); err != wantErr {
		t.Fatalf("Push after Close = %v, want %v", err, wantErr)
	}
}

func TestQueuePushFailsAtCapacity(t *testing.T) {
	reg := objects.NewRegistry()
	q := NewQueue[int](reg, objects.Zero, 2)

	if err := q.Push(1); err != nil {
		t.Fatalf("Push 1: %v", err)
	}
	if err := q.Push(2); err != nil {
		t.Fatalf("Push 2: %v", err)
	}
	if err := q.Push(3); err == nil {
		t.Fatalf("expected QueueFull pushing beyond capacity")
	}
}
