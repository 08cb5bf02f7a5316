package irq

import (
	"testing"

	"github.com/paval-belarus/moskit/internal/arch/pic"
	"github.com/paval-belarus/moskit/internal/klog"
	"github.com/paval-belarus/moskit/internal/ksync"
	"github.com/paval-belarus/moskit/internal/objects"
)

func TestFireInvokesCallbacksInRegistrationOrderAndEOIsUnconditionally(t *testing.T) {
	p := pic.New()
	reg := objects.NewRegistry()
	r := NewRouter(reg, p, klog.Nop())

	var order []string
	line := 5
	r.Line(line).Register(func(alreadyHandled bool) bool {
		order = append(order, "first")
		return false // does not claim it
	})
	r.Line(line).Register(func(alreadyHandled bool) bool {
		if alreadyHandled {
			t.Error("second callback saw alreadyHandled=true, want false")
		}
		order = append(order, "second")
		return true // claims it
	})
	r.Line(line).Register(func(alreadyHandled bool) bool {
		if !alreadyHandled {
			t.Error("third callback saw alreadyHandled=false, want true")
		}
		order = append(order, "third")
		return false
	})

	handled := r.Fire(line)
	if !handled {
		t.Error("Fire returned false, want true (second callback claimed it)")
	}
	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Fatalf("callback order = %v, want [first second third]", order)
	}
	if p.LastEOI() != line {
		t.Errorf("LastEOI() = %d, want %d (EOI unconditional)", p.LastEOI(), line)
	}
}

func TestFireWithNoHandlerStillEOIs(t *testing.T) {
	p := pic.New()
	reg := objects.NewRegistry()
	r := NewRouter(reg, p, klog.Nop())

	if handled := r.Fire(7); handled {
		t.Error("Fire on an untouched line reported handled")
	}
	if p.LastEOI() != 7 {
		t.Errorf("LastEOI() = %d, want 7", p.LastEOI())
	}
}

func TestRegisterModulePushesIrqEventAndRunsHook(t *testing.T) {
	p := pic.New()
	reg := objects.NewRegistry()
	r := NewRouter(reg, p, klog.Nop())
	q := ksync.NewQueue[*IrqEvent](reg, objects.Zero, 4)

	hookRan := false
	if err := r.RegisterModule(3, func() { hookRan = true }, q); err != nil {
		t.Fatalf("RegisterModule: %v", err)
	}

	r.Fire(3)

	if !hookRan {
		t.Error("in-kernel hook never ran")
	}
	if q.Len() != 1 {
		t.Fatalf("queue len = %d, want 1", q.Len())
	}
	ev, ok := q.TryPop()
	if !ok || ev.Line != 3 {
		t.Fatalf("popped event = %+v, ok=%v, want Line=3", ev, ok)
	}
}

func TestRegisterModuleTwiceOnSameLineFails(t *testing.T) {
	p := pic.New()
	reg := objects.NewRegistry()
	r := NewRouter(reg, p, klog.Nop())
	q := ksync.NewQueue[*IrqEvent](reg, objects.Zero, 4)

	if err := r.RegisterModule(9, nil, q); err != nil {
		t.Fatalf("first RegisterModule: %v", err)
	}
	if err := r.RegisterModule(9, nil, q); err == nil {
		t.Fatal("second RegisterModule on the same line succeeded, want error")
	}
}

func TestFullQueueDropsEventRatherThanBlockingFire(t *testing.T) {
	p := pic.New()
	reg := objects.NewRegistry()
	r := NewRouter(reg, p, klog.Nop())
	q := ksync.NewQueue[*IrqEvent](reg, objects.Zero, 1)

	if err := r.RegisterModule(4, nil, q); err != nil {
		t.Fatalf("RegisterModule: %v", err)
	}

	r.Fire(4) // fills the capacity-1 queue
	r.Fire(4) // queue now full: must drop, not block or panic

	if q.Len() != 1 {
		t.Fatalf("queue len = %d, want 1 (second event dropped)", q.Len())
	}
}

func TestUnregisterStopsFutureDeliveries(t *testing.T) {
	p := pic.New()
	reg := objects.NewRegistry()
	r := NewRouter(reg, p, klog.Nop())
	q := ksync.NewQueue[*IrqEvent](reg, objects.Zero, 4)

	if err := r.RegisterModule(2, nil, q); err != nil {
		t.Fatalf("RegisterModule: %v", err)
	}
	r.Unregister(2)
	r.Fire(2)

	if q.Len() != 0 {
		t.Fatalf("queue len = %d after Unregister, want 0", q.Len())
	}
	if err := r.RegisterModule(2, nil, q); err != nil {
		t.Fatalf("RegisterModule after Unregister: %v", err)
	}
}
