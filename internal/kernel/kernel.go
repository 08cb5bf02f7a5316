// Package kernel sequences every subsystem's construction into one
// boot path, the hosted analogue of the teacher's staged
// kernelMainBody (UART → MMU → heap → GIC → timer → SD card → ...,
// each stage gated on the previous one succeeding). Nothing here does
// any I/O of its own; it only wires internal/memphys through
// internal/syscall together in the dependency order spec.md §2 lays
// out (L0 arch below L1 mem-phys below L2 mem-virt below L3 slab below
// L4 objects below L5 sync below L6 task below L7 irq below L8 vfs
// below L9 dispatch/syscall).
package kernel

import (
	"github.com/paval-belarus/moskit/internal/arch/pic"
	"github.com/paval-belarus/moskit/internal/arch/pit"
	"github.com/paval-belarus/moskit/internal/dispatch"
	"github.com/paval-belarus/moskit/internal/irq"
	"github.com/paval-belarus/moskit/internal/kconfig"
	"github.com/paval-belarus/moskit/internal/klog"
	"github.com/paval-belarus/moskit/internal/kpanic"
	"github.com/paval-belarus/moskit/internal/memphys"
	"github.com/paval-belarus/moskit/internal/objects"
	"github.com/paval-belarus/moskit/internal/syscall"
	"github.com/paval-belarus/moskit/internal/task"
)

// Kernel bundles every booted subsystem. Nothing outside this package
// reaches into a subsystem directly except through the handles stored
// here or through the syscall.World it builds — the same "explicit
// init(&mut world), no hidden statics" shape spec.md §9 calls for.
type Kernel struct {
	Config kconfig.Config
	Log    *klog.Logger

	Phys  *memphys.Allocator
	PIC   *pic.PIC
	Timer *pit.Timer

	Objects *objects.Registry
	IRQ     *irq.Router
	Sched   *task.Scheduler
	Modules *dispatch.Registry

	World *syscall.World
}

// MemoryMap describes the regions the boot loader reports (spec.md
// §4.1 Capture Allocator input), e.g. from the BIOS/UEFI memory map on
// a real machine.
type MemoryMap struct {
	Regions      []memphys.MemRegion
	KernelStart  uint64
	KernelLength uint64
}

// Boot runs the staged bring-up and returns a fully wired Kernel, or an
// error if any stage fails (spec.md §9's InvalidBootAllocator
// resolution: a failed capture never panics, it reports an error the
// caller can act on). Mirrors the teacher's kernelMainBody staging,
// generalized from raw hardware bring-up to subsystem construction:
// arch objects first, then physical memory, then everything layered
// on top of it, in spec.md §2's dependency order.
func Boot(cfg kconfig.Config, mm MemoryMap, log *klog.Logger) (*Kernel, error) {
	if log == nil {
		log = klog.Nop()
	}
	k := &Kernel{Config: cfg, Log: log}

	// Stage 0: arch-level objects that do not depend on memory at all.
	k.PIC = pic.New()
	k.Timer = pit.New(cfg.TickRate)
	log.Info("arch objects ready")

	// Stage 1: physical memory, captured from the boot loader's memory
	// map (spec.md §4.1 Capture Allocator).
	capture, err := memphys.NewCaptureAllocator(mm.Regions, mm.KernelStart, mm.KernelLength, cfg.MaxBuddyOrder)
	if err != nil {
		return nil, err
	}
	phys, err := capture.Finish()
	if err != nil {
		return nil, err
	}
	k.Phys = phys
	log.Info("physical memory captured")

	// Stage 2: the kernel object registry every later subsystem
	// registers its kernel objects into (spec.md §4's Object model).
	k.Objects = objects.NewRegistry()

	// Stage 3: interrupt routing, wired to the PIC allocated above
	// (spec.md §4.5).
	k.IRQ = irq.NewRouter(k.Objects, k.PIC, log)

	// Stage 4: the scheduler (spec.md §4.4), driven by the PIT tick
	// once Run is called.
	k.Sched = task.New(k.Objects, cfg)
	k.Timer.Run(k.Sched.Tick)

	// Stage 5: the module/driver registry (spec.md §4.6/§6), built on
	// top of the object registry so Unregister's crash/unload sweep
	// (spec.md §7) can walk a module's subtree.
	k.Modules = dispatch.NewRegistry(k.Objects, log)

	// Stage 6: the syscall boundary, threading every subsystem handle
	// above through one explicit World rather than package globals.
	k.World = &syscall.World{
		Objects:   k.Objects,
		Scheduler: k.Sched,
		Modules:   k.Modules,
		Log:       log,
	}

	log.Info("boot complete")
	return k, nil
}

// Halt reports a fatal, unrecoverable condition (spec.md §7's "truly
// fatal conditions never unwind, they stop"). Kept as a thin wrapper
// so callers don't need to import internal/kpanic directly just to
// reach Kernel.Log.
func (k *Kernel) Halt(format string, args ...any) {
	kpanic.Halt(k.Log, format, args...)
}

// Shutdown stops the subsystems that own a background goroutine
// (currently just the PIT's tick loop). Kernel objects themselves are
// torn down module-by-module via dispatch.Registry.Unregister, not here.
func (k *Kernel) Shutdown() {
	k.Timer.Stop()
}
