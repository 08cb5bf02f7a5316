// Command moskitctl is moskit's hosted smoke-test entry point: it
// boots the kernel, loads a handful of stand-in driver modules, and
// drives a short scenario through the syscall boundary — the hosted
// analogue of the teacher's kmazarin smoke-test goroutines
// (simpleMain/simpleGoroutine2) exercising the scheduler end to end.
// Grounded on jra3-system-agent's cmd/main.go subcommand-dispatch
// shape and canonical-snapd's struct-tag flag commands; flags are
// parsed with github.com/jessevdk/go-flags, as snapd does, rather than
// a switch over raw args.
package main

import (
	"fmt"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/paval-belarus/moskit/internal/dispatch"
	"github.com/paval-belarus/moskit/internal/drivers/devzero"
	"github.com/paval-belarus/moskit/internal/drivers/ramblock"
	"github.com/paval-belarus/moskit/internal/kconfig"
	"github.com/paval-belarus/moskit/internal/kernel"
	"github.com/paval-belarus/moskit/internal/klog"
	"github.com/paval-belarus/moskit/internal/memphys"
	"github.com/paval-belarus/moskit/internal/objects"
	"github.com/paval-belarus/moskit/internal/syscall"
	"github.com/paval-belarus/moskit/internal/task"
	"github.com/paval-belarus/moskit/internal/vfs"
)

type options struct {
	Verbose bool `short:"v" long:"verbose" description:"enable debug-level logging"`
}

type demoCommand struct {
	SectorCount int `long:"sectors" default:"16" description:"number of 512-byte sectors in the demo ram disk"`
}

type bootCommand struct{}

var opts options

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.AddCommand("demo", "run the end-to-end driver/scheduler scenario",
		"Boots the kernel, registers devzero and a RAM block device, "+
			"spawns a task that exercises both through the syscall boundary, "+
			"then reports what happened.",
		&demoCommand{})
	parser.AddCommand("boot", "boot the kernel and report subsystem status",
		"Boots the kernel with the default configuration and a synthetic "+
			"memory map, then prints a summary of what came up.",
		&bootCommand{})

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *klog.Logger {
	level := zap.InfoLevel
	if opts.Verbose {
		level = zap.DebugLevel
	}
	return klog.New(level)
}

func demoMemoryMap() kernel.MemoryMap {
	return kernel.MemoryMap{
		Regions: []memphys.MemRegion{{Start: 0, Length: 4096 * memphys.PageSize}},
	}
}

func (c *bootCommand) Execute(args []string) error {
	log := newLogger()
	defer log.Sync()

	k, err := kernel.Boot(kconfig.Default(), demoMemoryMap(), log)
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	defer k.Shutdown()

	fmt.Printf("moskit booted: %d physical frames free, %d priority levels, tick rate %s\n",
		k.Phys.FreeFrameCount(), k.Config.PriorityLevels, k.Config.TickRate)
	return nil
}

func (c *demoCommand) Execute(args []string) error {
	log := newLogger()
	defer log.Sync()

	k, err := kernel.Boot(kconfig.Default(), demoMemoryMap(), log)
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	defer k.Shutdown()

	blockModule, err := k.Modules.RegisterModuleInfo("ramblock")
	if err != nil {
		return fmt.Errorf("register ramblock module: %w", err)
	}
	blockDev, err := k.Modules.RegisterBlockDevice(blockModule.Handle(), "ramblock0", 512, 8)
	if err != nil {
		return fmt.Errorf("register block device: %w", err)
	}
	go dispatch.RunBlockDevice(blockDev, ramblock.New(512, c.SectorCount))

	charModule, err := k.Modules.RegisterModuleInfo("devzero")
	if err != nil {
		return fmt.Errorf("register devzero module: %w", err)
	}
	charDev, err := k.Modules.RegisterCharDevice(charModule.Handle(), "zero", 8)
	if err != nil {
		return fmt.Errorf("register char device: %w", err)
	}
	go dispatch.RunCharDevice(charDev, devzero.New())

	done := make(chan string, 1)
	k.Sched.Boot(task.Kernel(), "demo", func(t *task.Task) {
		payload := make([]byte, 512)
		copy(payload, "moskitctl demo payload")
		write := vfs.NewBlockWork(k.Objects, vfs.BlockWrite, 1, payload)
		if err := blockDev.Queue.Push(write); err != nil {
			done <- fmt.Sprintf("push write: %v", err)
			return
		}
		k.Sched.BlockOn(t, write.Handle(), write.Wait)
		if err := write.Err(); err != nil {
			done <- fmt.Sprintf("block write failed: %v", err)
			return
		}

		readBuf := make([]byte, 512)
		read := vfs.NewBlockWork(k.Objects, vfs.BlockRead, 1, readBuf)
		if err := blockDev.Queue.Push(read); err != nil {
			done <- fmt.Sprintf("push read: %v", err)
			return
		}
		k.Sched.BlockOn(t, read.Handle(), read.Wait)
		if err := read.Err(); err != nil {
			done <- fmt.Sprintf("block read failed: %v", err)
			return
		}

		zeroFW := vfs.NewFileWork(k.Objects, vfs.FileRead, objects.Zero)
		zeroFW.Buffer = make([]byte, 8)
		if err := charDev.Queue.Push(zeroFW); err != nil {
			done <- fmt.Sprintf("push char read: %v", err)
			return
		}
		k.Sched.BlockOn(t, zeroFW.Handle(), zeroFW.Wait)

		status := syscall.FromError(read.Err())
		done <- fmt.Sprintf("sector round-trip ok (status=%s): %q, /dev/zero gave %d zero bytes",
			status, readBuf[:22], zeroFW.N)
	})

	select {
	case msg := <-done:
		fmt.Println(msg)
	case <-time.After(5 * time.Second):
		return fmt.Errorf("demo task never completed")
	}
	return nil
}
