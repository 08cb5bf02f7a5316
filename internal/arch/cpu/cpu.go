// Package cpu models the saved CPU context a task carries and the
// callee-saved-register frame a context switch would save/restore on
// real hardware (spec.md §3 Task, §4.4 Context switch). Grounded on the
// teacher's scheduler_bootstrap.go / stack_growth.go commentary about
// the callee-saved frame a context switch pushes.
package cpu

import "golang.org/x/sys/cpu"

// Context is the opaque saved-register slot for one task. On real x86
// this would be the stack pointer anchoring a pushed callee-saved
// frame (ebx, esi, edi, ebp) plus the return address the trampoline
// resumes at; hosted, it only needs to remember which Go function a
// fresh task should start in, since the goroutine backing the task is
// the "stack".
type Context struct {
	// Entry is the routine a brand-new task's trampoline jumps to.
	// Nil for a task that has already run past its trampoline.
	Entry func(arg any)
	// Arg is the single argument the trampoline pops before jumping,
	// mirroring new_task(fn, arg, priority) in spec.md §4.4.
	Arg any
}

// NewEntryContext builds the initial context for a brand-new task.
func NewEntryContext(entry func(arg any), arg any) Context {
	return Context{Entry: entry, Arg: arg}
}

// Features reports the host CPU features the hosted kernel can see.
// Real x86 boot code would read CPUID directly; moskit asks the Go
// runtime's own feature detector (the same one golang.org/x/sys/cpu
// exposes to hanwen-go-fuse and canonical-snapd for their own
// platform-specific fast paths). The boot path does not call or log
// it.
func Features() []string {
	var features []string
	if cpu.X86.HasSSE2 {
		features = append(features, "sse2")
	}
	if cpu.X86.HasSSE42 {
		features = append(features, "sse4.2")
	}
	if cpu.X86.HasAVX {
		features = append(features, "avx")
	}
	if cpu.X86.HasAVX2 {
		features = append(features, "avx2")
	}
	return features
}
