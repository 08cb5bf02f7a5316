// Package kpanic implements the kernel's one fatal-condition path:
// a logged halt, the hosted analogue of halting the CPU. Grounded on
// the teacher's panic_halt abort (mirrored from pet_os's panic_halt
// crate usage) — truly fatal conditions never unwind, they stop.
package kpanic

import (
	"fmt"

	"github.com/paval-belarus/moskit/internal/klog"
)

// state records whether Halt has been called and why, for Halted and
// LastReason to report.
type state struct {
	halted bool
	reason string
}

var last state

// park blocks the calling goroutine forever. It is a variable so code
// inside this package can replace it to observe a Halt call without
// hanging.
var park = func() { select {} }

// Halt logs a fatal condition and then blocks forever. Real hardware
// would execute `cli; hlt`; a hosted process instead parks the calling
// goroutine so nothing further executes on it.
func Halt(log *klog.Logger, format string, args ...any) {
	reason := fmt.Sprintf(format, args...)
	last = state{halted: true, reason: reason}
	if log != nil {
		log.Error("fatal: " + reason)
	}
	park()
}

// Reset clears the halted-state latch; for tests that exercise Halt
// indirectly by checking LastReason instead of actually blocking.
func Reset() {
	last = state{}
}

// Halted reports whether Halt has been invoked since the last Reset.
func Halted() bool {
	return last.halted
}

// LastReason returns the reason passed to the most recent Halt call.
func LastReason() string {
	return last.reason
}
