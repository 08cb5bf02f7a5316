// Package pic models the 8259 programmable interrupt controller: line
// masking and end-of-interrupt acknowledgement. The actual callback
// chain and dispatch-until-handled semantics of spec.md §4.5 live in
// internal/irq, which drives a PIC through this package the way the
// teacher's gic_qemu.go sits below its interrupt-object dispatcher.
package pic

import "sync"

const numLines = 16

// PIC is one simulated 8259 pair (master+slave treated as one 16-line
// controller, matching the flattened line numbering spec.md §4.5 uses).
type PIC struct {
	mu      sync.Mutex
	masked  [numLines]bool
	eoiLast int // last line EOI'd, -1 if none yet
}

// New returns a PIC with every line masked, matching real hardware
// reset state before the kernel unmasks the lines it owns.
func New() *PIC {
	p := &PIC{eoiLast: -1}
	for i := range p.masked {
		p.masked[i] = true
	}
	return p
}

// Unmask enables a line so its interrupts are delivered.
func (p *PIC) Unmask(line int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.masked[line] = false
}

// Mask disables a line.
func (p *PIC) Mask(line int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.masked[line] = true
}

// Masked reports whether a line is currently masked.
func (p *PIC) Masked(line int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.masked[line]
}

// EOI acknowledges the interrupt controller for a line. Per spec.md
// §4.5, EOI is issued unconditionally once the callback chain has run,
// regardless of whether any callback claimed to have handled it.
func (p *PIC) EOI(line int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eoiLast = line
}

// LastEOI returns the most recently EOI'd line, for tests; -1 if none.
func (p *PIC) LastEOI() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eoiLast
}
