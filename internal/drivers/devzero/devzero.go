// Package devzero implements /dev/zero: reads fill the caller's buffer
// with zero bytes, writes discard their payload and report success.
// Alongside devnull, it exercises internal/dispatch's CharDevice path
// with a second, distinct body rather than a single hard-coded stand-in.
package devzero

import (
	"github.com/paval-belarus/moskit/internal/dispatch"
	"github.com/paval-belarus/moskit/internal/vfs"
)

// Module implements dispatch.Module for /dev/zero.
type Module struct{}

// New returns a ready-to-register devzero module.
func New() *Module { return &Module{} }

func (m *Module) Init() error { return nil }

func (m *Module) Exit() error { return nil }

// Complete services one FileWork: reads zero-fill the buffer in full,
// writes report every byte consumed.
func (m *Module) Complete(op dispatch.Work) error {
	fw, ok := op.(*vfs.FileWork)
	if !ok {
		return nil
	}
	switch fw.Op {
	case vfs.FileRead:
		for i := range fw.Buffer {
			fw.Buffer[i] = 0
		}
		fw.N = len(fw.Buffer)
	case vfs.FileWrite:
		fw.N = len(fw.Buffer)
	}
	return nil
}
