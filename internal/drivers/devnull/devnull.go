// Package devnull implements the simplest possible character device
// module: reads return zero bytes, writes discard their payload and
// report success. It exists to exercise internal/dispatch's CharDevice
// registration and work loop end to end without needing any of the
// out-of-scope concrete drivers spec.md §1 carves out (UART, keyboard,
// ...). Grounded on the teacher's virtio_rng.go init/request/complete
// shape, generalized to a no-op body.
package devnull

import (
	"github.com/paval-belarus/moskit/internal/dispatch"
	"github.com/paval-belarus/moskit/internal/vfs"
)

// Module implements dispatch.Module for /dev/null.
type Module struct{}

// New returns a ready-to-register devnull module.
func New() *Module { return &Module{} }

func (m *Module) Init() error { return nil }

func (m *Module) Exit() error { return nil }

// Complete services one FileWork: reads report zero bytes (EOF),
// writes report every byte consumed.
func (m *Module) Complete(op dispatch.Work) error {
	fw, ok := op.(*vfs.FileWork)
	if !ok {
		return nil
	}
	switch fw.Op {
	case vfs.FileRead:
		fw.N = 0
	case vfs.FileWrite:
		fw.N = len(fw.Buffer)
	}
	return nil
}
