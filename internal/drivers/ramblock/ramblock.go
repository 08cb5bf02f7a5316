// Package ramblock implements a RAM-backed block device module: every
// sector lives in a plain Go byte slice rather than on real storage
// hardware. It exercises internal/dispatch's BlockDevice path (and,
// through vfs.BlockWork, the sector read/write contract spec.md §3
// describes) without needing the out-of-scope concrete ATA/SD
// controller drivers spec.md §1 carves out.
package ramblock

import (
	"sync"

	"github.com/paval-belarus/moskit/internal/dispatch"
	"github.com/paval-belarus/moskit/internal/kerr"
	"github.com/paval-belarus/moskit/internal/vfs"
)

// Module is a fixed-size RAM disk addressed in SectorSize-byte sectors.
type Module struct {
	mu         sync.Mutex
	sectorSize int
	sectors    [][]byte
}

// New allocates a RAM disk of sectorCount sectors, each sectorSize
// bytes, zero-filled.
func New(sectorSize, sectorCount int) *Module {
	sectors := make([][]byte, sectorCount)
	for i := range sectors {
		sectors[i] = make([]byte, sectorSize)
	}
	return &Module{sectorSize: sectorSize, sectors: sectors}
}

func (m *Module) Init() error { return nil }

func (m *Module) Exit() error { return nil }

// Complete services one BlockWork: BlockRead copies the sector into
// Buffer, BlockWrite copies Buffer into the sector. BlockPassthrough
// (e.g. a cache-flush command with no real hardware analogue here)
// is a no-op that succeeds for any in-range sector; every op fails for
// an out-of-range sector.
func (m *Module) Complete(op dispatch.Work) error {
	bw, ok := op.(*vfs.BlockWork)
	if !ok {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if int(bw.Sector) >= len(m.sectors) {
		return kerr.Wrap(kerr.InvalidArgument, "sector out of range")
	}
	sector := m.sectors[bw.Sector]

	switch bw.Op {
	case vfs.BlockRead:
		n := copy(bw.Buffer, sector)
		if n < m.sectorSize {
			return kerr.Wrap(kerr.InvalidArgument, "read buffer shorter than sector")
		}
	case vfs.BlockWrite:
		n := copy(sector, bw.Buffer)
		if n < m.sectorSize {
			return kerr.Wrap(kerr.InvalidArgument, "write buffer shorter than sector")
		}
	case vfs.BlockPassthrough:
	}
	return nil
}
