package ramblock

import (
	"testing"

	"github.com/paval-belarus/moskit/internal/kerr"
	"github.com/paval-belarus/moskit/internal/objects"
	"github.com/paval-belarus/moskit/internal/vfs"
)

func TestWriteThenReadRoundTripsSectorContents(t *testing.T) {
	reg := objects.NewRegistry()
	m := New(512, 4)

	payload := make([]byte, 512)
	copy(payload, "hello ramblock")
	write := vfs.NewBlockWork(reg, vfs.BlockWrite, 2, payload)
	if err := m.Complete(write); err != nil {
		t.Fatalf("Complete(write): %v", err)
	}

	out := make([]byte, 512)
	read := vfs.NewBlockWork(reg, vfs.BlockRead, 2, out)
	if err := m.Complete(read); err != nil {
		t.Fatalf("Complete(read): %v", err)
	}
	if string(out[:14]) != "hello ramblock" {
		t.Fatalf("read back %q, want hello ramblock", out[:14])
	}
}

func TestCompleteRejectsOutOfRangeSector(t *testing.T) {
	reg := objects.NewRegistry()
	m := New(512, 4)

	w := vfs.NewBlockWork(reg, vfs.BlockRead, 99, make([]byte, 512))
	err := m.Complete(w)
	if !kerr.Is(err, kerr.InvalidArgument) {
		t.Fatalf("Complete out-of-range sector = %v, want InvalidArgument", err)
	}
}

func TestCompletePassthroughIsNoopSuccess(t *testing.T) {
	reg := objects.NewRegistry()
	m := New(512, 4)

	w := vfs.NewBlockWork(reg, vfs.BlockPassthrough, 0, nil)
	if err := m.Complete(w); err != nil {
		t.Fatalf("Complete(passthrough): %v", err)
	}
}
