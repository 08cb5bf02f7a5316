package vfs

import (
	"github.com/paval-belarus/moskit/internal/objects"
)

// DeviceType names what backs an IndexNode (spec.md §3 "device type").
type DeviceType int

const (
	DeviceNone DeviceType = iota
	DeviceBlock
	DeviceChar
)

// FileOps is the operations table an IndexNode exposes to any File
// opened against it; a File inherits its owning inode's table (spec.md
// §3 "an open file ... holds ... an operations pointer inherited from
// the index node").
type FileOps struct {
	Read  func(f *File, buf []byte, offset int64) (int, error)
	Write func(f *File, buf []byte, offset int64) (int, error)
	Ioctl func(f *File, request, arg uintptr) (uintptr, error)
}

// IndexNode is the classical VFS inode (spec.md §3): a file-operations
// table and device type, owned by exactly one SuperBlock.
type IndexNode struct {
	objects.Object

	Ino        uint64
	Device     DeviceType
	Ops        FileOps
	SuperBlock objects.Handle
}

// NewIndexNode allocates an IndexNode as a child of its owning
// super-block.
func NewIndexNode(reg *objects.Registry, sb objects.Handle, ino uint64, device DeviceType, ops FileOps) *IndexNode {
	n := &IndexNode{Ino: ino, Device: device, Ops: ops, SuperBlock: sb}
	n.Object.Init(objects.KindIndexNode, sb)
	reg.Register(&n.Object)
	return n
}

// SuperBlock owns a set of index nodes reachable under one mount
// (spec.md §3). Its Queue is the FsRequest queue the owning driver
// module's task blocking-pops from.
type SuperBlock struct {
	objects.Object

	Name  string
	Kind  string
	Root  objects.Handle // root IndexNode handle
	Queue FsWorkQueue
}

// FsWorkQueue is the subset of *ksync.Queue[*FsRequest] a SuperBlock
// needs, declared as an interface so tests can substitute a fake.
type FsWorkQueue interface {
	Push(*FsRequest) error
}

// NewSuperBlock allocates a SuperBlock.
func NewSuperBlock(reg *objects.Registry, name, kind string, queue FsWorkQueue) *SuperBlock {
	sb := &SuperBlock{Name: name, Kind: kind, Queue: queue}
	sb.Object.Init(objects.KindSuperBlock, objects.Zero)
	reg.Register(&sb.Object)
	return sb
}

// MountPoint references a super-block and an optional parent mount
// (spec.md §3 "root has none").
type MountPoint struct {
	objects.Object

	SuperBlock objects.Handle
	Parent     objects.Handle
	Path       string
}

// NewMountPoint allocates a MountPoint. parent is objects.Zero for the
// root mount.
func NewMountPoint(reg *objects.Registry, sb objects.Handle, parent objects.Handle, path string) *MountPoint {
	m := &MountPoint{SuperBlock: sb, Parent: parent, Path: path}
	m.Object.Init(objects.KindMountPoint, parent)
	reg.Register(&m.Object)
	return m
}

// OpenMode is a bitmask of how a File was opened.
type OpenMode uint32

const (
	OpenRead OpenMode = 1 << iota
	OpenWrite
	OpenAppend
)

// File is an open-file handle: pins its index node, holds an offset,
// an open-mode bitmap, and the operations table inherited from the
// inode (spec.md §3).
type File struct {
	objects.Object

	Inode  objects.Handle
	Offset int64
	Mode   OpenMode
	Ops    FileOps
}

// NewFile opens inode, inheriting its operations table.
func NewFile(reg *objects.Registry, inode *IndexNode, mode OpenMode) *File {
	f := &File{Inode: inode.Handle(), Mode: mode, Ops: inode.Ops}
	f.Object.Init(objects.KindFile, inode.Handle())
	reg.Register(&f.Object)
	return f
}

// Read calls the inherited Read operation at the file's current
// offset and advances it.
func (f *File) Read(buf []byte) (int, error) {
	if f.Ops.Read == nil {
		return 0, nil
	}
	n, err := f.Ops.Read(f, buf, f.Offset)
	f.Offset += int64(n)
	return n, err
}

// Write calls the inherited Write operation at the file's current
// offset and advances it. OpenAppend is not consulted: an append-mode
// File also writes at its current offset.
func (f *File) Write(buf []byte) (int, error) {
	if f.Ops.Write == nil {
		return 0, nil
	}
	n, err := f.Ops.Write(f, buf, f.Offset)
	f.Offset += int64(n)
	return n, err
}
