package vfs

import (
	"container/list"
	"hash/fnv"
	"sync"

	"github.com/paval-belarus/moskit/internal/objects"
)

// PathNode caches one resolved (parent inode, name) -> inode edge
// (spec.md §3 "Path nodes key a capacity-500 hash table of name->path
// node"). Destruction is use-count driven like every other Object.
type PathNode struct {
	objects.Object

	Name   string
	Parent objects.Handle // parent index node
	Inode  objects.Handle
}

func newPathNode(parent objects.Handle, name string, inode objects.Handle) *PathNode {
	n := &PathNode{Name: name, Parent: parent, Inode: inode}
	n.Object.Init(objects.KindPathNode, objects.Zero)
	return n
}

type pathKey struct {
	parent objects.Handle
	name   string
}

// PathTable is the capacity-500 hash table spec.md §3 names, keyed by
// (parent-inode, name). A miss is the caller's cue to issue an
// FsRequest{Op: FsLookupNode}; a hit returns the cached node without
// going to the owning module (spec.md §4.6 "Naming & lookup").
type PathTable struct {
	mu      sync.RWMutex
	reg     *objects.Registry
	buckets []list.List // of *PathNode
}

// NewPathTable returns an empty table with the given bucket count
// (internal/kconfig.Config.PathTableSize names 500).
func NewPathTable(reg *objects.Registry, buckets int) *PathTable {
	if buckets <= 0 {
		buckets = 1
	}
	return &PathTable{reg: reg, buckets: make([]list.List, buckets)}
}

func (t *PathTable) bucketFor(k pathKey) int {
	h := fnv.New32a()
	h.Write([]byte(k.name))
	var addr [8]byte
	for i := 0; i < 8; i++ {
		addr[i] = byte(k.parent >> (8 * i))
	}
	h.Write(addr[:])
	return int(h.Sum32()) % len(t.buckets)
}

// Lookup returns the cached index node for (parent, name), if present.
func (t *PathTable) Lookup(parent objects.Handle, name string) (objects.Handle, bool) {
	k := pathKey{parent, name}
	idx := t.bucketFor(k)

	t.mu.RLock()
	defer t.mu.RUnlock()
	for e := t.buckets[idx].Front(); e != nil; e = e.Next() {
		n := e.Value.(*PathNode)
		if n.Parent == parent && n.Name == name {
			return n.Inode, true
		}
	}
	return objects.Zero, false
}

// Insert caches a successful lookup result (spec.md §4.6 "New path
// nodes are inserted on successful lookup").
func (t *PathTable) Insert(parent objects.Handle, name string, inode objects.Handle) {
	k := pathKey{parent, name}
	idx := t.bucketFor(k)
	n := newPathNode(parent, name, inode)
	if t.reg != nil {
		t.reg.Register(&n.Object)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.buckets[idx].PushBack(n)
}

// Remove drops the cached entry for (parent, name), if present,
// dropping its object reference.
func (t *PathTable) Remove(parent objects.Handle, name string) {
	k := pathKey{parent, name}
	idx := t.bucketFor(k)

	t.mu.Lock()
	defer t.mu.Unlock()
	for e := t.buckets[idx].Front(); e != nil; e = e.Next() {
		n := e.Value.(*PathNode)
		if n.Parent == parent && n.Name == name {
			t.buckets[idx].Remove(e)
			if t.reg != nil {
				n.Object.Drop(t.reg)
			}
			return
		}
	}
}
