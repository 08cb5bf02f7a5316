// Package dispatch implements spec.md §4.6/§6's module registry and
// driver-module ABI: a module registers a block device, character
// device, or filesystem driver, and dispatch drives its work queue
// through the module's Complete method until the module exits or
// crashes. Grounded on the teacher's virtio_rng.go init/request/poll-
// completion shape (mazboot/golang/main/virtio_rng.go: initVirtIORNG,
// rngRequestBytes, rngPollCompletion) generalized into an explicit
// Init/Complete/Exit interface, and on pet_os's kernel/src/drivers/
// {management,auto_load,module_task}.rs for the registry-of-modules
// and crash/unload-wakes-waiters shape.
package dispatch

import (
	"sync"

	"github.com/paval-belarus/moskit/internal/kerr"
	"github.com/paval-belarus/moskit/internal/klog"
	"github.com/paval-belarus/moskit/internal/ksync"
	"github.com/paval-belarus/moskit/internal/objects"
	"github.com/paval-belarus/moskit/internal/vfs"
	"go.uber.org/zap"
)

// Work is whatever a module's work loop pops off its queue: a pending
// request that must eventually be Completed, waking its producer.
// *vfs.BlockWork, *vfs.FileWork and *vfs.FsRequest all satisfy this
// through their embedded workBase.
type Work interface {
	Complete(error)
}

// Module is the ABI a driver module implements (spec.md §6's
// "Module ABI": init / exit / complete(ops)). RegisterBlockDevice,
// RegisterCharDevice and RegisterFS each associate one Module with the
// device/filesystem it drives; the driver supplies the I/O logic,
// dispatch supplies the queue, the work loop, and the wake-up.
type Module interface {
	// Init prepares the module. Neither the Run* functions nor
	// Registry.Unregister call Init or Exit.
	Init() error
	// Complete performs the I/O one pending work item describes and
	// returns its result (nil on success). The caller (the Run*
	// functions below) wakes the item's producer with this error.
	Complete(op Work) error
	// Exit shuts the module down.
	Exit() error
}

// ModuleInfo is the kernel object representing one loaded module
// (spec.md §6 GetModuleInfo). Every device and filesystem the module
// registers is created as its child, so Registry.Unregister can find
// everything the module owns via internal/objects.Registry.Subtree.
type ModuleInfo struct {
	objects.Object
	Name string
}

// BlockDevice is a registered block device driver's kernel-visible
// handle and work queue (spec.md §6 RegBlockDevice).
type BlockDevice struct {
	objects.Object
	Name       string
	SectorSize int
	Queue      *ksync.Queue[*vfs.BlockWork]
}

// CharDevice is a registered character device driver's kernel-visible
// handle and work queue (spec.md §6 RegCharDevice).
type CharDevice struct {
	objects.Object
	Name  string
	Queue *ksync.Queue[*vfs.FileWork]
}

// FsDriver is a registered filesystem driver's kernel-visible handle
// and work queue (spec.md §6 RegFs). A FsDriver is the module-side
// counterpart of a vfs.SuperBlock instance created when it is mounted.
type FsDriver struct {
	objects.Object
	Name  string
	Queue *ksync.Queue[*vfs.FsRequest]
}

// Registry is the single process-wide table of loaded modules and the
// devices/filesystems they have registered (spec.md §6's module-
// registration syscalls; spec.md §7's auto-unload waiter wake-up).
type Registry struct {
	mu      sync.Mutex
	objReg  *objects.Registry
	log     *klog.Logger
	modules map[string]*ModuleInfo

	blockDevices map[string]*BlockDevice
	charDevices  map[string]*CharDevice
	filesystems  map[string]*FsDriver
}

// NewRegistry returns an empty module registry.
func NewRegistry(objReg *objects.Registry, log *klog.Logger) *Registry {
	return &Registry{
		objReg:       objReg,
		log:          log,
		modules:      make(map[string]*ModuleInfo),
		blockDevices: make(map[string]*BlockDevice),
		charDevices:  make(map[string]*CharDevice),
		filesystems:  make(map[string]*FsDriver),
	}
}

// RegisterModuleInfo loads a module by name, returning its kernel
// object. Every subsequent Register{BlockDevice,CharDevice,FS} call
// made with this handle creates its device/filesystem as a child of
// it, so a single Unregister call can find and cancel everything it
// owns.
func (r *Registry) RegisterModuleInfo(name string) (*ModuleInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[name]; exists {
		return nil, kerr.Wrap(kerr.AlreadyExists, "module already loaded: "+name)
	}
	m := &ModuleInfo{Name: name}
	m.Object.Init(objects.KindModule, objects.Zero)
	r.objReg.Register(&m.Object)
	r.modules[name] = m
	return m, nil
}

// RegisterBlockDevice registers a block device owned by module,
// with its own bounded BlockWork queue (spec.md §6 RegBlockDevice).
func (r *Registry) RegisterBlockDevice(module objects.Handle, name string, sectorSize, queueCapacity int) (*BlockDevice, error) {
	r.mu.Lock()
	if _, exists := r.blockDevices[name]; exists {
		r.mu.Unlock()
		return nil, kerr.Wrap(kerr.AlreadyExists, "block device already registered: "+name)
	}
	dev := &BlockDevice{Name: name, SectorSize: sectorSize}
	dev.Object.Init(objects.KindBlockDevice, module)
	r.objReg.Register(&dev.Object)
	dev.Queue = ksync.NewQueue[*vfs.BlockWork](r.objReg, dev.Object.Handle(), queueCapacity)
	r.blockDevices[name] = dev
	r.mu.Unlock()
	return dev, nil
}

// RegisterCharDevice registers a character device owned by module,
// with its own bounded FileWork queue (spec.md §6 RegCharDevice).
func (r *Registry) RegisterCharDevice(module objects.Handle, name string, queueCapacity int) (*CharDevice, error) {
	r.mu.Lock()
	if _, exists := r.charDevices[name]; exists {
		r.mu.Unlock()
		return nil, kerr.Wrap(kerr.AlreadyExists, "char device already registered: "+name)
	}
	dev := &CharDevice{Name: name}
	dev.Object.Init(objects.KindCharDevice, module)
	r.objReg.Register(&dev.Object)
	dev.Queue = ksync.NewQueue[*vfs.FileWork](r.objReg, dev.Object.Handle(), queueCapacity)
	r.charDevices[name] = dev
	r.mu.Unlock()
	return dev, nil
}

// RegisterFS registers a filesystem driver owned by module, with its
// own bounded FsRequest queue (spec.md §6 RegFs). Mounting it (spec.md
// §6 MountDevFs) is a separate step that creates the vfs.SuperBlock
// instance pointed at this queue.
func (r *Registry) RegisterFS(module objects.Handle, name string, queueCapacity int) (*FsDriver, error) {
	r.mu.Lock()
	if _, exists := r.filesystems[name]; exists {
		r.mu.Unlock()
		return nil, kerr.Wrap(kerr.AlreadyExists, "filesystem already registered: "+name)
	}
	fs := &FsDriver{Name: name}
	fs.Object.Init(objects.KindFsDriver, module)
	r.objReg.Register(&fs.Object)
	fs.Queue = ksync.NewQueue[*vfs.FsRequest](r.objReg, fs.Object.Handle(), queueCapacity)
	r.filesystems[name] = fs
	r.mu.Unlock()
	return fs, nil
}

func (r *Registry) BlockDeviceByName(name string) (*BlockDevice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.blockDevices[name]
	return d, ok
}

func (r *Registry) CharDeviceByName(name string) (*CharDevice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.charDevices[name]
	return d, ok
}

func (r *Registry) FSByName(name string) (*FsDriver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.filesystems[name]
	return d, ok
}

// ModuleByName returns a loaded module's info object (spec.md §6
// GetModuleInfo).
func (r *Registry) ModuleByName(name string) (*ModuleInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modules[name]
	return m, ok
}

// Unregister tears down a loaded module. It walks every object
// reachable from the module's handle (its devices and their queues)
// and cancels each with kerr.InvalidHandle, then cancels every work
// item still sitting on one of those queues the same way, waking every
// blocked producer — spec.md §7's
// auto-unload-waiter-set open question, resolved: "any waiters on
// their queues are woken with InvalidHandle".
func (r *Registry) Unregister(module objects.Handle) {
	handles := r.objReg.Subtree(module)
	cancelErr := kerr.Wrap(kerr.InvalidHandle, "owning module unloaded")
	for _, h := range handles {
		if obj, ok := r.objReg.Lookup(h); ok {
			obj.Cancel(cancelErr)
		}
	}

	owned := make(map[objects.Handle]bool, len(handles))
	for _, h := range handles {
		owned[h] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Work items are root objects, not children of the queue they sit
	// on, so the subtree walk above does not reach them.
	for name, d := range r.blockDevices {
		if owned[d.Object.Handle()] {
			for w, ok := d.Queue.TryPop(); ok; w, ok = d.Queue.TryPop() {
				w.Cancel(cancelErr)
			}
			delete(r.blockDevices, name)
		}
	}
	for name, d := range r.charDevices {
		if owned[d.Object.Handle()] {
			for w, ok := d.Queue.TryPop(); ok; w, ok = d.Queue.TryPop() {
				w.Cancel(cancelErr)
			}
			delete(r.charDevices, name)
		}
	}
	for name, d := range r.filesystems {
		if owned[d.Object.Handle()] {
			for w, ok := d.Queue.TryPop(); ok; w, ok = d.Queue.TryPop() {
				w.Cancel(cancelErr)
			}
			delete(r.filesystems, name)
		}
	}
	for name, m := range r.modules {
		if owned[m.Object.Handle()] {
			delete(r.modules, name)
		}
	}

	if r.log != nil {
		r.log.Info("module unregistered", zap.Int("objects_cancelled", len(handles)))
	}
}

// RunBlockDevice drives dev's work loop: blocking-pop the next
// BlockWork, hand it to mod.Complete, then wake its producer with the
// result. Returns once dev.Queue is closed (the module was
// unregistered). Intended to run as the module's own task.
func RunBlockDevice(dev *BlockDevice, mod Module) {
	for {
		w, err := dev.Queue.BlockingPop()
		if err != nil {
			return
		}
		w.Complete(mod.Complete(w))
	}
}

// RunCharDevice is RunBlockDevice's counterpart for a CharDevice.
func RunCharDevice(dev *CharDevice, mod Module) {
	for {
		w, err := dev.Queue.BlockingPop()
		if err != nil {
			return
		}
		w.Complete(mod.Complete(w))
	}
}

// RunFS is RunBlockDevice's counterpart for a FsDriver.
func RunFS(fs *FsDriver, mod Module) {
	for {
		w, err := fs.Queue.BlockingPop()
		if err != nil {
			return
		}
		w.Complete(mod.Complete(w))
	}
}
