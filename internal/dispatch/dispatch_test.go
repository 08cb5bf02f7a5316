package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/paval-belarus/moskit/internal/kerr"
	"github.com/paval-belarus/moskit/internal/objects"
	"github.com/paval-belarus/moskit/internal/vfs"
)

type fakeBlockModule struct {
	initCalled bool
	exitCalled bool
	onComplete func(op Work) error
}

func (m *fakeBlockModule) Init() error { m.initCalled = true; return nil }
func (m *fakeBlockModule) Exit() error { m.exitCalled = true; return nil }
func (m *fakeBlockModule) Complete(op Work) error {
	if m.onComplete != nil {
		return m.onComplete(op)
	}
	return nil
}

func TestRegisterBlockDeviceRejectsDuplicateName(t *testing.T) {
	objReg := objects.NewRegistry()
	reg := NewRegistry(objReg, nil)
	mod, err := reg.RegisterModuleInfo("ramblock")
	if err != nil {
		t.Fatalf("RegisterModuleInfo: %v", err)
	}

	if _, err := reg.RegisterBlockDevice(mod.Handle(), "ram0", 512, 8); err != nil {
		t.Fatalf("first RegisterBlockDevice: %v", err)
	}
	if _, err := reg.RegisterBlockDevice(mod.Handle(), "ram0", 512, 8); !kerr.Is(err, kerr.AlreadyExists) {
		t.Fatalf("second RegisterBlockDevice err = %v, want AlreadyExists", err)
	}
}

func TestRunBlockDeviceDrivesWorkThroughModule(t *testing.T) {
	objReg := objects.NewRegistry()
	reg := NewRegistry(objReg, nil)
	mod, _ := reg.RegisterModuleInfo("ramblock")
	dev, err := reg.RegisterBlockDevice(mod.Handle(), "ram0", 512, 8)
	if err != nil {
		t.Fatalf("RegisterBlockDevice: %v", err)
	}

	backing := make([]byte, 512)
	m := &fakeBlockModule{onComplete: func(op Work) error {
		w := op.(*vfs.BlockWork)
		copy(backing, w.Buffer)
		return nil
	}}
	if err := m.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	go RunBlockDevice(dev, m)

	w := vfs.NewBlockWork(objReg, vfs.BlockWrite, 0, []byte("hello world!!!!!"))
	if err := dev.Queue.Push(w); err != nil {
		t.Fatalf("Push: %v", err)
	}
	w.Wait()
	if w.Err() != nil {
		t.Fatalf("Err() = %v, want nil", w.Err())
	}
	if string(backing[:16]) != "hello world!!!!!" {
		t.Fatalf("backing = %q, want written payload", backing[:16])
	}
}

func TestUnregisterWakesBlockedPopperWithInvalidHandle(t *testing.T) {
	objReg := objects.NewRegistry()
	reg := NewRegistry(objReg, nil)
	mod, _ := reg.RegisterModuleInfo("ramblock")
	dev, _ := reg.RegisterBlockDevice(mod.Handle(), "ram0", 512, 8)

	popErrCh := make(chan error, 1)
	go func() {
		_, err := dev.Queue.BlockingPop()
		popErrCh <- err
	}()

	// Give the popper a chance to actually park before unregistering.
	time.Sleep(20 * time.Millisecond)
	reg.Unregister(mod.Handle())

	select {
	case err := <-popErrCh:
		if !kerr.Is(err, kerr.InvalidHandle) {
			t.Fatalf("BlockingPop error = %v, want InvalidHandle", err)
		}
	case <-time.After(time.Second):
		t.Fatal("a BlockingPop blocked before Unregister was never woken")
	}

	if _, ok := reg.BlockDeviceByName("ram0"); ok {
		t.Fatal("BlockDeviceByName still finds the device after Unregister")
	}

	if _, err := reg.RegisterBlockDevice(mod.Handle(), "ram0", 512, 8); err != nil {
		t.Fatalf("re-registering ram0 after Unregister: %v", err)
	}
}

func TestUnregisterClosesQueueForFutureBlockingPops(t *testing.T) {
	objReg := objects.NewRegistry()
	reg := NewRegistry(objReg, nil)
	mod, _ := reg.RegisterModuleInfo("devnull")
	dev, _ := reg.RegisterCharDevice(mod.Handle(), "null", 4)

	reg.Unregister(mod.Handle())

	if _, err := dev.Queue.BlockingPop(); !kerr.Is(err, kerr.InvalidHandle) {
		t.Fatalf("BlockingPop after Unregister = %v, want InvalidHandle", err)
	}
}

func TestRunCharDevicePropagatesModuleError(t *testing.T) {
	objReg := objects.NewRegistry()
	reg := NewRegistry(objReg, nil)
	mod, _ := reg.RegisterModuleInfo("devnull")
	dev, err := reg.RegisterCharDevice(mod.Handle(), "null", 4)
	if err != nil {
		t.Fatalf("RegisterCharDevice: %v", err)
	}

	wantErr := errors.New("boom")
	m := &fakeBlockModule{onComplete: func(op Work) error { return wantErr }}
	go RunCharDevice(dev, m)

	w := vfs.NewFileWork(objReg, vfs.FileRead, objects.Zero)
	if err := dev.Queue.Push(w); err != nil {
		t.Fatalf("Push: %v", err)
	}
	w.Wait()
	if w.Err() != wantErr {
		t.Fatalf("Err() = %v, want %v", w.Err(), wantErr)
	}
}
