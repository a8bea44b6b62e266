//go:build windows

package wincom

import (
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// iidIAgileObject marks objects that may be called from any apartment.
// Every sink answers it since sinks are plain Go values.
var iidIAgileObject = windows.GUID{Data1: 0x94ea2b94, Data2: 0xe9cc, Data3: 0x49e0,
	Data4: [8]byte{0xc0, 0xff, 0xee, 0x64, 0xca, 0x8f, 0x5b, 0x90}}

// object is the memory layout of a sink. Sinks live in task allocator
// memory so that the platform can keep pointers to them.
type object struct {
	vtbl uintptr
	refs int32
	id   uint32
}

type sinkEntry struct {
	vt   *Vtable
	impl any
}

var (
	sinks      sync.Map // uint32 -> *sinkEntry
	lastSinkID atomic.Uint32
)

var (
	queryInterfaceCallback = syscall.NewCallback(sinkQueryInterface)
	addRefCallback         = syscall.NewCallback(sinkAddRef)
	releaseCallback        = syscall.NewCallback(sinkRelease)
)

// Vtable is the method table of a COM interface implemented in Go. Vtables
// must stay reachable for as long as any sink using them exists, so they are
// meant to be package level values.
type Vtable struct {
	iid windows.GUID
	fns []uintptr
}

// NewVtable returns the vtable of the iid interface. methods are the
// callbacks (created with syscall.NewCallback) of the interface methods
// that follow the IUnknown ones.
func NewVtable(iid windows.GUID, methods ...uintptr) *Vtable {
	fns := make([]uintptr, 0, 3+len(methods))
	fns = append(fns, queryInterfaceCallback, addRefCallback, releaseCallback)
	fns = append(fns, methods...)
	return &Vtable{iid: iid, fns: fns}
}

// NewSink creates a COM object implementing the vt interface. Its method
// callbacks retrieve impl with SinkImpl. The returned object has one
// reference owned by the caller.
func NewSink(vt *Vtable, impl any) (uintptr, error) {
	p, err := TaskMemAlloc(unsafe.Sizeof(object{}))
	if err != nil {
		return 0, err
	}
	obj := (*object)(unsafe.Pointer(p))
	obj.vtbl = uintptr(unsafe.Pointer(&vt.fns[0]))
	obj.refs = 1
	obj.id = lastSinkID.Add(1)
	sinks.Store(obj.id, &sinkEntry{vt: vt, impl: impl})
	return p, nil
}

func lookupSink(this uintptr) *sinkEntry {
	if this == 0 {
		return nil
	}
	obj := (*object)(unsafe.Pointer(this))
	v, ok := sinks.Load(obj.id)
	if !ok {
		return nil
	}
	return v.(*sinkEntry)
}

// SinkImpl returns the Go value of the sink this, or nil if this is not a
// live sink.
func SinkImpl(this uintptr) any {
	if e := lookupSink(this); e != nil {
		return e.impl
	}
	return nil
}

func sinkQueryInterface(this, riid, ppv uintptr) uintptr {
	if ppv == 0 || riid == 0 {
		return EPointer
	}
	out := (*uintptr)(unsafe.Pointer(ppv))
	iid := *(*windows.GUID)(unsafe.Pointer(riid))
	e := lookupSink(this)
	if e == nil || (iid != IIDIUnknown && iid != iidIAgileObject && iid != e.vt.iid) {
		*out = 0
		return ENoInterface
	}
	*out = this
	sinkAddRef(this)
	return SOK
}

func sinkAddRef(this uintptr) uintptr {
	obj := (*object)(unsafe.Pointer(this))
	return uintptr(atomic.AddInt32(&obj.refs, 1))
}

func sinkRelease(this uintptr) uintptr {
	obj := (*object)(unsafe.Pointer(this))
	refs := atomic.AddInt32(&obj.refs, -1)
	if refs == 0 {
		sinks.Delete(obj.id)
		TaskMemFree(this)
	}
	return uintptr(refs)
}
