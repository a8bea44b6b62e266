//go:build windows

package wincom

import (
	"fmt"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// HRESULT is a COM status code.
type HRESULT int32

// Well known status codes.
const (
	SOK                       = 0x00000000
	SFalse                    = 0x00000001
	ENoInterface              = 0x80004002
	EPointer                  = 0x80004003
	RPCEChangedMode           = 0x80010106
	AudclntEDeviceInvalidated = 0x88890004
	AudclntEUnsupportedFormat = 0x88890008
)

// Failed is true for error status codes.
func (hr HRESULT) Failed() bool { return hr < 0 }

// IsCode is true if hr is the given status code.
func (hr HRESULT) IsCode(code uint32) bool { return uint32(hr) == code }

func (hr HRESULT) Error() string {
	switch uint32(hr) {
	case ENoInterface:
		return "no such interface supported"
	case EPointer:
		return "invalid pointer"
	case RPCEChangedMode:
		return "thread already initialized with a different concurrency model"
	case AudclntEUnsupportedFormat:
		return "unsupported audio format"
	case AudclntEDeviceInvalidated:
		return "audio device invalidated"
	}
	return fmt.Sprintf("HRESULT 0x%08x", uint32(hr))
}

// Err returns hr as an error if it is a failure code, nil otherwise.
func (hr HRESULT) Err() error {
	if hr.Failed() {
		return hr
	}
	return nil
}

const clsctxAll = 0x1 | 0x2 | 0x4 | 0x10

const coinitMultithreaded = 0x0

var (
	ole32 = windows.NewLazySystemDLL("ole32.dll")

	procCoInitializeEx   = ole32.NewProc("CoInitializeEx")
	procCoCreateInstance = ole32.NewProc("CoCreateInstance")
	procCoTaskMemAlloc   = ole32.NewProc("CoTaskMemAlloc")
	procPropVariantClear = ole32.NewProc("PropVariantClear")

	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procSetThreadPriority = kernel32.NewProc("SetThreadPriority")
)

// IIDIUnknown is the interface id of IUnknown.
var IIDIUnknown = windows.GUID{Data1: 0x00000000, Data2: 0x0000, Data3: 0x0000,
	Data4: [8]byte{0xc0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46}}

// Call invokes the method with index method in the vtable of obj.
func Call(obj uintptr, method int, args ...uintptr) HRESULT {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	fn := *(*uintptr)(unsafe.Pointer(vtbl + uintptr(method)*unsafe.Sizeof(uintptr(0))))
	callArgs := make([]uintptr, 0, len(args)+1)
	callArgs = append(callArgs, obj)
	callArgs = append(callArgs, args...)
	r, _, _ := syscall.SyscallN(fn, callArgs...)
	return HRESULT(int32(uint32(r)))
}

// AddRef increments the reference count of obj.
func AddRef(obj uintptr) {
	Call(obj, 1)
}

// Release decrements the reference count of obj. It is a no-op for a zero
// obj.
func Release(obj uintptr) {
	if obj != 0 {
		Call(obj, 2)
	}
}

// QueryInterface returns the iid interface of obj.
func QueryInterface(obj uintptr, iid *windows.GUID) (uintptr, error) {
	var out uintptr
	hr := Call(obj, 0, uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&out)))
	if hr.Failed() {
		return 0, hr
	}
	return out, nil
}

// InitThread initializes COM for the calling thread in the multithreaded
// apartment. Threads already initialized in any apartment are accepted.
func InitThread() error {
	r, _, _ := procCoInitializeEx.Call(0, coinitMultithreaded)
	hr := HRESULT(int32(uint32(r)))
	if hr.Failed() && !hr.IsCode(RPCEChangedMode) {
		return fmt.Errorf("CoInitializeEx: %w", hr)
	}
	return nil
}

// ReleaseLater releases obj from a temporary COM initialized thread. It is
// meant for cleanups that run outside of any platform thread.
func ReleaseLater(obj uintptr) {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if InitThread() == nil {
			Release(obj)
		}
	}()
}

// CreateInstance creates an in-process instance of the clsid class and
// returns its iid interface.
func CreateInstance(clsid, iid *windows.GUID) (uintptr, error) {
	var out uintptr
	r, _, _ := syscall.SyscallN(procCoCreateInstance.Addr(),
		uintptr(unsafe.Pointer(clsid)), 0, clsctxAll,
		uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&out)))
	if hr := HRESULT(int32(uint32(r))); hr.Failed() {
		return 0, fmt.Errorf("CoCreateInstance: %w", hr)
	}
	return out, nil
}

// TaskMemAlloc allocates zeroed memory with the COM task allocator.
func TaskMemAlloc(size uintptr) (uintptr, error) {
	p, _, _ := procCoTaskMemAlloc.Call(size)
	if p == 0 {
		return 0, windows.ERROR_NOT_ENOUGH_MEMORY
	}
	clear(unsafe.Slice((*byte)(unsafe.Pointer(p)), size))
	return p, nil
}

// TaskMemFree frees memory allocated by the COM task allocator. It is a
// no-op for a zero p.
func TaskMemFree(p uintptr) {
	if p != 0 {
		windows.CoTaskMemFree(unsafe.Pointer(p))
	}
}

// TakeString converts a task allocator owned, NUL terminated UTF-16 string
// and frees it.
func TakeString(p uintptr) string {
	if p == 0 {
		return ""
	}
	s := windows.UTF16PtrToString((*uint16)(unsafe.Pointer(p)))
	TaskMemFree(p)
	return s
}

// String converts a NUL terminated UTF-16 string owned by the caller.
func String(p uintptr) string {
	if p == 0 {
		return ""
	}
	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(p)))
}

// PropVariantClear frees the contents of the PROPVARIANT at p.
func PropVariantClear(p uintptr) error {
	r, _, _ := procPropVariantClear.Call(p)
	return HRESULT(int32(uint32(r))).Err()
}

const threadPriorityTimeCritical = 15

// SetThreadTimeCritical raises the priority of the calling thread to time
// critical.
func SetThreadTimeCritical() error {
	r, _, err := procSetThreadPriority.Call(uintptr(windows.CurrentThread()),
		threadPriorityTimeCritical)
	if r == 0 {
		return fmt.Errorf("SetThreadPriority: %w", err)
	}
	return nil
}
