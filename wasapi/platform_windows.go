//go:build windows && (amd64 || arm64)

package wasapi

import (
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/companyzero/winaudio/internal/wincom"
	"golang.org/x/sys/windows"
)

func guid(d1 uint32, d2, d3 uint16, d4 [8]byte) windows.GUID {
	return windows.GUID{Data1: d1, Data2: d2, Data3: d3, Data4: d4}
}

var (
	clsidMMDeviceEnumerator = guid(0xbcde0395, 0xe52f, 0x467c, [8]byte{0x8e, 0x3d, 0xc4, 0x57, 0x92, 0x91, 0x69, 0x2e})

	iidIMMDeviceEnumerator    = guid(0xa95664d2, 0x9614, 0x4f35, [8]byte{0xa7, 0x46, 0xde, 0x8d, 0xb6, 0x36, 0x17, 0xe6})
	iidIAudioClient           = guid(0x1cb9ad4c, 0xdbfa, 0x4c32, [8]byte{0xb1, 0x78, 0xc2, 0xf5, 0x68, 0xa7, 0x03, 0xb2})
	iidIAudioCaptureClient    = guid(0xc8adbd64, 0xe71e, 0x48a0, [8]byte{0xa4, 0xde, 0x18, 0x5c, 0x39, 0x5c, 0xd3, 0x17})
	iidIAudioRenderClient     = guid(0xf294acfc, 0x3146, 0x4483, [8]byte{0xa7, 0xbf, 0xad, 0xdc, 0xa7, 0xc2, 0x60, 0xe2})
	iidIAudioSessionManager2  = guid(0x77aa99a0, 0x1bd6, 0x484f, [8]byte{0x8b, 0xc7, 0x2c, 0x65, 0x4c, 0x9a, 0x9b, 0x6f})
	iidIAudioSessionControl2  = guid(0xbfb7ff88, 0x7239, 0x4fc9, [8]byte{0x8f, 0xa2, 0x07, 0xc9, 0x50, 0xbe, 0x9c, 0x6d})
	iidIAudioSessionEvents    = guid(0x24918acc, 0x64b3, 0x37c1, [8]byte{0x8c, 0xa9, 0x74, 0xa6, 0x6e, 0x99, 0x57, 0xa8})
	iidIAudioSessionNotif     = guid(0x641dd20b, 0x4d41, 0x49cc, [8]byte{0xab, 0xa3, 0x17, 0x4b, 0x94, 0x77, 0xbb, 0x08})
	iidIMMNotificationClient  = guid(0x7991eec9, 0x7e89, 0x4d85, [8]byte{0x83, 0x90, 0x6c, 0x70, 0x3c, 0xec, 0x60, 0xc0})
	iidISimpleAudioVolume     = guid(0x87ce5498, 0x68d6, 0x44e5, [8]byte{0x92, 0x15, 0x6d, 0xa4, 0x7e, 0xf8, 0x83, 0xd8})
	iidIActivateCompletionHnd = guid(0x41d949ab, 0x9862, 0x444a, [8]byte{0x80, 0xf6, 0xc2, 0x61, 0x33, 0x4d, 0xa5, 0xeb})

	devInterfaceAudioCapture = guid(0x2eef81be, 0x33fa, 0x4800, [8]byte{0x96, 0x70, 0x1c, 0xd4, 0x74, 0x97, 0x2c, 0x3f})
	devInterfaceAudioRender  = guid(0xe6327cad, 0xdcec, 0x4949, [8]byte{0xae, 0x8a, 0x99, 0x1e, 0x97, 0x6a, 0x79, 0xd2})

	pkeyDeviceFriendlyName = PropertyKey{
		FmtID: GUID{0xa45c254e, 0xdf1c, 0x4efd, [8]byte{0x80, 0x20, 0x67, 0xd1, 0x46, 0xa8, 0x50, 0xe0}},
		PID:   14,
	}
)

const virtualAudioDeviceProcessLoopback = `VAD\Process_Loopback`

// Vtable indices of the called interfaces. IUnknown takes 0 to 2.
const (
	mmdeEnumAudioEndpoints          = 3
	mmdeGetDefaultAudioEndpoint     = 4
	mmdeRegisterEndpointNotif       = 6
	mmdeUnregisterEndpointNotif     = 7
	mmdcGetCount                    = 3
	mmdcItem                        = 4
	mmdActivate                     = 3
	mmdOpenPropertyStore            = 4
	mmdGetID                        = 5
	mmdGetState                     = 6
	propStoreGetValue               = 5
	acInitialize                    = 3
	acGetBufferSize                 = 4
	acGetCurrentPadding             = 6
	acIsFormatSupported             = 7
	acGetMixFormat                  = 8
	acStart                         = 10
	acStop                          = 11
	acReset                         = 12
	acSetEventHandle                = 13
	acGetService                    = 14
	accGetBuffer                    = 3
	accReleaseBuffer                = 4
	accGetNextPacketSize            = 5
	arcGetBuffer                    = 3
	arcReleaseBuffer                = 4
	asmGetSessionEnumerator         = 5
	asmRegisterSessionNotif         = 6
	asmUnregisterSessionNotif       = 7
	aseGetCount                     = 3
	aseGetSession                   = 4
	ascGetState                     = 3
	ascGetDisplayName               = 4
	ascGetIconPath                  = 6
	ascRegisterSessionNotif         = 10
	ascUnregisterSessionNotif       = 11
	ascGetSessionInstanceIdentifier = 13
	ascGetProcessID                 = 14
	ascIsSystemSoundsSession        = 15
	savGetMasterVolume              = 4
	aaiGetActivateResult            = 3
)

const (
	clsctxAll              = 0x1 | 0x2 | 0x4 | 0x10
	shareModeShared        = 0
	stgmRead               = 0
	eConsole               = 0
	eRender                = 0
	eCapture               = 1
	vtLPWStr               = 31
	vtBlob                 = 65
	activationTypeLoopback = 1
	loopbackIncludeTree    = 0
	loopbackExcludeTree    = 1
	waitTimeoutResult      = 0x102
)

var procActivateAudioInterfaceAsync = windows.NewLazySystemDLL("mmdevapi.dll").
	NewProc("ActivateAudioInterfaceAsync")

// propVariant is the PROPVARIANT layout for the variants read and written
// here: val1 holds a string pointer or a blob size, val2 a blob pointer.
type propVariant struct {
	vt        uint16
	reserved1 uint16
	reserved2 uint16
	reserved3 uint16
	val1      uintptr
	val2      uintptr
}

type audioClientActivationParams struct {
	activationType  uint32
	targetProcessID uint32
	loopbackMode    uint32
}

func flow(playback bool) uintptr {
	if playback {
		return eRender
	}
	return eCapture
}

func guidAt(p uintptr) GUID {
	if p == 0 {
		return GUID{}
	}
	return *(*GUID)(unsafe.Pointer(p))
}

func interfacePath(g windows.GUID) string {
	return "{" + GUID(g).String() + "}"
}

// comRegistration undoes a registration once.
type comRegistration struct {
	once sync.Once
	undo func() error
	err  error
}

func (r *comRegistration) unregister() error {
	r.once.Do(func() { r.err = r.undo() })
	return r.err
}

type comEvent struct {
	h windows.Handle
}

func (ev *comEvent) set() error   { return windows.SetEvent(ev.h) }
func (ev *comEvent) close() error { return windows.CloseHandle(ev.h) }

// comPlatform binds the platform interface to the Windows audio COM
// interfaces.
type comPlatform struct{}

func (comPlatform) initThread() error {
	return wincom.InitThread()
}

func (comPlatform) raiseThreadPriority() error {
	return wincom.SetThreadTimeCritical()
}

func (comPlatform) newEvent() (osEvent, error) {
	h, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, err
	}
	return &comEvent{h: h}, nil
}

func (comPlatform) waitForEvents(events []osEvent, timeout time.Duration) (int, error) {
	handles := make([]windows.Handle, len(events))
	for i, ev := range events {
		handles[i] = ev.(*comEvent).h
	}
	ms := uint32(windows.INFINITE)
	if timeout >= 0 {
		ms = uint32(timeout / time.Millisecond)
	}
	res, err := windows.WaitForMultipleObjects(handles, false, ms)
	switch {
	case err != nil:
		return 0, err
	case res == waitTimeoutResult:
		return 0, errWaitTimeout
	case int(res) >= len(handles):
		return 0, fmt.Errorf("unexpected wait result %#x", res)
	}
	return int(res), nil
}

var completionHandlerVtbl = wincom.NewVtable(iidIActivateCompletionHnd,
	syscall.NewCallback(onActivateCompleted))

func onActivateCompleted(this, _ uintptr) uintptr {
	if completed, ok := wincom.SinkImpl(this).(func()); ok {
		completed()
	}
	return wincom.SOK
}

// newLoopbackActivationParams builds the task allocated PROPVARIANT blob that
// selects process loopback capture.
func newLoopbackActivationParams(lp ProcessLoopbackParams) (uintptr, error) {
	blob, err := wincom.TaskMemAlloc(unsafe.Sizeof(audioClientActivationParams{}))
	if err != nil {
		return 0, err
	}
	params := (*audioClientActivationParams)(unsafe.Pointer(blob))
	params.activationType = activationTypeLoopback
	params.targetProcessID = lp.ProcessID
	params.loopbackMode = loopbackExcludeTree
	if lp.IncludeProcessTree {
		params.loopbackMode = loopbackIncludeTree
	}

	pvp, err := wincom.TaskMemAlloc(unsafe.Sizeof(propVariant{}))
	if err != nil {
		wincom.TaskMemFree(blob)
		return 0, err
	}
	pv := (*propVariant)(unsafe.Pointer(pvp))
	pv.vt = vtBlob
	pv.val1 = unsafe.Sizeof(audioClientActivationParams{})
	pv.val2 = blob
	return pvp, nil
}

func freeActivationParams(pvp uintptr) {
	if pvp == 0 {
		return
	}
	wincom.PropVariantClear(pvp)
	wincom.TaskMemFree(pvp)
}

func (comPlatform) activateAudioInterfaceAsync(target activationTarget, completed func()) (activationOperation, error) {
	var path string
	var params uintptr
	switch target.kind {
	case activateDefaultCapture:
		path = interfacePath(devInterfaceAudioCapture)
	case activateDefaultRender:
		path = interfacePath(devInterfaceAudioRender)
	case activateProcessLoopback:
		path = virtualAudioDeviceProcessLoopback
		var err error
		if params, err = newLoopbackActivationParams(target.loopback); err != nil {
			return nil, err
		}
	default:
		panic(fmt.Sprintf("unknown activation target %d", target.kind))
	}

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		freeActivationParams(params)
		return nil, err
	}
	handler, err := wincom.NewSink(completionHandlerVtbl, completed)
	if err != nil {
		freeActivationParams(params)
		return nil, err
	}
	defer wincom.Release(handler)

	var op uintptr
	r, _, _ := syscall.SyscallN(procActivateAudioInterfaceAsync.Addr(),
		uintptr(unsafe.Pointer(pathPtr)), uintptr(unsafe.Pointer(&iidIAudioClient)),
		params, handler, uintptr(unsafe.Pointer(&op)))
	if err := wincom.HRESULT(int32(uint32(r))).Err(); err != nil {
		freeActivationParams(params)
		return nil, err
	}
	return &comActivationOp{ptr: op, params: params}, nil
}

type comActivationOp struct {
	ptr    uintptr
	params uintptr
}

func (op *comActivationOp) activateResult() (activatedInterface, error) {
	var activateHR int32
	var iface uintptr
	hr := wincom.Call(op.ptr, aaiGetActivateResult,
		uintptr(unsafe.Pointer(&activateHR)), uintptr(unsafe.Pointer(&iface)))
	if hr.Failed() {
		return nil, hr
	}
	if err := wincom.HRESULT(activateHR).Err(); err != nil {
		wincom.Release(iface)
		return nil, err
	}
	if iface == 0 {
		return nil, nil
	}
	return &comUnknown{ptr: iface}, nil
}

func (op *comActivationOp) release() {
	wincom.Release(op.ptr)
	freeActivationParams(op.params)
}

type comUnknown struct {
	ptr uintptr
}

func (u *comUnknown) queryAudioClient() (audioClient, error) {
	ptr, err := wincom.QueryInterface(u.ptr, &iidIAudioClient)
	if err != nil {
		return nil, err
	}
	return &comAudioClient{ptr: ptr}, nil
}

func (u *comUnknown) release() {
	wincom.Release(u.ptr)
}

// readWaveFormat copies a task allocated descriptor and frees it.
func readWaveFormat(p uintptr) (*waveFormat, error) {
	defer wincom.TaskMemFree(p)
	size := waveFormatSize
	if *(*uint16)(unsafe.Pointer(p)) == uint16(FormatTagExtensible) {
		size += int(*(*uint16)(unsafe.Pointer(p + 16)))
	}
	wf, err := unmarshalWaveFormat(unsafe.Slice((*byte)(unsafe.Pointer(p)), size))
	if err != nil {
		return nil, err
	}
	return &wf, nil
}

type comAudioClient struct {
	ptr uintptr
}

func (c *comAudioClient) initialize(flags uint32, bufferDuration time.Duration, format *waveFormat) error {
	b := format.marshal()
	return wincom.Call(c.ptr, acInitialize, shareModeShared, uintptr(flags),
		uintptr(bufferDuration/100), 0, uintptr(unsafe.Pointer(&b[0])), 0).Err()
}

func (c *comAudioClient) mixFormat() (*waveFormat, error) {
	var p uintptr
	if err := wincom.Call(c.ptr, acGetMixFormat, uintptr(unsafe.Pointer(&p))).Err(); err != nil {
		return nil, err
	}
	return readWaveFormat(p)
}

func (c *comAudioClient) isFormatSupported(format *waveFormat) (bool, *waveFormat, error) {
	b := format.marshal()
	var closest uintptr
	hr := wincom.Call(c.ptr, acIsFormatSupported, shareModeShared,
		uintptr(unsafe.Pointer(&b[0])), uintptr(unsafe.Pointer(&closest)))
	switch {
	case hr.IsCode(wincom.SOK):
		wincom.TaskMemFree(closest)
		return true, nil, nil
	case hr.IsCode(wincom.SFalse) && closest != 0:
		wf, err := readWaveFormat(closest)
		return false, wf, err
	case hr.IsCode(wincom.AudclntEUnsupportedFormat), hr.IsCode(wincom.SFalse):
		return false, nil, nil
	default:
		return false, nil, hr
	}
}

func (c *comAudioClient) bufferSize() (uint32, error) {
	var n uint32
	err := wincom.Call(c.ptr, acGetBufferSize, uintptr(unsafe.Pointer(&n))).Err()
	return n, err
}

func (c *comAudioClient) currentPadding() (uint32, error) {
	var n uint32
	err := wincom.Call(c.ptr, acGetCurrentPadding, uintptr(unsafe.Pointer(&n))).Err()
	return n, err
}

func (c *comAudioClient) setEventHandle(ev osEvent) error {
	return wincom.Call(c.ptr, acSetEventHandle, uintptr(ev.(*comEvent).h)).Err()
}

func (c *comAudioClient) start() error { return wincom.Call(c.ptr, acStart).Err() }
func (c *comAudioClient) stop() error  { return wincom.Call(c.ptr, acStop).Err() }
func (c *comAudioClient) reset() error { return wincom.Call(c.ptr, acReset).Err() }

func (c *comAudioClient) service(iid *windows.GUID) (uintptr, error) {
	var out uintptr
	err := wincom.Call(c.ptr, acGetService, uintptr(unsafe.Pointer(iid)),
		uintptr(unsafe.Pointer(&out))).Err()
	return out, err
}

func (c *comAudioClient) captureClient() (captureClient, error) {
	ptr, err := c.service(&iidIAudioCaptureClient)
	if err != nil {
		return nil, err
	}
	return &comCaptureClient{ptr: ptr}, nil
}

func (c *comAudioClient) renderClient() (renderClient, error) {
	ptr, err := c.service(&iidIAudioRenderClient)
	if err != nil {
		return nil, err
	}
	return &comRenderClient{ptr: ptr}, nil
}

func (c *comAudioClient) release() { wincom.Release(c.ptr) }

type comCaptureClient struct {
	ptr uintptr
}

func (c *comCaptureClient) nextPacketSize() (uint32, error) {
	var n uint32
	err := wincom.Call(c.ptr, accGetNextPacketSize, uintptr(unsafe.Pointer(&n))).Err()
	return n, err
}

func (c *comCaptureClient) getBuffer() (capturedBuffer, error) {
	var data uintptr
	var buf capturedBuffer
	err := wincom.Call(c.ptr, accGetBuffer, uintptr(unsafe.Pointer(&data)),
		uintptr(unsafe.Pointer(&buf.frames)), uintptr(unsafe.Pointer(&buf.flags)),
		uintptr(unsafe.Pointer(&buf.devicePosition)),
		uintptr(unsafe.Pointer(&buf.qpcPosition))).Err()
	if err != nil {
		return capturedBuffer{}, err
	}
	buf.data = (*byte)(unsafe.Pointer(data))
	return buf, nil
}

func (c *comCaptureClient) releaseBuffer(frames uint32) error {
	return wincom.Call(c.ptr, accReleaseBuffer, uintptr(frames)).Err()
}

func (c *comCaptureClient) release() { wincom.Release(c.ptr) }

type comRenderClient struct {
	ptr uintptr
}

func (c *comRenderClient) getBuffer(frames uint32) (*byte, error) {
	var data uintptr
	err := wincom.Call(c.ptr, arcGetBuffer, uintptr(frames), uintptr(unsafe.Pointer(&data))).Err()
	if err != nil {
		return nil, err
	}
	return (*byte)(unsafe.Pointer(data)), nil
}

func (c *comRenderClient) releaseBuffer(frames uint32, flags uint32) error {
	return wincom.Call(c.ptr, arcReleaseBuffer, uintptr(frames), uintptr(flags)).Err()
}

func (c *comRenderClient) release() { wincom.Release(c.ptr) }

func newDeviceEnumerator() (uintptr, error) {
	ptr, err := wincom.CreateInstance(&clsidMMDeviceEnumerator, &iidIMMDeviceEnumerator)
	if err != nil {
		return 0, wrapErr(ErrInstanceCreation, err)
	}
	return ptr, nil
}

// comObject holds one reference to a COM object, released once the value
// is garbage collected.
type comObject struct {
	ptr uintptr
}

func newComObject(ptr uintptr) *comObject {
	obj := &comObject{ptr: ptr}
	runtime.AddCleanup(obj, wincom.ReleaseLater, ptr)
	return obj
}

func (comPlatform) defaultDevice(playback bool) (deviceHandle, error) {
	enum, err := newDeviceEnumerator()
	if err != nil {
		return nil, err
	}
	defer wincom.Release(enum)

	var dev uintptr
	err = wincom.Call(enum, mmdeGetDefaultAudioEndpoint, flow(playback), eConsole,
		uintptr(unsafe.Pointer(&dev))).Err()
	if err != nil {
		return nil, err
	}
	return &comDevice{newComObject(dev)}, nil
}

func (comPlatform) devices(playback bool) ([]deviceHandle, error) {
	enum, err := newDeviceEnumerator()
	if err != nil {
		return nil, err
	}
	defer wincom.Release(enum)

	var coll uintptr
	err = wincom.Call(enum, mmdeEnumAudioEndpoints, flow(playback),
		uintptr(DeviceStateActive), uintptr(unsafe.Pointer(&coll))).Err()
	if err != nil {
		return nil, err
	}
	defer wincom.Release(coll)

	var n uint32
	if err := wincom.Call(coll, mmdcGetCount, uintptr(unsafe.Pointer(&n))).Err(); err != nil {
		return nil, err
	}
	devs := make([]deviceHandle, 0, n)
	for i := uint32(0); i < n; i++ {
		var dev uintptr
		err := wincom.Call(coll, mmdcItem, uintptr(i), uintptr(unsafe.Pointer(&dev))).Err()
		if err != nil {
			return nil, err
		}
		devs = append(devs, &comDevice{newComObject(dev)})
	}
	return devs, nil
}

var notificationClientVtbl = wincom.NewVtable(iidIMMNotificationClient,
	syscall.NewCallback(onDeviceStateChanged),
	syscall.NewCallback(onDeviceAdded),
	syscall.NewCallback(onDeviceRemoved),
	syscall.NewCallback(onDefaultDeviceChanged),
	syscall.NewCallback(onPropertyValueChanged))

func deviceSinkOf(this uintptr) deviceEventSink {
	sink, _ := wincom.SinkImpl(this).(deviceEventSink)
	return sink
}

func onDeviceStateChanged(this, id, state uintptr) uintptr {
	if sink := deviceSinkOf(this); sink != nil {
		sink.deviceStateChanged(wincom.String(id), uint32(state))
	}
	return wincom.SOK
}

func onDeviceAdded(this, id uintptr) uintptr {
	if sink := deviceSinkOf(this); sink != nil {
		sink.deviceAdded(wincom.String(id))
	}
	return wincom.SOK
}

func onDeviceRemoved(this, id uintptr) uintptr {
	if sink := deviceSinkOf(this); sink != nil {
		sink.deviceRemoved(wincom.String(id))
	}
	return wincom.SOK
}

func onDefaultDeviceChanged(this, flow, role, id uintptr) uintptr {
	if sink := deviceSinkOf(this); sink != nil {
		sink.defaultDeviceChanged(uint32(flow), uint32(role), wincom.String(id))
	}
	return wincom.SOK
}

// onPropertyValueChanged receives the key by reference: property keys are
// larger than a register, so the supported ABIs pass them by address.
func onPropertyValueChanged(this, id, key uintptr) uintptr {
	if sink := deviceSinkOf(this); sink != nil && key != 0 {
		sink.propertyValueChanged(wincom.String(id), *(*PropertyKey)(unsafe.Pointer(key)))
	}
	return wincom.SOK
}

func (comPlatform) registerEndpointNotification(sink deviceEventSink) (registration, error) {
	enum, err := newDeviceEnumerator()
	if err != nil {
		return nil, err
	}
	client, err := wincom.NewSink(notificationClientVtbl, sink)
	if err != nil {
		wincom.Release(enum)
		return nil, err
	}
	if err := wincom.Call(enum, mmdeRegisterEndpointNotif, client).Err(); err != nil {
		wincom.Release(client)
		wincom.Release(enum)
		return nil, err
	}
	return &comRegistration{undo: func() error {
		err := wincom.Call(enum, mmdeUnregisterEndpointNotif, client).Err()
		wincom.Release(client)
		wincom.Release(enum)
		return err
	}}, nil
}

type comDevice struct {
	*comObject
}

func (d *comDevice) id() (string, error) {
	var p uintptr
	if err := wincom.Call(d.ptr, mmdGetID, uintptr(unsafe.Pointer(&p))).Err(); err != nil {
		return "", err
	}
	return wincom.TakeString(p), nil
}

func (d *comDevice) friendlyName() (string, error) {
	var store uintptr
	err := wincom.Call(d.ptr, mmdOpenPropertyStore, stgmRead,
		uintptr(unsafe.Pointer(&store))).Err()
	if err != nil {
		return "", err
	}
	defer wincom.Release(store)

	var pv propVariant
	err = wincom.Call(store, propStoreGetValue, uintptr(unsafe.Pointer(&pkeyDeviceFriendlyName)),
		uintptr(unsafe.Pointer(&pv))).Err()
	if err != nil {
		return "", err
	}
	defer wincom.PropVariantClear(uintptr(unsafe.Pointer(&pv)))
	if pv.vt != vtLPWStr {
		return "", fmt.Errorf("unexpected friendly name variant type %d", pv.vt)
	}
	return wincom.String(pv.val1), nil
}

func (d *comDevice) state() (uint32, error) {
	var state uint32
	err := wincom.Call(d.ptr, mmdGetState, uintptr(unsafe.Pointer(&state))).Err()
	return state, err
}

func (d *comDevice) activate(iid *windows.GUID) (uintptr, error) {
	var out uintptr
	err := wincom.Call(d.ptr, mmdActivate, uintptr(unsafe.Pointer(iid)), clsctxAll, 0,
		uintptr(unsafe.Pointer(&out))).Err()
	return out, err
}

func (d *comDevice) activateAudioClient() (audioClient, error) {
	ptr, err := d.activate(&iidIAudioClient)
	if err != nil {
		return nil, err
	}
	return &comAudioClient{ptr: ptr}, nil
}

func (d *comDevice) activateSessionManager() (sessionManager, error) {
	ptr, err := d.activate(&iidIAudioSessionManager2)
	if err != nil {
		return nil, err
	}
	return &comSessionManager{newComObject(ptr)}, nil
}

type comSessionManager struct {
	*comObject
}

func (m *comSessionManager) sessionEnumerator() (sessionEnumerator, error) {
	var out uintptr
	err := wincom.Call(m.ptr, asmGetSessionEnumerator, uintptr(unsafe.Pointer(&out))).Err()
	if err != nil {
		return nil, err
	}
	return &comSessionEnumerator{newComObject(out)}, nil
}

var sessionNotificationVtbl = wincom.NewVtable(iidIAudioSessionNotif,
	syscall.NewCallback(onSessionCreated))

func onSessionCreated(this, ctl uintptr) uintptr {
	onCreated, ok := wincom.SinkImpl(this).(func(sessionControl))
	if !ok || ctl == 0 {
		return wincom.SOK
	}
	ptr, err := wincom.QueryInterface(ctl, &iidIAudioSessionControl2)
	if err != nil {
		return wincom.SOK
	}
	onCreated(&comSessionControl{newComObject(ptr)})
	return wincom.SOK
}

func (m *comSessionManager) registerSessionNotification(onCreated func(sessionControl)) (registration, error) {
	notif, err := wincom.NewSink(sessionNotificationVtbl, onCreated)
	if err != nil {
		return nil, err
	}
	if err := wincom.Call(m.ptr, asmRegisterSessionNotif, notif).Err(); err != nil {
		wincom.Release(notif)
		return nil, err
	}
	mgr := m.ptr
	wincom.AddRef(mgr)
	return &comRegistration{undo: func() error {
		err := wincom.Call(mgr, asmUnregisterSessionNotif, notif).Err()
		wincom.Release(notif)
		wincom.Release(mgr)
		return err
	}}, nil
}

type comSessionEnumerator struct {
	*comObject
}

func (e *comSessionEnumerator) count() (int, error) {
	var n int32
	err := wincom.Call(e.ptr, aseGetCount, uintptr(unsafe.Pointer(&n))).Err()
	return int(n), err
}

func (e *comSessionEnumerator) session(i int) (sessionControl, error) {
	var ctl uintptr
	err := wincom.Call(e.ptr, aseGetSession, uintptr(i), uintptr(unsafe.Pointer(&ctl))).Err()
	if err != nil {
		return nil, err
	}
	defer wincom.Release(ctl)
	ptr, err := wincom.QueryInterface(ctl, &iidIAudioSessionControl2)
	if err != nil {
		return nil, err
	}
	return &comSessionControl{newComObject(ptr)}, nil
}

// comSessionControl wraps an IAudioSessionControl2.
type comSessionControl struct {
	*comObject
}

func (c *comSessionControl) string(method int) (string, error) {
	var p uintptr
	if err := wincom.Call(c.ptr, method, uintptr(unsafe.Pointer(&p))).Err(); err != nil {
		return "", err
	}
	return wincom.TakeString(p), nil
}

func (c *comSessionControl) instanceIdentifier() (string, error) {
	return c.string(ascGetSessionInstanceIdentifier)
}

func (c *comSessionControl) processID() (uint32, error) {
	var pid uint32
	err := wincom.Call(c.ptr, ascGetProcessID, uintptr(unsafe.Pointer(&pid))).Err()
	return pid, err
}

func (c *comSessionControl) isSystemSoundsSession() bool {
	return wincom.Call(c.ptr, ascIsSystemSoundsSession).IsCode(wincom.SOK)
}

func (c *comSessionControl) displayName() (string, error) {
	return c.string(ascGetDisplayName)
}

func (c *comSessionControl) iconPath() (string, error) {
	return c.string(ascGetIconPath)
}

func (c *comSessionControl) state() (uint32, error) {
	var state uint32
	err := wincom.Call(c.ptr, ascGetState, uintptr(unsafe.Pointer(&state))).Err()
	return state, err
}

// sessionEvents is the Go value behind an IAudioSessionEvents sink.
type sessionEvents struct {
	sink   sessionEventSink
	ctl    uintptr
	volume func() (float32, error)
}

// masterVolume reads the session volume. Float arguments of callbacks cannot
// be received, so volume events query it instead.
func (se *sessionEvents) masterVolume() (float32, error) {
	vol, err := wincom.QueryInterface(se.ctl, &iidISimpleAudioVolume)
	if err != nil {
		return 0, err
	}
	defer wincom.Release(vol)
	var level float32
	err = wincom.Call(vol, savGetMasterVolume, uintptr(unsafe.Pointer(&level))).Err()
	return level, err
}

var sessionEventsVtbl = wincom.NewVtable(iidIAudioSessionEvents,
	syscall.NewCallback(onDisplayNameChanged),
	syscall.NewCallback(onIconPathChanged),
	syscall.NewCallback(onSimpleVolumeChanged),
	syscall.NewCallback(onChannelVolumeChanged),
	syscall.NewCallback(onGroupingParamChanged),
	syscall.NewCallback(onStateChanged),
	syscall.NewCallback(onSessionDisconnected))

func sessionEventsOf(this uintptr) *sessionEvents {
	se, _ := wincom.SinkImpl(this).(*sessionEvents)
	return se
}

func onDisplayNameChanged(this, name, eventContext uintptr) uintptr {
	if se := sessionEventsOf(this); se != nil {
		se.sink.displayNameChanged(wincom.String(name), guidAt(eventContext))
	}
	return wincom.SOK
}

func onIconPathChanged(this, path, eventContext uintptr) uintptr {
	if se := sessionEventsOf(this); se != nil {
		se.sink.iconPathChanged(wincom.String(path), guidAt(eventContext))
	}
	return wincom.SOK
}

// simpleVolumeChanged handles OnSimpleVolumeChanged once the integer
// arguments were extracted by the architecture specific callback.
func simpleVolumeChanged(this, muted, eventContext uintptr) uintptr {
	if se := sessionEventsOf(this); se != nil {
		if vol, err := se.volume(); err == nil {
			se.sink.simpleVolumeChanged(vol, uint32(muted) != 0, guidAt(eventContext))
		}
	}
	return wincom.SOK
}

func onChannelVolumeChanged(this, count, volumes, changed, eventContext uintptr) uintptr {
	se := sessionEventsOf(this)
	if se == nil {
		return wincom.SOK
	}
	var vols []float32
	if volumes != 0 && uint32(count) > 0 {
		vols = unsafe.Slice((*float32)(unsafe.Pointer(volumes)), uint32(count))
	}
	se.sink.channelVolumeChanged(vols, uint32(changed), guidAt(eventContext))
	return wincom.SOK
}

func onGroupingParamChanged(this, param, eventContext uintptr) uintptr {
	if se := sessionEventsOf(this); se != nil {
		se.sink.groupingParamChanged(guidAt(param), guidAt(eventContext))
	}
	return wincom.SOK
}

func onStateChanged(this, state uintptr) uintptr {
	if se := sessionEventsOf(this); se != nil {
		se.sink.stateChanged(uint32(state))
	}
	return wincom.SOK
}

func onSessionDisconnected(this, reason uintptr) uintptr {
	if se := sessionEventsOf(this); se != nil {
		se.sink.sessionDisconnected(uint32(reason))
	}
	return wincom.SOK
}

func (c *comSessionControl) registerEvents(sink sessionEventSink) (registration, error) {
	ctl := c.ptr
	se := &sessionEvents{sink: sink, ctl: ctl}
	se.volume = se.masterVolume
	events, err := wincom.NewSink(sessionEventsVtbl, se)
	if err != nil {
		return nil, err
	}
	if err := wincom.Call(ctl, ascRegisterSessionNotif, events).Err(); err != nil {
		wincom.Release(events)
		return nil, err
	}
	wincom.AddRef(ctl)
	return &comRegistration{undo: func() error {
		err := wincom.Call(ctl, ascUnregisterSessionNotif, events).Err()
		wincom.Release(events)
		wincom.Release(ctl)
		return err
	}}, nil
}

// maxDosDeviceTarget is the size, in UTF-16 units, of the buffer receiving
// the targets of a DOS device.
const maxDosDeviceTarget = 1024

func (comPlatform) queryDosDevice(name string) (string, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return "", err
	}
	buf := make([]uint16, maxDosDeviceTarget)
	if _, err := windows.QueryDosDevice(namePtr, &buf[0], uint32(len(buf))); err != nil {
		return "", err
	}

	// The buffer holds a list of targets; the first one is current.
	return windows.UTF16ToString(buf), nil
}

func init() {
	defaultPlatform = comPlatform{}
}
