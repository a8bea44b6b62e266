package wasapi

import (
	"runtime"
	"time"
)

// infiniteTimeout makes waitForEvents block until one of the events is
// signaled.
const infiniteTimeout time.Duration = -1

// Audio client stream flags.
const (
	streamFlagsLoopback      uint32 = 0x00020000
	streamFlagsEventCallback uint32 = 0x00040000
)

// activationKind selects the virtual interface targeted by an asynchronous
// activation.
type activationKind int

const (
	activateDefaultCapture activationKind = iota
	activateDefaultRender
	activateProcessLoopback
)

// ProcessLoopbackParams selects the process whose audio is captured by a
// process loopback stream.
type ProcessLoopbackParams struct {
	ProcessID          uint32
	IncludeProcessTree bool
}

type activationTarget struct {
	kind     activationKind
	loopback ProcessLoopbackParams
}

// platform is the OS audio subsystem driven by this package. Every method
// must be called from a goroutine that has been locked to its OS thread and
// on which initThread succeeded.
type platform interface {
	// initThread initializes the platform runtime on the calling thread.
	// It is idempotent per thread.
	initThread() error

	// raiseThreadPriority raises the scheduling priority of the calling
	// thread to time critical.
	raiseThreadPriority() error

	// newEvent creates an unsignaled auto-reset event.
	newEvent() (osEvent, error)

	// waitForEvents blocks until one of the events is signaled and
	// returns its index. It returns errWaitTimeout when a non-negative
	// timeout expires first.
	waitForEvents(events []osEvent, timeout time.Duration) (int, error)

	// activateAudioInterfaceAsync starts the asynchronous activation of
	// an audio client for target. completed is called, from an arbitrary
	// thread, once the result is available in the returned operation.
	activateAudioInterfaceAsync(target activationTarget, completed func()) (activationOperation, error)

	defaultDevice(playback bool) (deviceHandle, error)
	devices(playback bool) ([]deviceHandle, error)

	// registerEndpointNotification registers sink to receive device
	// events until the registration is undone.
	registerEndpointNotification(sink deviceEventSink) (registration, error)

	// queryDosDevice returns the NT device path a DOS device name such as
	// "C:" is mapped to. It needs no thread initialization.
	queryDosDevice(name string) (string, error)
}

// osEvent is a platform auto-reset event.
type osEvent interface {
	set() error
	close() error
}

type activationOperation interface {
	activateResult() (activatedInterface, error)
	release()
}

type activatedInterface interface {
	queryAudioClient() (audioClient, error)
	release()
}

type audioClient interface {
	initialize(flags uint32, bufferDuration time.Duration, format *waveFormat) error
	mixFormat() (*waveFormat, error)
	isFormatSupported(format *waveFormat) (bool, *waveFormat, error)
	bufferSize() (uint32, error)
	currentPadding() (uint32, error)
	setEventHandle(ev osEvent) error
	start() error
	stop() error
	reset() error
	captureClient() (captureClient, error)
	renderClient() (renderClient, error)
	release()
}

// capturedBuffer is a platform owned capture buffer, valid until released.
type capturedBuffer struct {
	data           *byte
	frames         uint32
	flags          uint32
	devicePosition uint64
	qpcPosition    uint64
}

type captureClient interface {
	nextPacketSize() (uint32, error)
	getBuffer() (capturedBuffer, error)
	releaseBuffer(frames uint32) error
	release()
}

type renderClient interface {
	getBuffer(frames uint32) (*byte, error)
	releaseBuffer(frames uint32, flags uint32) error
	release()
}

type deviceHandle interface {
	id() (string, error)
	friendlyName() (string, error)
	state() (uint32, error)
	activateAudioClient() (audioClient, error)
	activateSessionManager() (sessionManager, error)
}

type sessionManager interface {
	sessionEnumerator() (sessionEnumerator, error)
	registerSessionNotification(onCreated func(sessionControl)) (registration, error)
}

type sessionEnumerator interface {
	count() (int, error)
	session(i int) (sessionControl, error)
}

type sessionControl interface {
	instanceIdentifier() (string, error)
	processID() (uint32, error)
	isSystemSoundsSession() bool
	displayName() (string, error)
	iconPath() (string, error)
	state() (uint32, error)
	registerEvents(sink sessionEventSink) (registration, error)
}

type registration interface {
	unregister() error
}

// sessionEventSink receives the raw events of an audio session.
type sessionEventSink interface {
	displayNameChanged(name string, eventContext GUID)
	iconPathChanged(path string, eventContext GUID)
	simpleVolumeChanged(volume float32, muted bool, eventContext GUID)
	channelVolumeChanged(volumes []float32, changedChannel uint32, eventContext GUID)
	groupingParamChanged(param GUID, eventContext GUID)
	stateChanged(state uint32)
	sessionDisconnected(reason uint32)
}

// deviceEventSink receives the raw events of the device enumerator.
type deviceEventSink interface {
	defaultDeviceChanged(flow, role uint32, deviceID string)
	deviceAdded(deviceID string)
	deviceRemoved(deviceID string)
	deviceStateChanged(deviceID string, state uint32)
	propertyValueChanged(deviceID string, key PropertyKey)
}

// defaultPlatform is set by the build specific platform binding.
var defaultPlatform platform

// withPlatformThread runs f on the calling goroutine, locked to its OS thread
// with the platform runtime initialized.
func withPlatformThread(p platform, f func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := p.initThread(); err != nil {
		return wrapErr(ErrPlatformInit, err)
	}
	return f()
}
