//go:build windows && (amd64 || arm64)

package wasapi

import (
	"runtime"
	"syscall"
	"testing"
	"unsafe"

	"github.com/companyzero/winaudio/internal/assert"
	"github.com/companyzero/winaudio/internal/wincom"
)

type volumeRecorder struct {
	sessionEventSink
	volume  float32
	muted   bool
	context GUID
	calls   int
}

func (r *volumeRecorder) simpleVolumeChanged(volume float32, muted bool, eventContext GUID) {
	r.volume, r.muted, r.context = volume, muted, eventContext
	r.calls += 1
}

// TestSimpleVolumeChangedCallback calls the volume callback with the native
// register layout of the architecture and asserts the mute flag and event
// context are read from the right arguments.
func TestSimpleVolumeChangedCallback(t *testing.T) {
	rec := &volumeRecorder{}
	se := &sessionEvents{sink: rec, volume: func() (float32, error) { return 0.5, nil }}
	this, err := wincom.NewSink(sessionEventsVtbl, se)
	assert.NilErr(t, err)
	defer wincom.Release(this)

	evCtx := GUID{0x01020304, 0x0506, 0x0708, [8]byte{9, 10, 11, 12, 13, 14, 15, 16}}
	cb := syscall.NewCallback(onSimpleVolumeChanged)
	args := volumeCallbackArgs(this, 1, uintptr(unsafe.Pointer(&evCtx)))
	r, _, _ := syscall.SyscallN(cb, args...)
	runtime.KeepAlive(&evCtx)

	assert.DeepEqual(t, r, wincom.SOK)
	assert.DeepEqual(t, rec.calls, 1)
	assert.DeepEqual(t, rec.volume, float32(0.5))
	assert.BoolIs(t, rec.muted, true)
	assert.DeepEqual(t, rec.context, evCtx)
}
