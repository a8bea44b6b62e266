package wasapi

import (
	"testing"
	"time"

	"github.com/companyzero/winaudio/internal/assert"
)

func nopCapture(CapturePacket) {}

func nopPlayback([]byte) bool { return true }

// TestStartRecordingProcess asserts process loopback streams activate the
// process loopback interface and initialize it with the default format.
func TestStartRecordingProcess(t *testing.T) {
	t.Parallel()

	fp, client := newCapturePlatform()
	ac := newTestAudioClient(t, fp)
	sc, err := ac.StartRecordingProcess(4321, true, nopCapture, nil)
	assert.NilErr(t, err)
	defer sc.Close()

	assert.DeepEqual(t, fp.target(), activationTarget{
		kind:     activateProcessLoopback,
		loopback: ProcessLoopbackParams{ProcessID: 4321, IncludeProcessTree: true},
	})
	flags, duration, wf := client.initialized()
	assert.DeepEqual(t, flags, streamFlagsLoopback|streamFlagsEventCallback)
	assert.DeepEqual(t, duration, 20*time.Millisecond)
	assert.DeepEqual(t, sampleFormatFromWaveFormat(wf), DefaultSampleFormat())
	assert.DeepEqual(t, sc.Format(), DefaultSampleFormat())
	assert.BoolIs(t, sc.IsCapture(), true)
}

// TestStartRecordingProcessFormatOverride asserts the client format override
// is used for process loopback streams.
func TestStartRecordingProcessFormatOverride(t *testing.T) {
	t.Parallel()

	fp, client := newCapturePlatform()
	want := NewSampleFormat(1, 16000, 16)
	ac := newTestAudioClient(t, fp, WithFormat(want),
		WithCaptureBufferDuration(40*time.Millisecond))
	sc, err := ac.StartRecordingProcess(1, false, nopCapture, nil)
	assert.NilErr(t, err)
	defer sc.Close()

	_, duration, wf := client.initialized()
	assert.DeepEqual(t, duration, 40*time.Millisecond)
	assert.DeepEqual(t, sampleFormatFromWaveFormat(wf), want)
	assert.DeepEqual(t, sc.Format(), want)
	assert.BoolIs(t, fp.target().loopback.IncludeProcessTree, false)

	got, ok := ac.Format()
	assert.BoolIs(t, ok, true)
	assert.DeepEqual(t, got, want)
}

// TestDirectionMismatch asserts entry points reject devices of the wrong
// direction before touching the platform.
func TestDirectionMismatch(t *testing.T) {
	t.Parallel()

	fp, _ := newCapturePlatform()
	capDev := &Device{p: fp, handle: &fakeDevice{devID: "cap"}, playback: false}
	playDev := &Device{p: fp, handle: &fakeDevice{devID: "play"}, playback: true}
	ac := newTestAudioClient(t, fp)

	_, err := ac.StartRecordingDevice(playDev, nopCapture, nil)
	assert.ErrorIs(t, err, ErrNotInputDevice)
	_, err = ac.StartRecordingLoopbackDevice(capDev, nopCapture, nil)
	assert.ErrorIs(t, err, ErrNotPlaybackDevice)
	_, err = ac.StartPlaybackDevice(capDev, nopPlayback, nil)
	assert.ErrorIs(t, err, ErrNotPlaybackDevice)

	assert.DeepEqual(t, fp.initThreadCalls.Load(), int64(0))
	assert.DeepEqual(t, fp.activations.Load(), int64(0))
	assert.DeepEqual(t, fp.openEvents.Load(), int64(0))
}

// TestDefaultDeviceEntryPoints asserts the default device entry points
// activate the matching interface and use the mix format.
func TestDefaultDeviceEntryPoints(t *testing.T) {
	t.Parallel()

	mix := SampleFormat{Tag: FormatTagIEEEFloat, Channels: 2, SampleRate: 48000, BitsPerSample: 32}
	tests := []struct {
		name     string
		start    func(ac *AudioClient) (*StreamConfig, error)
		kind     activationKind
		flags    uint32
		duration time.Duration
		capture  bool
	}{{
		name: "input",
		start: func(ac *AudioClient) (*StreamConfig, error) {
			return ac.StartRecordingDefaultDevice(nopCapture, nil)
		},
		kind:     activateDefaultCapture,
		flags:    streamFlagsEventCallback,
		duration: 20 * time.Millisecond,
		capture:  true,
	}, {
		name: "loopback",
		start: func(ac *AudioClient) (*StreamConfig, error) {
			return ac.StartRecordingDefaultLoopback(nopCapture, nil)
		},
		kind:     activateDefaultRender,
		flags:    streamFlagsLoopback | streamFlagsEventCallback,
		duration: 20 * time.Millisecond,
		capture:  true,
	}, {
		name: "playback",
		start: func(ac *AudioClient) (*StreamConfig, error) {
			return ac.StartPlaybackDefaultDevice(nopPlayback, nil)
		},
		kind:  activateDefaultRender,
		flags: streamFlagsEventCallback,
	}}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := newFakeAudioClient(mix)
			fp := &fakePlatform{client: client}
			sc, err := tc.start(newTestAudioClient(t, fp))
			assert.NilErr(t, err)
			defer sc.Close()

			assert.DeepEqual(t, fp.target().kind, tc.kind)
			flags, duration, wf := client.initialized()
			assert.DeepEqual(t, flags, tc.flags)
			assert.DeepEqual(t, duration, tc.duration)
			assert.DeepEqual(t, *wf, client.mix)
			assert.DeepEqual(t, sc.Format(), mix)
			assert.BoolIs(t, sc.IsCapture(), tc.capture)
		})
	}
}

// TestExplicitDeviceActivation asserts explicit devices are activated
// directly, without the asynchronous handshake.
func TestExplicitDeviceActivation(t *testing.T) {
	t.Parallel()

	fp := &fakePlatform{}
	client := newFakeAudioClient(testCaptureFormat)
	dev := &Device{p: fp, handle: &fakeDevice{devID: "mic", client: client}}
	sc, err := newTestAudioClient(t, fp).StartRecordingDevice(dev, nopCapture, nil)
	assert.NilErr(t, err)
	sc.Close()

	assert.DeepEqual(t, fp.activations.Load(), int64(0))
	_, _, wf := client.initialized()
	assert.DeepEqual(t, *wf, client.mix)
	_, _, _, releases := client.calls()
	assert.DeepEqual(t, releases, 1)
}

// TestPrepareFailuresReleaseClient asserts the activated client is released
// when it cannot be initialized.
func TestPrepareFailuresReleaseClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(c *fakeAudioClient)
		opts    []Option
		wantErr error
	}{{
		name:    "mix format",
		setup:   func(c *fakeAudioClient) { c.mixErr = errFakeFailure },
		wantErr: ErrFailedToGetMixFormat,
	}, {
		name:    "initialize",
		setup:   func(c *fakeAudioClient) { c.initErr = errFakeFailure },
		wantErr: ErrFailedToStartAudioClient,
	}, {
		name:    "invalid override",
		setup:   func(c *fakeAudioClient) {},
		opts:    []Option{WithFormat(NewSampleFormat(0, 44100, 16))},
		wantErr: ErrInvalidFormat,
	}}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fp, client := newCapturePlatform()
			tc.setup(client)
			ac := newTestAudioClient(t, fp, tc.opts...)
			_, err := ac.StartRecordingDefaultDevice(nopCapture, nil)
			assert.ErrorIs(t, err, tc.wantErr)
			_, _, _, releases := client.calls()
			assert.DeepEqual(t, releases, 1)
		})
	}
}

// TestPlatformInitFailure asserts a failed thread initialization is
// reported as ErrPlatformInit.
func TestPlatformInitFailure(t *testing.T) {
	t.Parallel()

	fp, _ := newCapturePlatform()
	fp.initThreadErr = errFakeFailure
	_, err := newTestAudioClient(t, fp).StartRecordingDefaultLoopback(nopCapture, nil)
	assert.ErrorIs(t, err, ErrPlatformInit)
	assert.ErrorIs(t, err, errFakeFailure)
	assert.DeepEqual(t, fp.activations.Load(), int64(0))
}
