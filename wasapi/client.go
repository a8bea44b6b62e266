package wasapi

import (
	"fmt"
	"time"
)

// AudioClient creates capture and playback streams.
type AudioClient struct {
	cfg config
}

// NewAudioClient returns a new audio client configured with the given
// options.
func NewAudioClient(opts ...Option) *AudioClient {
	return &AudioClient{cfg: fillConfig(opts...)}
}

// Format returns the format override set with WithFormat, if any.
func (ac *AudioClient) Format() (SampleFormat, bool) {
	if ac.cfg.format == nil {
		return SampleFormat{}, false
	}
	return *ac.cfg.format, true
}

// streamSetup is the outcome of preparing an audio client for streaming.
type streamSetup struct {
	client audioClient
	format SampleFormat
}

// initializeClient initializes client in shared mode with an explicit
// format, or with the device mix format when format is nil.
func (ac *AudioClient) initializeClient(client audioClient, format *SampleFormat,
	flags uint32, bufferDuration time.Duration) (streamSetup, error) {

	var wf *waveFormat
	var resolved SampleFormat
	if format != nil {
		if err := format.Validate(); err != nil {
			return streamSetup{}, err
		}
		f := format.toWaveFormat()
		wf, resolved = &f, *format
	} else {
		mix, err := client.mixFormat()
		if err != nil {
			return streamSetup{}, wrapErr(ErrFailedToGetMixFormat, err)
		}
		wf, resolved = mix, sampleFormatFromWaveFormat(mix)
		if err := resolved.Validate(); err != nil {
			return streamSetup{}, wrapErr(ErrFailedToGetMixFormat, err)
		}
	}

	if err := client.initialize(flags, bufferDuration, wf); err != nil {
		return streamSetup{}, wrapErr(ErrFailedToStartAudioClient, err)
	}
	ac.cfg.log.Debugf("Initialized audio client with format %s (flags %#x, "+
		"buffer %s)", resolved, flags, bufferDuration)
	return streamSetup{client: client, format: resolved}, nil
}

// prepare runs activate and initializes the resulting client on a platform
// thread. The client is released if initialization fails.
func (ac *AudioClient) prepare(activate func() (audioClient, error), format *SampleFormat,
	flags uint32, bufferDuration time.Duration) (streamSetup, error) {

	var setup streamSetup
	err := withPlatformThread(ac.cfg.platform, func() error {
		client, err := activate()
		if err != nil {
			return err
		}
		setup, err = ac.initializeClient(client, format, flags, bufferDuration)
		if err != nil {
			client.release()
		}
		return err
	})
	return setup, err
}

func (ac *AudioClient) activateTarget(target activationTarget) func() (audioClient, error) {
	return func() (audioClient, error) {
		return activateAudioClient(ac.cfg.platform, target,
			ac.cfg.activationTimeout, ac.cfg.log)
	}
}

func activateDevice(dev *Device) func() (audioClient, error) {
	return func() (audioClient, error) {
		client, err := dev.handle.activateAudioClient()
		if err != nil {
			return nil, wrapErr(ErrFailedToStartAudioClient, err)
		}
		return client, nil
	}
}

func (ac *AudioClient) newCaptureConfig(setup streamSetup, dataCB CaptureFunc,
	errCB ErrorFunc) *StreamConfig {
	return &StreamConfig{
		p:             ac.cfg.platform,
		log:           ac.cfg.log,
		client:        setup.client,
		format:        setup.format,
		capture:       true,
		captureCB:     dataCB,
		errCB:         errCB,
		boostPriority: ac.cfg.boostPriority,
	}
}

// StartRecordingProcess prepares a stream that captures the audio rendered by
// the process pid and, if includeTree is true, its child processes.
//
// The stream uses the format set with WithFormat, or DefaultSampleFormat.
func (ac *AudioClient) StartRecordingProcess(pid uint32, includeTree bool,
	dataCB CaptureFunc, errCB ErrorFunc) (*StreamConfig, error) {

	format := DefaultSampleFormat()
	if ac.cfg.format != nil {
		format = *ac.cfg.format
	}
	target := activationTarget{
		kind: activateProcessLoopback,
		loopback: ProcessLoopbackParams{
			ProcessID:          pid,
			IncludeProcessTree: includeTree,
		},
	}
	setup, err := ac.prepare(ac.activateTarget(target), &format,
		streamFlagsLoopback|streamFlagsEventCallback,
		ac.cfg.captureBufferDuration)
	if err != nil {
		return nil, fmt.Errorf("unable to record process %d: %w", pid, err)
	}
	return ac.newCaptureConfig(setup, dataCB, errCB), nil
}

// StartRecordingDevice prepares a stream that captures from an input device.
// A nil device selects the default input device.
func (ac *AudioClient) StartRecordingDevice(dev *Device, dataCB CaptureFunc,
	errCB ErrorFunc) (*StreamConfig, error) {

	activate := ac.activateTarget(activationTarget{kind: activateDefaultCapture})
	if dev != nil {
		if dev.IsPlayback() {
			return nil, ErrNotInputDevice
		}
		activate = activateDevice(dev)
	}

	setup, err := ac.prepare(activate, ac.cfg.format, streamFlagsEventCallback,
		ac.cfg.captureBufferDuration)
	if err != nil {
		return nil, err
	}
	return ac.newCaptureConfig(setup, dataCB, errCB), nil
}

// StartRecordingDefaultDevice prepares a stream that captures from the
// default input device.
func (ac *AudioClient) StartRecordingDefaultDevice(dataCB CaptureFunc,
	errCB ErrorFunc) (*StreamConfig, error) {
	return ac.StartRecordingDevice(nil, dataCB, errCB)
}

// StartRecordingLoopbackDevice prepares a stream that captures the mix
// rendered by a playback device. A nil device selects the default playback
// device. Loopback streams always use the device mix format.
func (ac *AudioClient) StartRecordingLoopbackDevice(dev *Device, dataCB CaptureFunc,
	errCB ErrorFunc) (*StreamConfig, error) {

	activate := ac.activateTarget(activationTarget{kind: activateDefaultRender})
	if dev != nil {
		if !dev.IsPlayback() {
			return nil, ErrNotPlaybackDevice
		}
		activate = activateDevice(dev)
	}

	setup, err := ac.prepare(activate, nil,
		streamFlagsLoopback|streamFlagsEventCallback,
		ac.cfg.captureBufferDuration)
	if err != nil {
		return nil, err
	}
	return ac.newCaptureConfig(setup, dataCB, errCB), nil
}

// StartRecordingDefaultLoopback prepares a stream that captures the mix
// rendered by the default playback device.
func (ac *AudioClient) StartRecordingDefaultLoopback(dataCB CaptureFunc,
	errCB ErrorFunc) (*StreamConfig, error) {
	return ac.StartRecordingLoopbackDevice(nil, dataCB, errCB)
}

// StartPlaybackDevice prepares a stream that plays to a playback device. A nil
// device selects the default playback device. The stream uses the format set
// with WithFormat, or the device mix format.
func (ac *AudioClient) StartPlaybackDevice(dev *Device, dataCB PlaybackFunc,
	errCB ErrorFunc) (*StreamConfig, error) {

	activate := ac.activateTarget(activationTarget{kind: activateDefaultRender})
	if dev != nil {
		if !dev.IsPlayback() {
			return nil, ErrNotPlaybackDevice
		}
		activate = activateDevice(dev)
	}

	setup, err := ac.prepare(activate, ac.cfg.format, streamFlagsEventCallback, 0)
	if err != nil {
		return nil, err
	}
	return &StreamConfig{
		p:             ac.cfg.platform,
		log:           ac.cfg.log,
		client:        setup.client,
		format:        setup.format,
		playbackCB:    dataCB,
		errCB:         errCB,
		pollInterval:  ac.cfg.playbackPollInterval,
		boostPriority: ac.cfg.boostPriority,
	}, nil
}

// StartPlaybackDefaultDevice prepares a stream that plays to the default
// playback device.
func (ac *AudioClient) StartPlaybackDefaultDevice(dataCB PlaybackFunc,
	errCB ErrorFunc) (*StreamConfig, error) {
	return ac.StartPlaybackDevice(nil, dataCB, errCB)
}
