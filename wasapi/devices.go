package wasapi

import (
	"fmt"
)

// DeviceState is the state of an audio endpoint device.
type DeviceState uint32

const (
	DeviceStateActive     DeviceState = 0x1
	DeviceStateDisabled   DeviceState = 0x2
	DeviceStateNotPresent DeviceState = 0x4
	DeviceStateUnplugged  DeviceState = 0x8

	// DeviceStateAll is the mask of all states.
	DeviceStateAll DeviceState = 0xf
)

// deviceStateFromRaw converts a platform device state. Unknown values are
// a broken platform contract.
func deviceStateFromRaw(v uint32) DeviceState {
	switch s := DeviceState(v); s {
	case DeviceStateActive, DeviceStateDisabled, DeviceStateNotPresent,
		DeviceStateUnplugged:
		return s
	default:
		panic(fmt.Sprintf("unknown device state %#x", v))
	}
}

func (s DeviceState) String() string {
	switch s {
	case DeviceStateActive:
		return "active"
	case DeviceStateDisabled:
		return "disabled"
	case DeviceStateNotPresent:
		return "not present"
	case DeviceStateUnplugged:
		return "unplugged"
	case DeviceStateAll:
		return "all"
	default:
		return fmt.Sprintf("DeviceState(%#x)", uint32(s))
	}
}

// Device is an audio endpoint device.
type Device struct {
	p        platform
	handle   deviceHandle
	playback bool
}

// IsPlayback is true for render (output) devices and false for capture
// (input) devices.
func (d *Device) IsPlayback() bool {
	return d.playback
}

// ID returns the platform endpoint id string of the device.
func (d *Device) ID() (string, error) {
	var id string
	err := withPlatformThread(d.p, func() error {
		var err error
		id, err = d.handle.id()
		if err != nil {
			return wrapErr(ErrFailedGettingDeviceID, err)
		}
		return nil
	})
	return id, err
}

// FriendlyName returns the display name of the device.
func (d *Device) FriendlyName() (string, error) {
	var name string
	err := withPlatformThread(d.p, func() error {
		var err error
		name, err = d.handle.friendlyName()
		if err != nil {
			return wrapErr(ErrDeviceProperty, err)
		}
		return nil
	})
	return name, err
}

// State returns the current state of the device.
func (d *Device) State() (DeviceState, error) {
	var state DeviceState
	err := withPlatformThread(d.p, func() error {
		raw, err := d.handle.state()
		if err != nil {
			return wrapErr(ErrDeviceProperty, err)
		}
		state = deviceStateFromRaw(raw)
		return nil
	})
	return state, err
}

// MixFormat returns the format used by the platform mixer for the device.
func (d *Device) MixFormat() (SampleFormat, error) {
	var f SampleFormat
	err := withPlatformThread(d.p, func() error {
		client, err := d.handle.activateAudioClient()
		if err != nil {
			return wrapErr(ErrFailedToStartAudioClient, err)
		}
		defer client.release()
		wf, err := client.mixFormat()
		if err != nil {
			return wrapErr(ErrFailedToGetMixFormat, err)
		}
		f = sampleFormatFromWaveFormat(wf)
		return nil
	})
	return f, err
}

// FormatSupported asks the device whether it can stream in format. When the
// answer is FormatClosestMatch, the proposed format is also returned.
func (d *Device) FormatSupported(format SampleFormat) (FormatSupport, SampleFormat, error) {
	if err := format.Validate(); err != nil {
		return FormatUnsupported, SampleFormat{}, err
	}

	res, closest := FormatUnsupported, SampleFormat{}
	err := withPlatformThread(d.p, func() error {
		client, err := d.handle.activateAudioClient()
		if err != nil {
			return wrapErr(ErrFailedToStartAudioClient, err)
		}
		defer client.release()
		wf := format.toWaveFormat()
		ok, closestWf, err := client.isFormatSupported(&wf)
		switch {
		case err != nil:
			return wrapErr(ErrFormatQueryFailed, err)
		case ok:
			res = FormatSupported
		case closestWf != nil:
			res, closest = FormatClosestMatch, sampleFormatFromWaveFormat(closestWf)
		}
		return nil
	})
	return res, closest, err
}

// Equal is true if both values refer to the same endpoint.
func (d *Device) Equal(other *Device) bool {
	if d == nil || other == nil {
		return d == other
	}
	id1, err1 := d.ID()
	id2, err2 := other.ID()
	return err1 == nil && err2 == nil && id1 == id2
}

func (d *Device) String() string {
	name, err := d.FriendlyName()
	if err != nil {
		name = "<unknown>"
	}
	return name
}

func defaultDevice(p platform, playback bool) (*Device, error) {
	var dev *Device
	err := withPlatformThread(p, func() error {
		h, err := p.defaultDevice(playback)
		if err != nil {
			return wrapErr(ErrDeviceEnum, err)
		}
		dev = &Device{p: p, handle: h, playback: playback}
		return nil
	})
	return dev, err
}

func listDevices(p platform, playback bool) ([]*Device, error) {
	var devs []*Device
	err := withPlatformThread(p, func() error {
		hs, err := p.devices(playback)
		if err != nil {
			return wrapErr(ErrDeviceEnum, err)
		}
		devs = make([]*Device, len(hs))
		for i, h := range hs {
			devs[i] = &Device{p: p, handle: h, playback: playback}
		}
		return nil
	})
	return devs, err
}

// DefaultPlaybackDevice returns the default render device for the console
// role.
func DefaultPlaybackDevice() (*Device, error) {
	return defaultDevice(defaultPlatform, true)
}

// DefaultInputDevice returns the default capture device for the console
// role.
func DefaultInputDevice() (*Device, error) {
	return defaultDevice(defaultPlatform, false)
}

// PlaybackDevices lists the active render devices.
func PlaybackDevices() ([]*Device, error) {
	return listDevices(defaultPlatform, true)
}

// CaptureDevices lists the active capture devices.
func CaptureDevices() ([]*Device, error) {
	return listDevices(defaultPlatform, false)
}
