package wasapi

import (
	"errors"
)

// Errors returned while setting up and running streams.
var (
	ErrFailedToCreateStopEvent    = errors.New("failed to create stream event")
	ErrFailedToSetupEventHandle   = errors.New("failed to set up stream event handle")
	ErrFailedToStartAudioClient   = errors.New("failed to start audio client")
	ErrWaitFailed                 = errors.New("waiting for event failed")
	ErrFailedGettingBuffer        = errors.New("failed getting buffer")
	ErrFailedReleasingBuffer      = errors.New("failed releasing buffer")
	ErrFailedStoppingAudioClient  = errors.New("failed stopping audio client")
	ErrFailedResettingAudioClient = errors.New("failed resetting audio client")
	ErrNotInputDevice             = errors.New("device is not an input device")
	ErrNotPlaybackDevice          = errors.New("device is not a playback device")
	ErrStreamAlreadyStarted       = errors.New("stream was already started")
	ErrActivationFailed           = errors.New("audio interface activation failed")
	ErrEventCreation              = errors.New("failed to create event")
	ErrFailedToGetMixFormat       = errors.New("failed to get device mix format")
	ErrFailedToCreateThread       = errors.New("failed to create stream thread")
	ErrInvalidFormat              = errors.New("invalid sample format")
	ErrPlatformUnsupported        = errors.New("platform audio subsystem is not supported")
	ErrPlatformInit               = errors.New("failed to initialize platform on thread")
)

// Errors returned while querying devices and sessions.
var (
	ErrDeviceEnum        = errors.New("failed to enumerate devices")
	ErrDeviceProperty    = errors.New("failed to read device property")
	ErrSessionEnum       = errors.New("failed to enumerate sessions")
	ErrSessionProperty   = errors.New("failed to read session property")
	ErrSessionNotFound   = errors.New("session not found")
	ErrFormatQueryFailed = errors.New("failed to query format support")
)

// Errors returned by the path conversions.
var (
	ErrInvalidPath          = errors.New("invalid path")
	ErrFailedGettingNTPath  = errors.New("failed getting NT path")
	ErrFailedGettingDOSPath = errors.New("failed getting DOS path")
)

// Errors returned by the notification registries.
var (
	ErrInstanceCreation                       = errors.New("failed to create platform instance")
	ErrNotificationAlreadyRegistered          = errors.New("notification already registered")
	ErrNotificationRegister                   = errors.New("failed to register notification")
	ErrNotificationUnregister                 = errors.New("failed to unregister notification")
	ErrNotificationNotFound                   = errors.New("notification not registered")
	ErrFailedActivatingSessionManager         = errors.New("failed activating session manager")
	ErrFailedSettingUpNotification            = errors.New("failed setting up session notification")
	ErrFailedGettingDeviceID                  = errors.New("failed getting device id")
	ErrFailedStartingNotificationThread       = errors.New("failed starting session notification thread")
	ErrFailedRegisteringSessionNotification   = errors.New("failed registering session notification")
	ErrFailedUnregisteringSessionNotification = errors.New("failed unregistering session notification")
	ErrSessionNotificationThreadNotRunning    = errors.New("session notification thread is not running")
)

// errWaitTimeout is returned by platform waits that expired.
var errWaitTimeout = errors.New("wait timed out")

var errNilBuffer = errors.New("platform returned a nil buffer")

// errDeviceNotMapped is returned when no drive letter maps to a device.
var errDeviceNotMapped = errors.New("no drive letter maps to the device")

// kindError associates a platform failure with one of the exported error
// kinds. Both can be matched with errors.Is.
type kindError struct {
	kind  error
	inner error
}

func (err kindError) Error() string {
	if err.inner == nil {
		return err.kind.Error()
	}
	return err.kind.Error() + ": " + err.inner.Error()
}

func (err kindError) Unwrap() []error {
	if err.inner == nil {
		return []error{err.kind}
	}
	return []error{err.kind, err.inner}
}

// wrapErr returns an error of the given kind caused by inner.
func wrapErr(kind, inner error) error {
	return kindError{kind: kind, inner: inner}
}
