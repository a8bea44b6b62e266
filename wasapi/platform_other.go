//go:build !windows || !(amd64 || arm64)

package wasapi

import "time"

// nullPlatform is used where there is no supported audio subsystem. Every
// operation fails with ErrPlatformUnsupported.
type nullPlatform struct{}

func (nullPlatform) initThread() error          { return ErrPlatformUnsupported }
func (nullPlatform) raiseThreadPriority() error { return ErrPlatformUnsupported }
func (nullPlatform) newEvent() (osEvent, error) { return nil, ErrPlatformUnsupported }

func (nullPlatform) waitForEvents([]osEvent, time.Duration) (int, error) {
	return 0, ErrPlatformUnsupported
}

func (nullPlatform) activateAudioInterfaceAsync(activationTarget, func()) (activationOperation, error) {
	return nil, ErrPlatformUnsupported
}

func (nullPlatform) defaultDevice(bool) (deviceHandle, error) {
	return nil, ErrPlatformUnsupported
}

func (nullPlatform) devices(bool) ([]deviceHandle, error) {
	return nil, ErrPlatformUnsupported
}

func (nullPlatform) registerEndpointNotification(deviceEventSink) (registration, error) {
	return nil, ErrPlatformUnsupported
}

func (nullPlatform) queryDosDevice(string) (string, error) {
	return "", ErrPlatformUnsupported
}

func init() {
	defaultPlatform = nullPlatform{}
}
