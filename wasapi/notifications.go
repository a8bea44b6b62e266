package wasapi

import (
	"sync"

	"github.com/decred/slog"
	"github.com/puzpuzpuz/xsync/v3"
)

// Notifications manages the registration of session event, session created
// and device event callbacks.
type Notifications struct {
	p   platform
	log slog.Logger

	// sessionEvents tracks the event registration of every session,
	// keyed by session name.
	sessionEvents *xsync.MapOf[string, registration]

	mtx       sync.Mutex
	deviceReg registration
	worker    *sessionWorker
}

// NewNotifications returns a new, empty, notification registry. Only the
// WithLogger option is used.
func NewNotifications(opts ...Option) *Notifications {
	cfg := fillConfig(opts...)
	return &Notifications{
		p:             cfg.platform,
		log:           cfg.log,
		sessionEvents: xsync.NewMapOf[string, registration](),
	}
}

// RegisterSessionEvent registers cb to receive the events of session. Only one
// registration per session is allowed.
func (n *Notifications) RegisterSessionEvent(session *Session, cb SessionEventFunc) error {
	var regErr error
	n.sessionEvents.Compute(session.name, func(old registration, loaded bool) (registration, bool) {
		if loaded {
			regErr = ErrNotificationAlreadyRegistered
			return old, false
		}
		var reg registration
		regErr = withPlatformThread(n.p, func() error {
			var err error
			reg, err = session.ctl.registerEvents(sessionEventAdapter{cb: cb})
			if err != nil {
				return wrapErr(ErrNotificationRegister, err)
			}
			return nil
		})
		return reg, regErr != nil
	})
	if regErr == nil {
		n.log.Debugf("Registered events of session %s", session)
	}
	return regErr
}

// UnregisterSessionEvent undoes the event registration of session.
func (n *Notifications) UnregisterSessionEvent(session *Session) error {
	reg, ok := n.sessionEvents.LoadAndDelete(session.name)
	if !ok {
		return ErrNotificationNotFound
	}
	err := withPlatformThread(n.p, func() error {
		if err := reg.unregister(); err != nil {
			return wrapErr(ErrNotificationUnregister, err)
		}
		return nil
	})
	if err == nil {
		n.log.Debugf("Unregistered events of session %s", session)
	}
	return err
}

// RegisterSessionNotification registers cb to be called when a session is
// created on dev. The session notification worker is started if it is not
// running.
func (n *Notifications) RegisterSessionNotification(dev *Device, cb SessionCreatedFunc) error {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	if n.worker == nil || !n.worker.running() {
		w, err := startSessionWorker(n.p, n.log)
		if err != nil {
			return err
		}
		n.worker = w
	}

	resp, err := n.worker.request(workerCommand{kind: cmdRegister, device: dev, cb: cb})
	if err != nil {
		return err
	}
	switch resp.kind {
	case respRegistered:
		return nil
	case respRejected:
		return resp.err
	default:
		return wrapErr(ErrFailedRegisteringSessionNotification, resp.err)
	}
}

// UnregisterSessionNotification undoes the session created registration of
// dev.
func (n *Notifications) UnregisterSessionNotification(dev *Device) error {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	if n.worker == nil {
		return ErrSessionNotificationThreadNotRunning
	}
	resp, err := n.worker.request(workerCommand{kind: cmdUnregister, device: dev})
	if err != nil {
		return err
	}
	switch resp.kind {
	case respUnregistered:
		return nil
	case respNotFound:
		return ErrNotificationNotFound
	default:
		return wrapErr(ErrFailedUnregisteringSessionNotification, resp.err)
	}
}

// RegisterDeviceNotification registers cb to receive device events. Only one
// device registration is allowed at a time.
func (n *Notifications) RegisterDeviceNotification(cb DeviceEventFunc) error {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	if n.deviceReg != nil {
		return ErrNotificationAlreadyRegistered
	}
	return withPlatformThread(n.p, func() error {
		reg, err := n.p.registerEndpointNotification(deviceEventAdapter{cb: cb})
		if err != nil {
			return wrapErr(ErrNotificationRegister, err)
		}
		n.deviceReg = reg
		n.log.Debugf("Registered device notification")
		return nil
	})
}

// UnregisterDeviceNotification undoes the device event registration.
func (n *Notifications) UnregisterDeviceNotification() error {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	if n.deviceReg == nil {
		return ErrNotificationNotFound
	}
	reg := n.deviceReg
	n.deviceReg = nil
	return withPlatformThread(n.p, func() error {
		if err := reg.unregister(); err != nil {
			return wrapErr(ErrNotificationUnregister, err)
		}
		return nil
	})
}

// Close undoes every registration and stops the session notification
// worker. It is safe to call multiple times.
func (n *Notifications) Close() {
	n.sessionEvents.Range(func(name string, _ registration) bool {
		reg, ok := n.sessionEvents.LoadAndDelete(name)
		if !ok {
			return true
		}
		err := withPlatformThread(n.p, reg.unregister)
		if err != nil {
			n.log.Warnf("Unable to unregister events of session %s: %v", name, err)
		}
		return true
	})

	n.mtx.Lock()
	defer n.mtx.Unlock()
	if n.deviceReg != nil {
		if err := withPlatformThread(n.p, n.deviceReg.unregister); err != nil {
			n.log.Warnf("Unable to unregister device notification: %v", err)
		}
		n.deviceReg = nil
	}
	if n.worker != nil {
		n.worker.stop()
		n.worker = nil
	}
}
