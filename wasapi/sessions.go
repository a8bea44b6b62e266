package wasapi

import (
	"fmt"
	"strings"
)

// Session is an audio session of a render device.
type Session struct {
	p           platform
	ctl         sessionControl
	name        string
	processName string
	pid         uint32
	isSystem    bool
}

// processNameFromInstanceID extracts the executable path from a session
// instance identifier. Identifiers have the form
// "{device}|{process path}%b{session}". The second return value is false
// when the identifier does not have that form.
func processNameFromInstanceID(id string) (string, bool) {
	_, rest, ok := strings.Cut(id, "|")
	if !ok {
		return "", false
	}
	name, _, ok := strings.Cut(rest, "%")
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// newSession reads the identifying properties of a session. Must be called
// from a platform thread.
func newSession(p platform, ctl sessionControl) (*Session, error) {
	name, err := ctl.instanceIdentifier()
	if err != nil {
		return nil, wrapErr(ErrSessionProperty, err)
	}
	pid, err := ctl.processID()
	if err != nil {
		return nil, wrapErr(ErrSessionProperty, err)
	}
	s := &Session{
		p:        p,
		ctl:      ctl,
		name:     name,
		pid:      pid,
		isSystem: ctl.isSystemSoundsSession(),
	}
	s.processName, _ = processNameFromInstanceID(name)
	return s, nil
}

// Name is the session instance identifier. It is unique among the sessions
// of the system.
func (s *Session) Name() string { return s.name }

// ProcessName is the executable path of the session's process, or an empty
// string if it could not be determined. The path is rooted at an NT device
// such as `\Device\HarddiskVolume3`; DOSPath converts it.
func (s *Session) ProcessName() string { return s.processName }

// PID is the id of the session's process.
func (s *Session) PID() uint32 { return s.pid }

// IsSystem is true for the system sounds session.
func (s *Session) IsSystem() bool { return s.isSystem }

// DisplayName returns the current display name of the session.
func (s *Session) DisplayName() (string, error) {
	var name string
	err := withPlatformThread(s.p, func() error {
		var err error
		name, err = s.ctl.displayName()
		if err != nil {
			return wrapErr(ErrSessionProperty, err)
		}
		return nil
	})
	return name, err
}

// IconPath returns the current icon path of the session.
func (s *Session) IconPath() (string, error) {
	var path string
	err := withPlatformThread(s.p, func() error {
		var err error
		path, err = s.ctl.iconPath()
		if err != nil {
			return wrapErr(ErrSessionProperty, err)
		}
		return nil
	})
	return path, err
}

// State returns the current state of the session.
func (s *Session) State() (SessionState, error) {
	var state SessionState
	err := withPlatformThread(s.p, func() error {
		raw, err := s.ctl.state()
		if err != nil {
			return wrapErr(ErrSessionProperty, err)
		}
		state = sessionStateFromRaw(raw)
		return nil
	})
	return state, err
}

func (s *Session) String() string {
	if s.processName != "" {
		return fmt.Sprintf("%s (pid %d)", s.processName, s.pid)
	}
	return fmt.Sprintf("pid %d", s.pid)
}

// deviceSessions appends the sessions of a device to sessions. Must be
// called from a platform thread.
func deviceSessions(p platform, h deviceHandle, sessions []*Session) ([]*Session, error) {
	mgr, err := h.activateSessionManager()
	if err != nil {
		return nil, wrapErr(ErrFailedActivatingSessionManager, err)
	}
	enum, err := mgr.sessionEnumerator()
	if err != nil {
		return nil, wrapErr(ErrSessionEnum, err)
	}
	n, err := enum.count()
	if err != nil {
		return nil, wrapErr(ErrSessionEnum, err)
	}
	for i := 0; i < n; i++ {
		ctl, err := enum.session(i)
		if err != nil {
			return nil, wrapErr(ErrSessionEnum, err)
		}
		s, err := newSession(p, ctl)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// listSessions returns the non-system sessions of every active render
// device.
func listSessions(p platform) ([]*Session, error) {
	var sessions []*Session
	err := withPlatformThread(p, func() error {
		hs, err := p.devices(true)
		if err != nil {
			return wrapErr(ErrDeviceEnum, err)
		}
		var all []*Session
		for _, h := range hs {
			all, err = deviceSessions(p, h, all)
			if err != nil {
				return err
			}
		}
		for _, s := range all {
			if !s.isSystem {
				sessions = append(sessions, s)
			}
		}
		return nil
	})
	return sessions, err
}

// Sessions lists the non-system audio sessions of all active playback
// devices.
func Sessions() ([]*Session, error) {
	return listSessions(defaultPlatform)
}

func sessionFromID(p platform, id string) (*Session, error) {
	sessions, err := listSessions(p)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.name == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
}

// SessionFromID returns the session with the given instance identifier.
func SessionFromID(id string) (*Session, error) {
	return sessionFromID(defaultPlatform, id)
}
