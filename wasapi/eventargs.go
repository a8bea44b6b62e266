package wasapi

import (
	"fmt"

	"github.com/decred/slog"
)

// SessionState is the activity state of an audio session.
type SessionState uint32

const (
	SessionStateInactive SessionState = 0
	SessionStateActive   SessionState = 1
	SessionStateExpired  SessionState = 2
)

func sessionStateFromRaw(v uint32) SessionState {
	switch s := SessionState(v); s {
	case SessionStateInactive, SessionStateActive, SessionStateExpired:
		return s
	default:
		panic(fmt.Sprintf("unknown session state %d", v))
	}
}

func (s SessionState) String() string {
	switch s {
	case SessionStateInactive:
		return "inactive"
	case SessionStateActive:
		return "active"
	case SessionStateExpired:
		return "expired"
	default:
		return fmt.Sprintf("SessionState(%d)", uint32(s))
	}
}

// DisconnectReason is the reason a session was disconnected.
type DisconnectReason uint32

const (
	DisconnectDeviceRemoval         DisconnectReason = 0
	DisconnectServerShutdown        DisconnectReason = 1
	DisconnectFormatChanged         DisconnectReason = 2
	DisconnectSessionLogoff         DisconnectReason = 3
	DisconnectSessionDisconnected   DisconnectReason = 4
	DisconnectExclusiveModeOverride DisconnectReason = 5
)

func disconnectReasonFromRaw(v uint32) DisconnectReason {
	if v > uint32(DisconnectExclusiveModeOverride) {
		panic(fmt.Sprintf("unknown session disconnect reason %d", v))
	}
	return DisconnectReason(v)
}

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectDeviceRemoval:
		return "device removal"
	case DisconnectServerShutdown:
		return "server shutdown"
	case DisconnectFormatChanged:
		return "format changed"
	case DisconnectSessionLogoff:
		return "session logoff"
	case DisconnectSessionDisconnected:
		return "session disconnected"
	case DisconnectExclusiveModeOverride:
		return "exclusive mode override"
	default:
		return fmt.Sprintf("DisconnectReason(%d)", uint32(r))
	}
}

// DataFlow is the direction of a device.
type DataFlow uint32

const (
	DataFlowRender  DataFlow = 0
	DataFlowCapture DataFlow = 1
	DataFlowAll     DataFlow = 2
)

func dataFlowFromRaw(v uint32) DataFlow {
	if v > uint32(DataFlowAll) {
		panic(fmt.Sprintf("unknown data flow %d", v))
	}
	return DataFlow(v)
}

func (f DataFlow) String() string {
	switch f {
	case DataFlowRender:
		return "render"
	case DataFlowCapture:
		return "capture"
	case DataFlowAll:
		return "all"
	default:
		return fmt.Sprintf("DataFlow(%d)", uint32(f))
	}
}

// Role is the role for which a device is the default.
type Role uint32

const (
	RoleConsole        Role = 0
	RoleMultimedia     Role = 1
	RoleCommunications Role = 2
)

func roleFromRaw(v uint32) Role {
	if v > uint32(RoleCommunications) {
		panic(fmt.Sprintf("unknown device role %d", v))
	}
	return Role(v)
}

func (r Role) String() string {
	switch r {
	case RoleConsole:
		return "console"
	case RoleMultimedia:
		return "multimedia"
	case RoleCommunications:
		return "communications"
	default:
		return fmt.Sprintf("Role(%d)", uint32(r))
	}
}

// AudioSessionEvent is an event of an audio session. It is one of
// DisplayNameChanged, IconPathChanged, SimpleVolumeChanged,
// ChannelVolumeChanged, GroupingParamChanged, StateChanged or
// SessionDisconnected.
type AudioSessionEvent interface {
	isAudioSessionEvent()
}

type DisplayNameChanged struct {
	DisplayName  string
	EventContext GUID
}

type IconPathChanged struct {
	IconPath     string
	EventContext GUID
}

type SimpleVolumeChanged struct {
	Volume       float32
	Muted        bool
	EventContext GUID
}

type ChannelVolumeChanged struct {
	Volumes        []float32
	ChangedChannel uint32
	EventContext   GUID
}

type GroupingParamChanged struct {
	GroupingParam GUID
	EventContext  GUID
}

type StateChanged struct {
	State SessionState
}

type SessionDisconnected struct {
	Reason DisconnectReason
}

func (DisplayNameChanged) isAudioSessionEvent()   {}
func (IconPathChanged) isAudioSessionEvent()      {}
func (SimpleVolumeChanged) isAudioSessionEvent()  {}
func (ChannelVolumeChanged) isAudioSessionEvent() {}
func (GroupingParamChanged) isAudioSessionEvent() {}
func (StateChanged) isAudioSessionEvent()         {}
func (SessionDisconnected) isAudioSessionEvent()  {}

// DeviceEvent is an event of the device enumerator. It is one of
// DefaultDeviceChanged, DeviceAdded, DeviceRemoved, DeviceStateChanged or
// DevicePropertyValueChanged.
type DeviceEvent interface {
	isDeviceEvent()
}

type DefaultDeviceChanged struct {
	Flow     DataFlow
	Role     Role
	DeviceID string
}

type DeviceAdded struct {
	DeviceID string
}

type DeviceRemoved struct {
	DeviceID string
}

type DeviceStateChanged struct {
	DeviceID string
	State    DeviceState
}

type DevicePropertyValueChanged struct {
	DeviceID string
	Key      PropertyKey
}

func (DefaultDeviceChanged) isDeviceEvent()       {}
func (DeviceAdded) isDeviceEvent()                {}
func (DeviceRemoved) isDeviceEvent()              {}
func (DeviceStateChanged) isDeviceEvent()         {}
func (DevicePropertyValueChanged) isDeviceEvent() {}

// SessionCreated is the argument of session notification callbacks.
type SessionCreated struct {
	Session *Session
}

// SessionEventFunc receives the events of a session. It is called from
// platform threads.
type SessionEventFunc func(ev AudioSessionEvent)

// DeviceEventFunc receives device events. It is called from platform
// threads.
type DeviceEventFunc func(ev DeviceEvent)

// SessionCreatedFunc is called when a session is created on a device. It is
// called from platform threads.
type SessionCreatedFunc func(ev SessionCreated)

// sessionEventAdapter converts raw session events into AudioSessionEvent
// values.
type sessionEventAdapter struct {
	cb SessionEventFunc
}

func (a sessionEventAdapter) displayNameChanged(name string, eventContext GUID) {
	a.cb(DisplayNameChanged{DisplayName: name, EventContext: eventContext})
}

func (a sessionEventAdapter) iconPathChanged(path string, eventContext GUID) {
	a.cb(IconPathChanged{IconPath: path, EventContext: eventContext})
}

func (a sessionEventAdapter) simpleVolumeChanged(volume float32, muted bool, eventContext GUID) {
	a.cb(SimpleVolumeChanged{Volume: volume, Muted: muted, EventContext: eventContext})
}

func (a sessionEventAdapter) channelVolumeChanged(volumes []float32, changedChannel uint32, eventContext GUID) {
	// The platform array is only valid during the call.
	vols := make([]float32, len(volumes))
	copy(vols, volumes)
	a.cb(ChannelVolumeChanged{
		Volumes:        vols,
		ChangedChannel: changedChannel,
		EventContext:   eventContext,
	})
}

func (a sessionEventAdapter) groupingParamChanged(param GUID, eventContext GUID) {
	a.cb(GroupingParamChanged{GroupingParam: param, EventContext: eventContext})
}

func (a sessionEventAdapter) stateChanged(state uint32) {
	a.cb(StateChanged{State: sessionStateFromRaw(state)})
}

func (a sessionEventAdapter) sessionDisconnected(reason uint32) {
	a.cb(SessionDisconnected{Reason: disconnectReasonFromRaw(reason)})
}

// deviceEventAdapter converts raw device events into DeviceEvent values.
type deviceEventAdapter struct {
	cb DeviceEventFunc
}

func (a deviceEventAdapter) defaultDeviceChanged(flow, role uint32, deviceID string) {
	a.cb(DefaultDeviceChanged{
		Flow:     dataFlowFromRaw(flow),
		Role:     roleFromRaw(role),
		DeviceID: deviceID,
	})
}

func (a deviceEventAdapter) deviceAdded(deviceID string) {
	a.cb(DeviceAdded{DeviceID: deviceID})
}

func (a deviceEventAdapter) deviceRemoved(deviceID string) {
	a.cb(DeviceRemoved{DeviceID: deviceID})
}

func (a deviceEventAdapter) deviceStateChanged(deviceID string, state uint32) {
	a.cb(DeviceStateChanged{DeviceID: deviceID, State: deviceStateFromRaw(state)})
}

func (a deviceEventAdapter) propertyValueChanged(deviceID string, key PropertyKey) {
	a.cb(DevicePropertyValueChanged{DeviceID: deviceID, Key: key})
}

// sessionCreatedAdapter builds the Session of a newly created session
// control and passes it to cb. Sessions whose properties cannot be read are
// logged and dropped.
func sessionCreatedAdapter(p platform, log slog.Logger, cb SessionCreatedFunc) func(sessionControl) {
	return func(ctl sessionControl) {
		s, err := newSession(p, ctl)
		if err != nil {
			log.Warnf("Dropping session created notification: %v", err)
			return
		}
		log.Debugf("Session created: %s", s)
		cb(SessionCreated{Session: s})
	}
}
