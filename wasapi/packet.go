package wasapi

import "strings"

// BufferFlags are the status flags attached to a captured or rendered
// buffer.
type BufferFlags uint32

const (
	BufferFlagDataDiscontinuity BufferFlags = 0x1
	BufferFlagSilent            BufferFlags = 0x2
	BufferFlagTimestampError    BufferFlags = 0x4
)

// Silent is true when the data of the buffer should be treated as silence.
func (f BufferFlags) Silent() bool { return f&BufferFlagSilent != 0 }

// Discontinuity is true when the buffer does not follow the previous one.
func (f BufferFlags) Discontinuity() bool { return f&BufferFlagDataDiscontinuity != 0 }

// TimestampError is true when the device could not timestamp the buffer.
func (f BufferFlags) TimestampError() bool { return f&BufferFlagTimestampError != 0 }

func (f BufferFlags) String() string {
	var s []string
	if f.Discontinuity() {
		s = append(s, "discontinuity")
	}
	if f.Silent() {
		s = append(s, "silent")
	}
	if f.TimestampError() {
		s = append(s, "timestamp-error")
	}
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, "|")
}

// CapturePacket is a block of captured frames. Data is a view into a
// platform owned buffer: it is only valid for the duration of the capture
// callback and must be copied to be retained.
type CapturePacket struct {
	Data           []byte
	Frames         uint32
	Flags          BufferFlags
	DevicePosition uint64

	// Timestamp is the performance counter time at which the first frame
	// was captured. It is only valid if HasTimestamp is true.
	Timestamp    StreamInstant
	HasTimestamp bool
}

// CaptureFunc receives the packets of a capture stream. It is called from the
// stream's thread and should return promptly. It must not call Stop on its
// own stream, which waits for that thread; use go as.Stop() instead.
type CaptureFunc func(pkt CapturePacket)

// PlaybackFunc fills buf with frames to be played. It returns false to have
// the buffer played as silence. Like CaptureFunc, it must not call Stop
// synchronously.
type PlaybackFunc func(buf []byte) bool

// ErrorFunc is called once, from the stream's thread, with the error that
// terminated a stream. It must not call Stop synchronously.
type ErrorFunc func(err error)
