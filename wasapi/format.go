package wasapi

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// FormatTag identifies the sample encoding of a SampleFormat.
type FormatTag uint16

const (
	// FormatTagUnsupported is any encoding this package cannot describe.
	FormatTagUnsupported FormatTag = 0x0000

	// FormatTagPCM is integer PCM.
	FormatTagPCM FormatTag = 0x0001

	// FormatTagIEEEFloat is IEEE 754 floating point samples.
	FormatTagIEEEFloat FormatTag = 0x0003

	// FormatTagExtensible is integer PCM described with the extended
	// descriptor (channel mask and valid bits).
	FormatTagExtensible FormatTag = 0xfffe
)

func (tag FormatTag) String() string {
	switch tag {
	case FormatTagPCM:
		return "pcm"
	case FormatTagIEEEFloat:
		return "float"
	case FormatTagExtensible:
		return "extensible"
	default:
		return "unsupported"
	}
}

// SampleFormat describes the layout of the interleaved samples of a stream.
type SampleFormat struct {
	Tag           FormatTag
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// NewSampleFormat returns an integer PCM sample format.
func NewSampleFormat(channels uint16, sampleRate uint32, bitsPerSample uint16) SampleFormat {
	return SampleFormat{
		Tag:           FormatTagPCM,
		Channels:      channels,
		SampleRate:    sampleRate,
		BitsPerSample: bitsPerSample,
	}
}

// DefaultSampleFormat is the format used for process loopback capture when no
// other format was requested: 2 channel, 44.1kHz, 16 bit PCM.
func DefaultSampleFormat() SampleFormat {
	return NewSampleFormat(2, 44100, 16)
}

// BlockAlign is the size in bytes of one frame (one sample for every
// channel).
func (f SampleFormat) BlockAlign() uint16 {
	return f.Channels * f.BitsPerSample / 8
}

// AvgBytesPerSec is the data rate of a stream in this format.
func (f SampleFormat) AvgBytesPerSec() uint32 {
	return f.SampleRate * uint32(f.BlockAlign())
}

// Validate returns ErrInvalidFormat when the format cannot be used to
// initialize a stream.
func (f SampleFormat) Validate() error {
	switch {
	case f.Tag == FormatTagUnsupported:
		return fmt.Errorf("%w: unsupported sample encoding", ErrInvalidFormat)
	case f.Channels == 0:
		return fmt.Errorf("%w: zero channels", ErrInvalidFormat)
	case f.SampleRate == 0:
		return fmt.Errorf("%w: zero sample rate", ErrInvalidFormat)
	case f.BitsPerSample == 0 || f.BitsPerSample%8 != 0:
		return fmt.Errorf("%w: %d bits per sample is not a whole number of bytes",
			ErrInvalidFormat, f.BitsPerSample)
	case f.Tag == FormatTagIEEEFloat && f.BitsPerSample != 32 && f.BitsPerSample != 64:
		return fmt.Errorf("%w: %d bit float samples", ErrInvalidFormat,
			f.BitsPerSample)
	}
	return nil
}

func (f SampleFormat) String() string {
	return fmt.Sprintf("%s %dch %dHz %dbit", f.Tag, f.Channels, f.SampleRate,
		f.BitsPerSample)
}

// Sub format GUIDs of the extended descriptor.
var (
	subFormatPCM       = GUID{0x00000001, 0x0000, 0x0010, [8]byte{0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}}
	subFormatIEEEFloat = GUID{0x00000003, 0x0000, 0x0010, [8]byte{0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}}
)

// Speaker positions used to fill the channel mask of extended descriptors.
const (
	speakerFrontLeft   = 0x1
	speakerFrontRight  = 0x2
	speakerFrontCenter = 0x4
)

const (
	// waveFormatSize is the packed size of the basic descriptor.
	waveFormatSize = 18

	// waveFormatExtensibleSize is the packed size of the extended
	// descriptor, including the basic one.
	waveFormatExtensibleSize = 40

	// waveFormatExtraSize is the value of the cbSize field of extended
	// descriptors.
	waveFormatExtraSize = waveFormatExtensibleSize - waveFormatSize
)

var errShortWaveFormat = errors.New("wave format descriptor too short")

// waveFormat is the platform's native stream format descriptor. The
// Valid/ChannelMask/SubFormat fields are only meaningful when FormatTag is
// FormatTagExtensible.
type waveFormat struct {
	FormatTag          uint16
	Channels           uint16
	SamplesPerSec      uint32
	AvgBytesPerSec     uint32
	BlockAlign         uint16
	BitsPerSample      uint16
	ValidBitsPerSample uint16
	ChannelMask        uint32
	SubFormat          GUID
}

// marshal encodes the descriptor in its packed, little endian, platform
// layout.
func (wf *waveFormat) marshal() []byte {
	size := waveFormatSize
	if wf.FormatTag == uint16(FormatTagExtensible) {
		size = waveFormatExtensibleSize
	}
	b := make([]byte, size)
	le := binary.LittleEndian
	le.PutUint16(b[0:], wf.FormatTag)
	le.PutUint16(b[2:], wf.Channels)
	le.PutUint32(b[4:], wf.SamplesPerSec)
	le.PutUint32(b[8:], wf.AvgBytesPerSec)
	le.PutUint16(b[12:], wf.BlockAlign)
	le.PutUint16(b[14:], wf.BitsPerSample)
	if size == waveFormatSize {
		return b
	}
	le.PutUint16(b[16:], waveFormatExtraSize)
	le.PutUint16(b[18:], wf.ValidBitsPerSample)
	le.PutUint32(b[20:], wf.ChannelMask)
	wf.SubFormat.put(b[24:])
	return b
}

// unmarshalWaveFormat decodes a descriptor in the platform layout. The
// extended fields are decoded only when the tag and size field require them.
func unmarshalWaveFormat(b []byte) (waveFormat, error) {
	var wf waveFormat
	if len(b) < waveFormatSize-2 {
		return wf, errShortWaveFormat
	}
	le := binary.LittleEndian
	wf.FormatTag = le.Uint16(b[0:])
	wf.Channels = le.Uint16(b[2:])
	wf.SamplesPerSec = le.Uint32(b[4:])
	wf.AvgBytesPerSec = le.Uint32(b[8:])
	wf.BlockAlign = le.Uint16(b[12:])
	wf.BitsPerSample = le.Uint16(b[14:])
	if wf.FormatTag != uint16(FormatTagExtensible) {
		return wf, nil
	}
	if len(b) < waveFormatExtensibleSize || le.Uint16(b[16:]) < waveFormatExtraSize {
		return wf, errShortWaveFormat
	}
	wf.ValidBitsPerSample = le.Uint16(b[18:])
	wf.ChannelMask = le.Uint32(b[20:])
	wf.SubFormat = guidFromBytes(b[24:])
	return wf, nil
}

func defaultChannelMask(channels uint16) uint32 {
	switch channels {
	case 1:
		return speakerFrontCenter
	case 2:
		return speakerFrontLeft | speakerFrontRight
	default:
		return 0
	}
}

// toWaveFormat converts the format into the platform descriptor.
func (f SampleFormat) toWaveFormat() waveFormat {
	wf := waveFormat{
		FormatTag:      uint16(f.Tag),
		Channels:       f.Channels,
		SamplesPerSec:  f.SampleRate,
		AvgBytesPerSec: f.AvgBytesPerSec(),
		BlockAlign:     f.BlockAlign(),
		BitsPerSample:  f.BitsPerSample,
	}
	if f.Tag == FormatTagExtensible {
		wf.ValidBitsPerSample = f.BitsPerSample
		wf.ChannelMask = defaultChannelMask(f.Channels)
		wf.SubFormat = subFormatPCM
	}
	return wf
}

// sampleFormatFromWaveFormat converts a platform descriptor. Extended
// descriptors carrying float samples map to FormatTagIEEEFloat.
func sampleFormatFromWaveFormat(wf *waveFormat) SampleFormat {
	f := SampleFormat{
		Channels:      wf.Channels,
		SampleRate:    wf.SamplesPerSec,
		BitsPerSample: wf.BitsPerSample,
	}
	switch FormatTag(wf.FormatTag) {
	case FormatTagPCM:
		f.Tag = FormatTagPCM
	case FormatTagIEEEFloat:
		f.Tag = FormatTagIEEEFloat
	case FormatTagExtensible:
		switch wf.SubFormat {
		case subFormatPCM:
			f.Tag = FormatTagExtensible
		case subFormatIEEEFloat:
			f.Tag = FormatTagIEEEFloat
		default:
			f.Tag = FormatTagUnsupported
		}
	default:
		f.Tag = FormatTagUnsupported
	}
	return f
}

// FormatSupport is the answer of a device to a format support query.
type FormatSupport int

const (
	// FormatUnsupported means the device cannot use the format.
	FormatUnsupported FormatSupport = iota

	// FormatSupported means the device can use the format as is.
	FormatSupported

	// FormatClosestMatch means the device cannot use the format but
	// proposed a similar one.
	FormatClosestMatch
)

func (fs FormatSupport) String() string {
	switch fs {
	case FormatSupported:
		return "supported"
	case FormatClosestMatch:
		return "closest match"
	default:
		return "unsupported"
	}
}
