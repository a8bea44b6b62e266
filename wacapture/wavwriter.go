package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/companyzero/winaudio/wasapi"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// packet is a captured packet copied out of the stream callback.
type packet struct {
	data   []byte
	frames uint32
	silent bool
}

// wavWriter writes captured packets to a WAV file. Float streams are
// converted to 16 bit PCM.
type wavWriter struct {
	f      *os.File
	enc    *wav.Encoder
	format wasapi.SampleFormat
	buf    *goaudio.IntBuffer
	frames uint64
}

// wavBitDepth is the bit depth of the file written for a stream format.
func wavBitDepth(f wasapi.SampleFormat) (int, error) {
	switch f.Tag {
	case wasapi.FormatTagPCM, wasapi.FormatTagExtensible:
		switch f.BitsPerSample {
		case 8, 16, 24, 32:
			return int(f.BitsPerSample), nil
		}
	case wasapi.FormatTagIEEEFloat:
		return 16, nil
	}
	return 0, fmt.Errorf("unsupported stream format %s", f)
}

func newWAVWriter(path string, format wasapi.SampleFormat) (*wavWriter, error) {
	bitDepth, err := wavBitDepth(format)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc := wav.NewEncoder(f, int(format.SampleRate), bitDepth,
		int(format.Channels), 1)
	return &wavWriter{
		f:      f,
		enc:    enc,
		format: format,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				SampleRate:  int(format.SampleRate),
				NumChannels: int(format.Channels),
			},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// decodeSamples converts the raw bytes of a packet to the integer samples
// written to the file.
func decodeSamples(dst []int, data []byte, format wasapi.SampleFormat) []int {
	dst = dst[:0]
	sampleSize := int(format.BitsPerSample / 8)
	le := binary.LittleEndian
	for i := 0; i+sampleSize <= len(data); i += sampleSize {
		b := data[i : i+sampleSize]
		var v int
		switch {
		case format.Tag == wasapi.FormatTagIEEEFloat && sampleSize == 4:
			v = floatToInt16(float64(math.Float32frombits(le.Uint32(b))))
		case format.Tag == wasapi.FormatTagIEEEFloat && sampleSize == 8:
			v = floatToInt16(math.Float64frombits(le.Uint64(b)))
		case sampleSize == 1:
			v = int(b[0])
		case sampleSize == 2:
			v = int(int16(le.Uint16(b)))
		case sampleSize == 3:
			v = int(int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8)
		case sampleSize == 4:
			v = int(int32(le.Uint32(b)))
		}
		dst = append(dst, v)
	}
	return dst
}

func floatToInt16(f float64) int {
	f = max(-1, min(1, f))
	return int(f * math.MaxInt16)
}

// silence fills dst with n silent samples.
func silence(dst []int, n int, format wasapi.SampleFormat) []int {
	var v int
	if format.Tag != wasapi.FormatTagIEEEFloat && format.BitsPerSample == 8 {
		// 8 bit samples are unsigned.
		v = 128
	}
	dst = dst[:0]
	for i := 0; i < n; i++ {
		dst = append(dst, v)
	}
	return dst
}

func (w *wavWriter) write(pkt packet) error {
	if pkt.silent {
		n := int(pkt.frames) * int(w.format.Channels)
		w.buf.Data = silence(w.buf.Data, n, w.format)
	} else {
		w.buf.Data = decodeSamples(w.buf.Data, pkt.data, w.format)
	}
	if len(w.buf.Data) == 0 {
		return nil
	}
	if err := w.enc.Write(w.buf); err != nil {
		return err
	}
	w.frames += uint64(pkt.frames)
	return nil
}

// Close finishes the WAV header and closes the file.
func (w *wavWriter) Close() error {
	if err := w.enc.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
