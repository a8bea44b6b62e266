package wasapi

import (
	"unsafe"
)

// captureLoop moves captured packets from the platform to cb until the stop
// event is signaled or the device reports the end of the stream.
func (as *AudioStream) captureLoop(client audioClient, cc captureClient, cb CaptureFunc) (err error) {
	blockAlign := int(as.format.BlockAlign())

	dataEv, err := as.startClient(client)
	if err != nil {
		return err
	}
	defer func() {
		if err := dataEv.close(); err != nil {
			as.log.Warnf("Unable to close capture event: %v", err)
		}
	}()
	defer func() { err = as.teardownClient(client, err) }()

	events := []osEvent{dataEv, as.stop}
	var packets, frames uint64
	for {
		available, err := cc.nextPacketSize()
		if err != nil {
			// The device is gone or the stream was invalidated.
			as.log.Debugf("Capture stream ended: %v", err)
			break
		}

		idx, err := as.p.waitForEvents(events, infiniteTimeout)
		if err != nil {
			return wrapErr(ErrWaitFailed, err)
		}
		if idx == stopEventIndex {
			break
		}
		if available == 0 {
			continue
		}

		buf, err := cc.getBuffer()
		if err != nil {
			return wrapErr(ErrFailedGettingBuffer, err)
		}
		if buf.frames > 0 {
			if buf.data == nil {
				if err := cc.releaseBuffer(buf.frames); err != nil {
					as.log.Warnf("Unable to release nil capture buffer: %v", err)
				}
				return wrapErr(ErrFailedGettingBuffer, errNilBuffer)
			}

			pkt := CapturePacket{
				Data:           unsafe.Slice(buf.data, int(buf.frames)*blockAlign),
				Frames:         buf.frames,
				Flags:          BufferFlags(buf.flags),
				DevicePosition: buf.devicePosition,
			}
			if !pkt.Flags.TimestampError() && buf.qpcPosition != 0 {
				pkt.Timestamp, pkt.HasTimestamp = streamInstantFromPerfCounter(buf.qpcPosition)
			}
			cb(pkt)
			packets += 1
			frames += uint64(buf.frames)
		}

		if err := cc.releaseBuffer(buf.frames); err != nil {
			return wrapErr(ErrFailedReleasingBuffer, err)
		}
	}

	as.log.Debugf("Capture loop done after %d packets (%d frames)", packets, frames)
	return nil
}
