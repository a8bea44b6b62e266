package wasapi

import (
	"errors"
	"time"
	"unsafe"
)

// playbackLoop fills the writable part of the device buffer through cb until
// the stop event is signaled. Buffers for which cb returns false are released
// as silent.
func (as *AudioStream) playbackLoop(client audioClient, rc renderClient, cb PlaybackFunc,
	pollInterval time.Duration) (err error) {

	blockAlign := int(as.format.BlockAlign())
	bufferFrames, err := client.bufferSize()
	if err != nil {
		return wrapErr(ErrFailedToStartAudioClient, err)
	}

	dataEv, err := as.startClient(client)
	if err != nil {
		return err
	}
	defer func() {
		if err := dataEv.close(); err != nil {
			as.log.Warnf("Unable to close playback event: %v", err)
		}
	}()
	defer func() { err = as.teardownClient(client, err) }()

	events := []osEvent{dataEv, as.stop}
	var buffers, silent uint64
	for {
		idx, err := as.p.waitForEvents(events, pollInterval)
		switch {
		case errors.Is(err, errWaitTimeout):
			// Check the padding anyway.
		case err != nil:
			return wrapErr(ErrWaitFailed, err)
		case idx == stopEventIndex:
			as.log.Debugf("Playback loop done after %d buffers (%d silent)",
				buffers, silent)
			return nil
		}

		padding, err := client.currentPadding()
		if err != nil {
			return wrapErr(ErrFailedGettingBuffer, err)
		}
		if padding >= bufferFrames {
			continue
		}
		available := bufferFrames - padding

		ptr, err := rc.getBuffer(available)
		if err != nil {
			return wrapErr(ErrFailedGettingBuffer, err)
		}
		if ptr == nil {
			if err := rc.releaseBuffer(0, 0); err != nil {
				as.log.Warnf("Unable to release nil playback buffer: %v", err)
			}
			return wrapErr(ErrFailedGettingBuffer, errNilBuffer)
		}

		var flags uint32
		if active := cb(unsafe.Slice(ptr, int(available)*blockAlign)); !active {
			flags = uint32(BufferFlagSilent)
			silent += 1
		}
		if err := rc.releaseBuffer(available, flags); err != nil {
			return wrapErr(ErrFailedReleasingBuffer, err)
		}
		buffers += 1
	}
}
