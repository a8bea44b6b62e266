package wasapi

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/companyzero/winaudio/internal/logutil"
	"github.com/decred/slog"
)

// stopEventIndex is the index of the stop event in the event sets waited on
// by the pump loops.
const stopEventIndex = 1

// streamIDs numbers the started streams in logs.
var streamIDs atomic.Uint64

// StreamConfig is an initialized audio client ready to be started. It is
// created by the AudioClient entry points and consumed by Start.
type StreamConfig struct {
	p             platform
	log           slog.Logger
	format        SampleFormat
	capture       bool
	captureCB     CaptureFunc
	playbackCB    PlaybackFunc
	errCB         ErrorFunc
	pollInterval  time.Duration
	boostPriority bool

	mtx    sync.Mutex
	client audioClient
}

// Format is the resolved sample format of the stream.
func (sc *StreamConfig) Format() SampleFormat {
	return sc.format
}

// IsCapture is true for capture streams and false for playback ones.
func (sc *StreamConfig) IsCapture() bool {
	return sc.capture
}

// take moves the audio client out of the config.
func (sc *StreamConfig) take() audioClient {
	sc.mtx.Lock()
	client := sc.client
	sc.client = nil
	sc.mtx.Unlock()
	return client
}

// Close releases the audio client of a config that will not be started. It
// is a no-op after Start.
func (sc *StreamConfig) Close() {
	if client := sc.take(); client != nil {
		client.release()
	}
}

// Start launches the stream thread that moves data between the platform and
// the stream callback. A config can only be started once.
func (sc *StreamConfig) Start() (*AudioStream, error) {
	client := sc.take()
	if client == nil {
		return nil, ErrStreamAlreadyStarted
	}

	as := &AudioStream{
		p:      sc.p,
		log:    logutil.PrefixLogger(sc.log, "%s %d", sc.direction(), streamIDs.Add(1)),
		format: sc.format,
		errCB:  sc.errCB,
		done:   make(chan struct{}),
	}

	var pump func() error
	var releaseService func()
	err := withPlatformThread(sc.p, func() error {
		stop, err := sc.p.newEvent()
		if err != nil {
			return wrapErr(ErrEventCreation, err)
		}

		if sc.capture {
			cc, err := client.captureClient()
			if err != nil {
				stop.close()
				return wrapErr(ErrFailedToStartAudioClient, err)
			}
			releaseService = cc.release
			pump = func() error {
				return as.captureLoop(client, cc, sc.captureCB)
			}
		} else {
			rc, err := client.renderClient()
			if err != nil {
				stop.close()
				return wrapErr(ErrFailedToStartAudioClient, err)
			}
			releaseService = rc.release
			pump = func() error {
				return as.playbackLoop(client, rc, sc.playbackCB, sc.pollInterval)
			}
		}
		as.stop = stop
		return nil
	})
	if err != nil {
		client.release()
		return nil, err
	}

	ready := make(chan error, 1)
	go as.run(ready, client, releaseService, pump, sc.boostPriority)
	if err := <-ready; err != nil {
		<-as.done
		if err := as.stop.close(); err != nil {
			as.log.Warnf("Unable to close stop event: %v", err)
		}
		return nil, wrapErr(ErrFailedToCreateThread, err)
	}

	as.log.Debugf("Started stream with format %s", sc.format)
	return as, nil
}

func (sc *StreamConfig) direction() string {
	if sc.capture {
		return "capture"
	}
	return "playback"
}

// AudioStream is a running capture or playback stream.
type AudioStream struct {
	p      platform
	log    slog.Logger
	format SampleFormat
	errCB  ErrorFunc
	stop   osEvent
	done   chan struct{}
	runErr error

	stopOnce sync.Once
}

// run is the stream thread. It owns the audio client and its capture or
// render service and releases both on exit, including when the thread fails
// to initialize. Stream threads never unlock their OS thread: the raised
// priority dies with the thread when run returns.
func (as *AudioStream) run(ready chan<- error, client audioClient, releaseService func(),
	pump func() error, boostPriority bool) {

	defer close(as.done)
	defer client.release()
	defer releaseService()

	runtime.LockOSThread()
	if err := as.p.initThread(); err != nil {
		ready <- err
		return
	}
	if boostPriority {
		if err := as.p.raiseThreadPriority(); err != nil {
			as.log.Warnf("Unable to raise stream thread priority: %v", err)
		}
	}
	ready <- nil

	err := pump()
	if err == nil {
		as.log.Debugf("Stream loop finished")
		return
	}
	as.log.Errorf("Stream loop failed: %v", err)
	as.runErr = err
	if as.errCB != nil {
		as.errCB(err)
	}
}

// Stop signals the stream thread to finish and waits until it has released
// every platform resource. It is safe to call multiple times and after the
// stream failed. Calling it synchronously from a stream callback deadlocks,
// since the callback runs on the thread Stop waits for.
func (as *AudioStream) Stop() {
	as.stopOnce.Do(func() {
		if err := as.stop.set(); err != nil {
			as.log.Warnf("Unable to signal stream stop: %v", err)
		}
		<-as.done
		if err := as.stop.close(); err != nil {
			as.log.Warnf("Unable to close stop event: %v", err)
		}
	})
}

// Done is closed once the stream thread has finished.
func (as *AudioStream) Done() <-chan struct{} {
	return as.done
}

// Err is the error that terminated the stream. It is only set after the
// stream is done.
func (as *AudioStream) Err() error {
	select {
	case <-as.done:
		return as.runErr
	default:
		return nil
	}
}

// Format is the sample format of the stream.
func (as *AudioStream) Format() SampleFormat {
	return as.format
}

// teardownClient stops and resets client after a pump loop. The first
// failure is reported only when the loop itself succeeded; other failures
// are logged.
func (as *AudioStream) teardownClient(client audioClient, loopErr error) error {
	if err := client.stop(); err != nil {
		err = wrapErr(ErrFailedStoppingAudioClient, err)
		if loopErr == nil {
			loopErr = err
		} else {
			as.log.Warnf("Teardown error after loop failure: %v", err)
		}
	}
	if err := client.reset(); err != nil {
		err = wrapErr(ErrFailedResettingAudioClient, err)
		if loopErr == nil {
			loopErr = err
		} else {
			as.log.Warnf("Teardown error after loop failure: %v", err)
		}
	}
	return loopErr
}

// startClient creates the data event of a pump loop, attaches it to client
// and starts the client. On success, the caller owns the returned event.
func (as *AudioStream) startClient(client audioClient) (osEvent, error) {
	dataEv, err := as.p.newEvent()
	if err != nil {
		return nil, wrapErr(ErrFailedToCreateStopEvent, err)
	}
	if err := client.setEventHandle(dataEv); err != nil {
		dataEv.close()
		return nil, wrapErr(ErrFailedToSetupEventHandle, err)
	}
	if err := client.start(); err != nil {
		dataEv.close()
		return nil, wrapErr(ErrFailedToStartAudioClient, err)
	}
	return dataEv, nil
}
