package wasapi

import (
	"errors"
	"sync"
	"time"

	"github.com/decred/slog"
)

var errNoActivatedInterface = errors.New("activation completed without an interface")

// activationSignal sets the completion event of an activation. Completion
// may arrive after the waiter gave up, so the event is only touched while
// the waiter still owns it.
type activationSignal struct {
	mtx       sync.Mutex
	ev        osEvent
	abandoned bool
	log       slog.Logger
}

func (as *activationSignal) completed() {
	as.mtx.Lock()
	defer as.mtx.Unlock()
	if as.abandoned {
		as.log.Debugf("Activation completed after its waiter left")
		return
	}
	if err := as.ev.set(); err != nil {
		as.log.Warnf("Unable to signal activation completion: %v", err)
	}
}

func (as *activationSignal) abandon() {
	as.mtx.Lock()
	as.abandoned = true
	as.mtx.Unlock()
	if err := as.ev.close(); err != nil {
		as.log.Warnf("Unable to close activation event: %v", err)
	}
}

// activateAudioClient performs the asynchronous activation handshake: it
// starts the activation of target, blocks until the platform signals its
// completion and returns the audio client of the activated interface.
//
// Every intermediate platform object is released on all paths. Must be
// called from a platform thread.
func activateAudioClient(p platform, target activationTarget, timeout time.Duration,
	log slog.Logger) (audioClient, error) {

	ev, err := p.newEvent()
	if err != nil {
		return nil, wrapErr(ErrEventCreation, err)
	}
	signal := &activationSignal{ev: ev, log: log}
	defer signal.abandon()

	op, err := p.activateAudioInterfaceAsync(target, signal.completed)
	if err != nil {
		return nil, wrapErr(ErrActivationFailed, err)
	}
	defer op.release()

	if _, err := p.waitForEvents([]osEvent{ev}, timeout); err != nil {
		return nil, wrapErr(ErrWaitFailed, err)
	}

	iface, err := op.activateResult()
	if err != nil {
		return nil, wrapErr(ErrActivationFailed, err)
	}
	if iface == nil {
		return nil, wrapErr(ErrActivationFailed, errNoActivatedInterface)
	}
	defer iface.release()

	client, err := iface.queryAudioClient()
	if err != nil {
		return nil, wrapErr(ErrFailedToStartAudioClient, err)
	}
	log.Tracef("Activated audio client for target %d", target.kind)
	return client, nil
}
