package wasapi

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/decred/slog"
)

type workerCmdKind int

const (
	cmdRegister workerCmdKind = iota
	cmdUnregister
	cmdStop
)

type workerCommand struct {
	kind   workerCmdKind
	device *Device
	cb     SessionCreatedFunc
}

type workerRespKind int

const (
	respReady workerRespKind = iota
	respRegistered
	respUnregistered
	respNotFound
	respStopped

	// respRejected is a non-fatal failure of a single command.
	respRejected

	// respFailed is a fatal failure. The worker exits after sending it.
	respFailed
)

type workerResponse struct {
	kind workerRespKind
	err  error
}

// workerEntry is a registered session notification.
type workerEntry struct {
	mgr sessionManager
	reg registration
}

// sessionWorker owns the session managers and session created registrations
// of every device with a registered session notification. It runs on a
// dedicated platform thread and executes one command at a time.
type sessionWorker struct {
	p     platform
	log   slog.Logger
	cmds  chan workerCommand
	resps chan workerResponse
	done  chan struct{}

	// reqMtx serializes request/response pairs.
	reqMtx sync.Mutex
}

// startSessionWorker starts the worker thread and waits for it to be ready.
func startSessionWorker(p platform, log slog.Logger) (*sessionWorker, error) {
	w := &sessionWorker{
		p:     p,
		log:   log,
		cmds:  make(chan workerCommand),
		resps: make(chan workerResponse),
		done:  make(chan struct{}),
	}
	go w.run()

	resp := <-w.resps
	if resp.kind != respReady {
		<-w.done
		return nil, wrapErr(ErrFailedStartingNotificationThread, resp.err)
	}
	return w, nil
}

// running is true until the worker thread exits.
func (w *sessionWorker) running() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// request sends cmd to the worker and waits for its response.
func (w *sessionWorker) request(cmd workerCommand) (workerResponse, error) {
	w.reqMtx.Lock()
	defer w.reqMtx.Unlock()

	select {
	case w.cmds <- cmd:
	case <-w.done:
		return workerResponse{}, ErrSessionNotificationThreadNotRunning
	}

	// The worker sends a response to every command it receives before
	// exiting.
	resp := <-w.resps
	if resp.kind == respFailed || resp.kind == respStopped {
		<-w.done
	}
	return resp, nil
}

func (w *sessionWorker) run() {
	defer close(w.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := w.p.initThread(); err != nil {
		w.resps <- workerResponse{kind: respFailed, err: err}
		return
	}

	entries := make(map[string]workerEntry)
	w.resps <- workerResponse{kind: respReady}
	w.log.Debugf("Session notification worker running")

	for {
		cmd := <-w.cmds
		var resp workerResponse
		switch cmd.kind {
		case cmdRegister:
			resp = w.register(entries, cmd.device, cmd.cb)
		case cmdUnregister:
			resp = w.unregister(entries, cmd.device)
		case cmdStop:
			w.unregisterAll(entries)
			resp = workerResponse{kind: respStopped}
		default:
			panic(fmt.Sprintf("unknown worker command %d", cmd.kind))
		}

		if resp.kind == respFailed {
			w.log.Errorf("Session notification worker failed: %v", resp.err)
			w.unregisterAll(entries)
		}
		w.resps <- resp
		if resp.kind == respFailed || resp.kind == respStopped {
			w.log.Debugf("Session notification worker exiting")
			return
		}
	}
}

func (w *sessionWorker) register(entries map[string]workerEntry, dev *Device,
	cb SessionCreatedFunc) workerResponse {

	id, err := dev.handle.id()
	if err != nil {
		return workerResponse{kind: respFailed, err: wrapErr(ErrFailedGettingDeviceID, err)}
	}
	if _, ok := entries[id]; ok {
		return workerResponse{kind: respRejected, err: ErrNotificationAlreadyRegistered}
	}

	mgr, err := dev.handle.activateSessionManager()
	if err != nil {
		return workerResponse{kind: respFailed, err: wrapErr(ErrFailedActivatingSessionManager, err)}
	}
	enum, err := mgr.sessionEnumerator()
	if err != nil {
		return workerResponse{kind: respFailed, err: wrapErr(ErrFailedActivatingSessionManager, err)}
	}
	reg, err := mgr.registerSessionNotification(sessionCreatedAdapter(w.p, w.log, cb))
	if err != nil {
		return workerResponse{kind: respFailed, err: wrapErr(ErrFailedSettingUpNotification, err)}
	}
	entries[id] = workerEntry{mgr: mgr, reg: reg}

	// Session created notifications are only delivered after the
	// session list has been enumerated once.
	if _, err := enum.count(); err != nil {
		return workerResponse{kind: respFailed, err: wrapErr(ErrFailedActivatingSessionManager, err)}
	}

	w.log.Debugf("Registered session notification for device %s", id)
	return workerResponse{kind: respRegistered}
}

func (w *sessionWorker) unregister(entries map[string]workerEntry, dev *Device) workerResponse {
	id, err := dev.handle.id()
	if err != nil {
		return workerResponse{kind: respFailed, err: wrapErr(ErrFailedGettingDeviceID, err)}
	}
	entry, ok := entries[id]
	if !ok {
		return workerResponse{kind: respNotFound}
	}
	delete(entries, id)
	if err := entry.reg.unregister(); err != nil {
		return workerResponse{kind: respFailed, err: wrapErr(ErrNotificationUnregister, err)}
	}
	w.log.Debugf("Unregistered session notification for device %s", id)
	return workerResponse{kind: respUnregistered}
}

// unregisterAll undoes every registration, logging failures.
func (w *sessionWorker) unregisterAll(entries map[string]workerEntry) {
	for id, entry := range entries {
		if err := entry.reg.unregister(); err != nil {
			w.log.Warnf("Unable to unregister session notification of "+
				"device %s: %v", id, err)
		}
		delete(entries, id)
	}
}

// stop asks the worker to undo every registration and exit, then waits for
// it to finish.
func (w *sessionWorker) stop() {
	if _, err := w.request(workerCommand{kind: cmdStop}); err != nil {
		w.log.Debugf("Session notification worker already exited")
	}
	<-w.done
}
