package wasapi

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/companyzero/winaudio/internal/testutils"
)

var (
	errFakeClosedEvent = errors.New("event already closed")
	errFakeEndOfStream = errors.New("device invalidated")
	errFakeFailure     = errors.New("fake platform failure")
)

// fakeEvent is an auto-reset event backed by a chan with one slot.
type fakeEvent struct {
	fp     *fakePlatform
	c      chan struct{}
	closed atomic.Bool
}

func (ev *fakeEvent) set() error {
	if ev.closed.Load() {
		return errFakeClosedEvent
	}
	select {
	case ev.c <- struct{}{}:
	default:
	}
	return nil
}

func (ev *fakeEvent) close() error {
	if !ev.closed.CompareAndSwap(false, true) {
		return errFakeClosedEvent
	}
	ev.fp.openEvents.Add(-1)
	return nil
}

// fakePlatform is an in-memory platform. Configuration fields must be set
// before the platform is used.
type fakePlatform struct {
	initThreadErr error
	newEventErr   error
	waitErr       error

	// Async activation behavior.
	activateErr         error
	neverComplete       bool
	activationResultErr error
	nilInterface        bool
	queryErr            error
	client              *fakeAudioClient

	captureDevs []*fakeDevice
	renderDevs  []*fakeDevice
	devicesErr  error

	// dosDevices maps DOS device names ("C:") to their NT targets.
	dosDevices    map[string]string
	dosDeviceErr  error
	dosDeviceRuns atomic.Int64

	// failInitThreadFrom makes initThread fail from that call number on.
	failInitThreadFrom atomic.Int64

	initThreadCalls atomic.Int64
	priorityRaised  atomic.Int64
	openEvents      atomic.Int64
	activations     atomic.Int64
	opReleases      atomic.Int64
	ifaceReleases   atomic.Int64

	mtx               sync.Mutex
	lastTarget        activationTarget
	pendingCompletion func()
	endpointSinks     []deviceEventSink
	endpointRegs      []*fakeRegistration
	endpointRegErr    error
}

func (fp *fakePlatform) initThread() error {
	n := fp.initThreadCalls.Add(1)
	if from := fp.failInitThreadFrom.Load(); from > 0 && n >= from {
		return errFakeFailure
	}
	return fp.initThreadErr
}

func (fp *fakePlatform) raiseThreadPriority() error {
	fp.priorityRaised.Add(1)
	return nil
}

func (fp *fakePlatform) newEvent() (osEvent, error) {
	if fp.newEventErr != nil {
		return nil, fp.newEventErr
	}
	fp.openEvents.Add(1)
	return &fakeEvent{fp: fp, c: make(chan struct{}, 1)}, nil
}

func (fp *fakePlatform) waitForEvents(events []osEvent, timeout time.Duration) (int, error) {
	if fp.waitErr != nil {
		return 0, fp.waitErr
	}
	cases := make([]reflect.SelectCase, 0, len(events)+1)
	for _, ev := range events {
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(ev.(*fakeEvent).c),
		})
	}
	if timeout >= 0 {
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(time.After(timeout)),
		})
	}
	chosen, _, _ := reflect.Select(cases)
	if chosen == len(events) {
		return 0, errWaitTimeout
	}
	return chosen, nil
}

func (fp *fakePlatform) activateAudioInterfaceAsync(target activationTarget, completed func()) (activationOperation, error) {
	if fp.activateErr != nil {
		return nil, fp.activateErr
	}
	fp.activations.Add(1)
	fp.mtx.Lock()
	fp.lastTarget = target
	if fp.neverComplete {
		fp.pendingCompletion = completed
	}
	fp.mtx.Unlock()
	if !fp.neverComplete {
		go completed()
	}
	return &fakeActivationOp{fp: fp}, nil
}

func (fp *fakePlatform) target() activationTarget {
	fp.mtx.Lock()
	defer fp.mtx.Unlock()
	return fp.lastTarget
}

func (fp *fakePlatform) defaultDevice(playback bool) (deviceHandle, error) {
	devs := fp.captureDevs
	if playback {
		devs = fp.renderDevs
	}
	if len(devs) == 0 {
		return nil, errFakeFailure
	}
	return devs[0], nil
}

func (fp *fakePlatform) devices(playback bool) ([]deviceHandle, error) {
	if fp.devicesErr != nil {
		return nil, fp.devicesErr
	}
	devs := fp.captureDevs
	if playback {
		devs = fp.renderDevs
	}
	res := make([]deviceHandle, len(devs))
	for i := range devs {
		res[i] = devs[i]
	}
	return res, nil
}

func (fp *fakePlatform) queryDosDevice(name string) (string, error) {
	fp.dosDeviceRuns.Add(1)
	if fp.dosDeviceErr != nil {
		return "", fp.dosDeviceErr
	}
	target, ok := fp.dosDevices[name]
	if !ok {
		return "", errFakeFailure
	}
	return target, nil
}

func (fp *fakePlatform) registerEndpointNotification(sink deviceEventSink) (registration, error) {
	fp.mtx.Lock()
	defer fp.mtx.Unlock()
	if fp.endpointRegErr != nil {
		return nil, fp.endpointRegErr
	}
	reg := &fakeRegistration{}
	fp.endpointSinks = append(fp.endpointSinks, sink)
	fp.endpointRegs = append(fp.endpointRegs, reg)
	return reg, nil
}

func (fp *fakePlatform) endpointSink(i int) deviceEventSink {
	fp.mtx.Lock()
	defer fp.mtx.Unlock()
	return fp.endpointSinks[i]
}

type fakeActivationOp struct {
	fp *fakePlatform
}

func (op *fakeActivationOp) activateResult() (activatedInterface, error) {
	if op.fp.activationResultErr != nil {
		return nil, op.fp.activationResultErr
	}
	if op.fp.nilInterface {
		return nil, nil
	}
	return &fakeActivatedInterface{fp: op.fp}, nil
}

func (op *fakeActivationOp) release() {
	op.fp.opReleases.Add(1)
}

type fakeActivatedInterface struct {
	fp *fakePlatform
}

func (iface *fakeActivatedInterface) queryAudioClient() (audioClient, error) {
	if iface.fp.queryErr != nil {
		return nil, iface.fp.queryErr
	}
	return iface.fp.client, nil
}

func (iface *fakeActivatedInterface) release() {
	iface.fp.ifaceReleases.Add(1)
}

type fakeRegistration struct {
	mtx          sync.Mutex
	err          error
	unregistered int
}

func (reg *fakeRegistration) unregister() error {
	reg.mtx.Lock()
	defer reg.mtx.Unlock()
	reg.unregistered += 1
	return reg.err
}

func (reg *fakeRegistration) unregisterCount() int {
	reg.mtx.Lock()
	defer reg.mtx.Unlock()
	return reg.unregistered
}

// fakeAudioClient simulates a device clock that signals the data event
// every tick while the client is started.
type fakeAudioClient struct {
	mix          waveFormat
	mixErr       error
	initErr      error
	startErr     error
	stopErr      error
	resetErr     error
	bufferFrames uint32
	tick         time.Duration

	capture *fakeCaptureClient
	render  *fakeRenderClient

	mtx          sync.Mutex
	initFlags    uint32
	initDuration time.Duration
	initFormat   *waveFormat
	event        osEvent
	stopTick     chan struct{}
	padding      uint32
	startCalls   int
	stopCalls    int
	resetCalls   int
	releaseCalls int
}

func newFakeAudioClient(mix SampleFormat) *fakeAudioClient {
	return &fakeAudioClient{
		mix:          mix.toWaveFormat(),
		bufferFrames: 480,
		tick:         time.Millisecond,
		capture:      &fakeCaptureClient{},
		render:       &fakeRenderClient{},
	}
}

func (c *fakeAudioClient) initialize(flags uint32, bufferDuration time.Duration, format *waveFormat) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.initErr != nil {
		return c.initErr
	}
	c.initFlags = flags
	c.initDuration = bufferDuration
	f := *format
	c.initFormat = &f
	return nil
}

func (c *fakeAudioClient) initialized() (uint32, time.Duration, *waveFormat) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.initFlags, c.initDuration, c.initFormat
}

func (c *fakeAudioClient) mixFormat() (*waveFormat, error) {
	if c.mixErr != nil {
		return nil, c.mixErr
	}
	mix := c.mix
	return &mix, nil
}

func (c *fakeAudioClient) isFormatSupported(format *waveFormat) (bool, *waveFormat, error) {
	if *format == c.mix {
		return true, nil, nil
	}
	mix := c.mix
	return false, &mix, nil
}

func (c *fakeAudioClient) bufferSize() (uint32, error) {
	return c.bufferFrames, nil
}

func (c *fakeAudioClient) currentPadding() (uint32, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.padding, nil
}

func (c *fakeAudioClient) setEventHandle(ev osEvent) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.event = ev
	return nil
}

func (c *fakeAudioClient) start() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.startCalls += 1
	if c.startErr != nil {
		return c.startErr
	}
	stop := make(chan struct{})
	c.stopTick = stop
	ev := c.event
	go func() {
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			c.mtx.Lock()
			c.padding = 0
			c.mtx.Unlock()
			ev.set()
		}
	}()
	return nil
}

func (c *fakeAudioClient) stop() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.stopCalls += 1
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
	return c.stopErr
}

func (c *fakeAudioClient) reset() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.resetCalls += 1
	return c.resetErr
}

func (c *fakeAudioClient) captureClient() (captureClient, error) {
	return c.capture, nil
}

func (c *fakeAudioClient) renderClient() (renderClient, error) {
	c.render.client = c
	return c.render, nil
}

func (c *fakeAudioClient) release() {
	c.mtx.Lock()
	c.releaseCalls += 1
	c.mtx.Unlock()
}

// calls returns the number of start, stop, reset and release calls.
func (c *fakeAudioClient) calls() (int, int, int, int) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.startCalls, c.stopCalls, c.resetCalls, c.releaseCalls
}

type fakePacket struct {
	data   []byte
	frames uint32

	// reported is returned as the next packet size instead of frames
	// when non-zero.
	reported uint32
	flags    uint32
	devPos   uint64
	qpc      uint64
}

type fakeCaptureClient struct {
	mtx            sync.Mutex
	packets        []fakePacket
	endOfStream    bool
	getBufferErr   error
	releaseErr     error
	getBufferCalls int
	released       []uint32
	releaseCalls   int
}

func (cc *fakeCaptureClient) push(pkts ...fakePacket) {
	cc.mtx.Lock()
	cc.packets = append(cc.packets, pkts...)
	cc.mtx.Unlock()
}

func (cc *fakeCaptureClient) nextPacketSize() (uint32, error) {
	cc.mtx.Lock()
	defer cc.mtx.Unlock()
	if len(cc.packets) == 0 {
		if cc.endOfStream {
			return 0, errFakeEndOfStream
		}
		return 0, nil
	}
	if cc.packets[0].reported != 0 {
		return cc.packets[0].reported, nil
	}
	return cc.packets[0].frames, nil
}

func (cc *fakeCaptureClient) getBuffer() (capturedBuffer, error) {
	cc.mtx.Lock()
	defer cc.mtx.Unlock()
	cc.getBufferCalls += 1
	if cc.getBufferErr != nil {
		return capturedBuffer{}, cc.getBufferErr
	}
	if len(cc.packets) == 0 {
		return capturedBuffer{}, nil
	}
	pkt := cc.packets[0]
	cc.packets = cc.packets[1:]
	buf := capturedBuffer{
		frames:         pkt.frames,
		flags:          pkt.flags,
		devicePosition: pkt.devPos,
		qpcPosition:    pkt.qpc,
	}
	if len(pkt.data) > 0 {
		buf.data = &pkt.data[0]
	}
	return buf, nil
}

func (cc *fakeCaptureClient) releaseBuffer(frames uint32) error {
	cc.mtx.Lock()
	defer cc.mtx.Unlock()
	cc.released = append(cc.released, frames)
	return cc.releaseErr
}

func (cc *fakeCaptureClient) release() {
	cc.mtx.Lock()
	cc.releaseCalls += 1
	cc.mtx.Unlock()
}

func (cc *fakeCaptureClient) releaseCount() int {
	cc.mtx.Lock()
	defer cc.mtx.Unlock()
	return cc.releaseCalls
}

func (cc *fakeCaptureClient) stats() (getBufferCalls int, released []uint32) {
	cc.mtx.Lock()
	defer cc.mtx.Unlock()
	return cc.getBufferCalls, append([]uint32(nil), cc.released...)
}

type fakeRelease struct {
	frames uint32
	flags  uint32
}

type fakeRenderClient struct {
	client *fakeAudioClient

	mtx          sync.Mutex
	buf          []byte
	getBufferErr error
	nilBuffer    bool
	releaseErr   error
	releases     []fakeRelease
	releaseCalls int
}

func (rc *fakeRenderClient) getBuffer(frames uint32) (*byte, error) {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()
	if rc.getBufferErr != nil {
		return nil, rc.getBufferErr
	}
	if rc.nilBuffer {
		return nil, nil
	}
	_, _, wf := rc.client.initialized()
	size := int(frames) * int(wf.BlockAlign)
	if len(rc.buf) < size {
		rc.buf = make([]byte, size)
	}
	return &rc.buf[0], nil
}

func (rc *fakeRenderClient) releaseBuffer(frames uint32, flags uint32) error {
	rc.mtx.Lock()
	rc.releases = append(rc.releases, fakeRelease{frames: frames, flags: flags})
	rc.mtx.Unlock()

	if rc.releaseErr != nil {
		return rc.releaseErr
	}

	c := rc.client
	c.mtx.Lock()
	c.padding = min(c.bufferFrames, c.padding+frames)
	c.mtx.Unlock()
	return nil
}

func (rc *fakeRenderClient) release() {
	rc.mtx.Lock()
	rc.releaseCalls += 1
	rc.mtx.Unlock()
}

func (rc *fakeRenderClient) releaseCount() int {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()
	return rc.releaseCalls
}

func (rc *fakeRenderClient) released() []fakeRelease {
	rc.mtx.Lock()
	defer rc.mtx.Unlock()
	return append([]fakeRelease(nil), rc.releases...)
}

type fakeDevice struct {
	devID    string
	name     string
	st       uint32
	idErr    error
	client   *fakeAudioClient
	mgr      *fakeSessionManager
	mgrErr   error
	mgrCalls atomic.Int64
}

func (d *fakeDevice) id() (string, error)           { return d.devID, d.idErr }
func (d *fakeDevice) friendlyName() (string, error) { return d.name, nil }
func (d *fakeDevice) state() (uint32, error)        { return d.st, nil }

func (d *fakeDevice) activateAudioClient() (audioClient, error) {
	if d.client == nil {
		return nil, errFakeFailure
	}
	return d.client, nil
}

func (d *fakeDevice) activateSessionManager() (sessionManager, error) {
	d.mgrCalls.Add(1)
	if d.mgrErr != nil {
		return nil, d.mgrErr
	}
	return d.mgr, nil
}

type fakeSessionManager struct {
	mtx        sync.Mutex
	sessions   []*fakeSessionControl
	countErr   error
	regErr     error
	countCalls int
	onCreated  []func(sessionControl)
	regs       []*fakeRegistration
}

func (m *fakeSessionManager) sessionEnumerator() (sessionEnumerator, error) {
	return m, nil
}

func (m *fakeSessionManager) count() (int, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.countCalls += 1
	return len(m.sessions), m.countErr
}

func (m *fakeSessionManager) session(i int) (sessionControl, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.sessions[i], nil
}

func (m *fakeSessionManager) registerSessionNotification(onCreated func(sessionControl)) (registration, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.regErr != nil {
		return nil, m.regErr
	}
	reg := &fakeRegistration{}
	m.onCreated = append(m.onCreated, onCreated)
	m.regs = append(m.regs, reg)
	return reg, nil
}

// createSession fires the session created callbacks of every registration
// not yet undone.
func (m *fakeSessionManager) createSession(ctl *fakeSessionControl) {
	m.mtx.Lock()
	var cbs []func(sessionControl)
	for i, reg := range m.regs {
		if reg.unregisterCount() == 0 {
			cbs = append(cbs, m.onCreated[i])
		}
	}
	m.mtx.Unlock()
	for _, cb := range cbs {
		cb(ctl)
	}
}

func (m *fakeSessionManager) stats() (countCalls int, regs []*fakeRegistration) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.countCalls, append([]*fakeRegistration(nil), m.regs...)
}

type fakeSessionControl struct {
	instanceID string
	pid        uint32
	system     bool
	display    string
	icon       string
	st         uint32
	regErr     error

	mtx   sync.Mutex
	sinks []sessionEventSink
	regs  []*fakeRegistration
}

func (s *fakeSessionControl) instanceIdentifier() (string, error) { return s.instanceID, nil }
func (s *fakeSessionControl) processID() (uint32, error)          { return s.pid, nil }
func (s *fakeSessionControl) isSystemSoundsSession() bool         { return s.system }
func (s *fakeSessionControl) displayName() (string, error)        { return s.display, nil }
func (s *fakeSessionControl) iconPath() (string, error)           { return s.icon, nil }
func (s *fakeSessionControl) state() (uint32, error)              { return s.st, nil }

func (s *fakeSessionControl) registerEvents(sink sessionEventSink) (registration, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.regErr != nil {
		return nil, s.regErr
	}
	reg := &fakeRegistration{}
	s.sinks = append(s.sinks, sink)
	s.regs = append(s.regs, reg)
	return reg, nil
}

func (s *fakeSessionControl) sink(i int) sessionEventSink {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.sinks[i]
}

func (s *fakeSessionControl) registrations() []*fakeRegistration {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]*fakeRegistration(nil), s.regs...)
}

// newTestAudioClient returns an AudioClient bound to fp.
func newTestAudioClient(t testing.TB, fp *fakePlatform, opts ...Option) *AudioClient {
	opts = append([]Option{
		withPlatform(fp),
		WithLogger(testutils.TestLoggerSys(t, "WASA")),
	}, opts...)
	return NewAudioClient(opts...)
}

func newTestNotifications(t testing.TB, fp *fakePlatform) *Notifications {
	n := NewNotifications(withPlatform(fp),
		WithLogger(testutils.TestLoggerSys(t, "NTFY")))
	t.Cleanup(n.Close)
	return n
}

// testCaptureFormat is 2 channel, 48kHz, 16 bit PCM (4 byte frames).
var testCaptureFormat = NewSampleFormat(2, 48000, 16)

func newCapturePlatform() (*fakePlatform, *fakeAudioClient) {
	client := newFakeAudioClient(testCaptureFormat)
	fp := &fakePlatform{client: client}
	return fp, client
}
