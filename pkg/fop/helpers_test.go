package fop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"avaneesh/cop1-go/pkg/clcw"
	"avaneesh/cop1-go/pkg/frame"
)

// fakeSink records accepted frames and can be switched to busy
type fakeSink struct {
	mu     sync.Mutex
	frames []*frame.Frame
	busy   bool
}

func (s *fakeSink) Send(f *frame.Frame) SinkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return SinkBusy
	}
	s.frames = append(s.frames, f.Clone())
	return SinkAccepted
}

func (s *fakeSink) setBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = busy
}

func (s *fakeSink) sent() []*frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*frame.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// sequences returns N(S) of every AD frame sent, in order
func (s *fakeSink) sequences() []uint8 {
	var seqs []uint8
	for _, f := range s.sent() {
		if f.Type == frame.TypeAD {
			seqs = append(seqs, f.Sequence)
		}
	}
	return seqs
}

func (s *fakeSink) count(t frame.Type) int {
	n := 0
	for _, f := range s.sent() {
		if f.Type == t {
			n++
		}
	}
	return n
}

type transferRecord struct {
	status OperationStatus
	frame  *frame.Frame
}

type directiveRecord struct {
	status    OperationStatus
	tag       any
	kind      DirectiveKind
	qualifier int
}

// recorder is an Observer that keeps everything it is told
type recorder struct {
	mu         sync.Mutex
	transfers  []transferRecord
	directives []directiveRecord
	alerts     []AlertCode
	suspends   int
	statuses   []Status
	order      []string
}

func (r *recorder) OnTransfer(status OperationStatus, f *frame.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, transferRecord{status: status, frame: f})
	r.order = append(r.order, "transfer")
}

func (r *recorder) OnDirective(status OperationStatus, tag any, kind DirectiveKind, qualifier int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.directives = append(r.directives, directiveRecord{status: status, tag: tag, kind: kind, qualifier: qualifier})
	r.order = append(r.order, "directive")
}

func (r *recorder) OnAlert(code AlertCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, code)
	r.order = append(r.order, "alert")
}

func (r *recorder) OnSuspend() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suspends++
	r.order = append(r.order, "suspend")
}

func (r *recorder) OnStatus(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recorder) alertCodes() []AlertCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AlertCode(nil), r.alerts...)
}

func (r *recorder) directiveResults() []directiveRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]directiveRecord(nil), r.directives...)
}

func (r *recorder) transferResults() []transferRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transferRecord(nil), r.transfers...)
}

func (r *recorder) suspendCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspends
}

func (r *recorder) eventOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// positiveTransfers returns N(S) of positively confirmed frames
func (r *recorder) positiveTransfers() []uint8 {
	var seqs []uint8
	for _, tr := range r.transferResults() {
		if tr.status == PositiveConfirm {
			seqs = append(seqs, tr.frame.Sequence)
		}
	}
	return seqs
}

func (r *recorder) countTransfers(status OperationStatus) int {
	n := 0
	for _, tr := range r.transferResults() {
		if tr.status == status {
			n++
		}
	}
	return n
}

// testConfig uses a T1 long enough never to fire on its own
func testConfig() Config {
	config := DefaultConfig()
	config.ID = "test"
	config.T1 = time.Hour
	return config
}

type testHarness struct {
	engine  *Engine
	sink    *fakeSink
	obs     *recorder
	counter *frame.Counter
}

func newHarness(config Config) (*testHarness, error) {
	h := &testHarness{
		sink:    &fakeSink{},
		obs:     &recorder{},
		counter: frame.NewCounter(),
	}
	e, err := New(config, h.counter, frame.NewBCFactory(0), h.sink, nil)
	if err != nil {
		return nil, err
	}
	e.Register(h.obs)
	h.engine = e
	return h, nil
}

func newTestEngine(t *testing.T, config Config) *testHarness {
	t.Helper()

	h, err := newHarness(config)
	require.NoError(t, err)
	t.Cleanup(h.engine.Dispose)
	return h
}

// settle waits until every queued event has been applied and every
// notification it produced has reached the observers
func (h *testHarness) settle() bool {
	delivered := make(chan struct{})
	var once sync.Once
	if !h.engine.probe(func() {
		h.engine.dispatcher.post(func(Observer) {
			once.Do(func() { close(delivered) })
		})
	}) {
		return false
	}

	select {
	case <-delivered:
		return true
	case <-time.After(2 * time.Second):
		return false
	}
}

func (h *testHarness) sync(t *testing.T) {
	t.Helper()
	require.True(t, h.settle(), "engine did not settle")
}

func (h *testHarness) directive(t *testing.T, kind DirectiveKind, qualifier int) {
	t.Helper()
	require.NoError(t, h.engine.Directive(kind.String(), kind, qualifier))
	h.sync(t)
}

func (h *testHarness) clcw(t *testing.T, report clcw.CLCW) {
	t.Helper()
	require.NoError(t, h.engine.CLCW(report))
	h.sync(t)
}

// ack delivers a plain CLCW acknowledging everything before nr
func (h *testHarness) ack(t *testing.T, nr uint8) {
	t.Helper()
	h.clcw(t, clcw.CLCW{COPInEffect: clcw.COP1, ReportValue: nr})
}

// expireT1 applies a T1 expiry on the loop without waiting for the timer
func (h *testHarness) expireT1(t *testing.T) {
	t.Helper()
	require.True(t, h.engine.probe(func() {
		h.engine.t1.stop()
		h.engine.stats.timerExpiries.Add(1)
		h.engine.handleTimerExpiry()
	}))
	h.sync(t)
}

func (h *testHarness) transmit(t *testing.T, data ...byte) *frame.Frame {
	t.Helper()
	f := frame.NewAD(0, data)
	require.NoError(t, h.engine.Transmit(f, time.Second))
	return f
}

// activate brings the engine to S1 with V(S)=0
func (h *testHarness) activate(t *testing.T) {
	t.Helper()
	h.directive(t, InitADWithoutCLCW, 0)
	require.Equal(t, StateActive, h.engine.Status().State)
}

func (h *testHarness) timerRunning() bool {
	var running bool
	h.engine.probe(func() { running = h.engine.t1.running() })
	return running
}

func (h *testHarness) lastDirective(t *testing.T) directiveRecord {
	t.Helper()
	results := h.obs.directiveResults()
	require.NotEmpty(t, results)
	return results[len(results)-1]
}
