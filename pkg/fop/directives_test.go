package fop

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avaneesh/cop1-go/pkg/clcw"
	"avaneesh/cop1-go/pkg/frame"
)

func TestConfigDirectives_Validation(t *testing.T) {
	tests := []struct {
		name      string
		kind      DirectiveKind
		qualifier int
		expected  OperationStatus
	}{
		{"window 1", SetFOPSlidingWindow, 1, PositiveConfirm},
		{"window 255", SetFOPSlidingWindow, 255, PositiveConfirm},
		{"window 0", SetFOPSlidingWindow, 0, NegativeConfirm},
		{"window 256", SetFOPSlidingWindow, 256, NegativeConfirm},
		{"T1 1s", SetT1Initial, 1, PositiveConfirm},
		{"T1 0", SetT1Initial, 0, NegativeConfirm},
		{"T1 negative", SetT1Initial, -3, NegativeConfirm},
		{"limit 5", SetTransmissionLimit, 5, PositiveConfirm},
		{"limit 0", SetTransmissionLimit, 0, NegativeConfirm},
		{"timeout alert", SetTimeoutType, 0, PositiveConfirm},
		{"timeout suspend", SetTimeoutType, 1, PositiveConfirm},
		{"timeout 2", SetTimeoutType, 2, NegativeConfirm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestEngine(t, testConfig())
			before := h.engine.Status().Config

			h.directive(t, tt.kind, tt.qualifier)

			result := h.lastDirective(t)
			assert.Equal(t, tt.expected, result.status)
			assert.Equal(t, tt.kind, result.kind)
			assert.Equal(t, tt.qualifier, result.qualifier)
			assert.Equal(t, StateInitial, h.engine.Status().State)
			if tt.expected == NegativeConfirm {
				assert.Equal(t, before, h.engine.Status().Config, "rejected directive must not change configuration")
			}
		})
	}
}

func TestConfigDirectives_RejectedWhileInitialising(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.directive(t, InitADWithCLCW, 0)

	for _, kind := range []DirectiveKind{SetFOPSlidingWindow, SetT1Initial, SetTransmissionLimit, SetTimeoutType} {
		h.directive(t, kind, 1)
		assert.Equal(t, NegativeConfirm, h.lastDirective(t).status, kind.String())
	}
	assert.Equal(t, StateInitialisingWithoutBC, h.engine.Status().State)

	h.directive(t, Terminate, 0)
	h.directive(t, InitADWithUnlock, 0)
	h.directive(t, SetFOPSlidingWindow, 3)
	assert.Equal(t, NegativeConfirm, h.lastDirective(t).status)
}

func TestConfigDirectives_WindowBelowQueueDepth(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.activate(t)
	for i := 0; i < 4; i++ {
		h.transmit(t, byte(i))
	}

	h.directive(t, SetFOPSlidingWindow, 3)
	assert.Equal(t, NegativeConfirm, h.lastDirective(t).status)

	h.directive(t, SetFOPSlidingWindow, 4)
	assert.Equal(t, PositiveConfirm, h.lastDirective(t).status)
	assert.Equal(t, StateActive, h.engine.Status().State)
}

func TestInitADWithoutCLCW(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.counter.SetFrameCounter(42)

	h.directive(t, InitADWithoutCLCW, 0)

	assert.Equal(t, PositiveConfirm, h.lastDirective(t).status)
	status := h.engine.Status()
	assert.Equal(t, StateActive, status.State)
	assert.Equal(t, uint8(0), status.VS)
	assert.Equal(t, uint8(0), h.counter.Peek())

	// Only valid from S6
	h.directive(t, InitADWithoutCLCW, 0)
	assert.Equal(t, NegativeConfirm, h.lastDirective(t).status)
	assert.Equal(t, StateActive, h.engine.Status().State)
}

func TestInitDirectives_OnlyFromInitial(t *testing.T) {
	for _, kind := range []DirectiveKind{InitADWithCLCW, InitADWithUnlock, InitADWithSetVR} {
		t.Run(kind.String(), func(t *testing.T) {
			h := newTestEngine(t, testConfig())
			h.activate(t)

			h.directive(t, kind, 0)
			assert.Equal(t, NegativeConfirm, h.lastDirective(t).status)
			assert.Equal(t, StateActive, h.engine.Status().State)
			assert.Zero(t, h.sink.count(frame.TypeBC))
		})
	}
}

func TestInitADWithCLCW_LockoutFails(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.directive(t, InitADWithCLCW, 0)

	h.clcw(t, clcw.CLCW{COPInEffect: clcw.COP1, Lockout: true})

	assert.Equal(t, StateInitial, h.engine.Status().State)
	assert.Equal(t, []AlertCode{AlertLockout}, h.obs.alertCodes())
	assert.Equal(t, NegativeConfirm, h.lastDirective(t).status)
}

func TestInitADWithCLCW_RetriesUntilLimit(t *testing.T) {
	config := testConfig()
	config.TransmissionLimit = 3
	h := newTestEngine(t, config)
	h.directive(t, InitADWithCLCW, 0)

	h.expireT1(t)
	h.expireT1(t)
	assert.Equal(t, StateInitialisingWithoutBC, h.engine.Status().State)
	assert.True(t, h.timerRunning())

	h.expireT1(t)
	assert.Equal(t, StateInitial, h.engine.Status().State)
	assert.Equal(t, []AlertCode{AlertT1}, h.obs.alertCodes())
}

func TestInitADWithCLCW_UsesSetVS(t *testing.T) {
	h := newTestEngine(t, testConfig())

	h.directive(t, SetVS, 7)
	assert.Equal(t, PositiveConfirm, h.lastDirective(t).status)
	assert.Equal(t, uint8(7), h.engine.Status().VS)

	h.directive(t, InitADWithCLCW, 0)
	h.ack(t, 7)
	require.Equal(t, StateActive, h.engine.Status().State)

	f := h.transmit(t, 1)
	assert.Equal(t, uint8(7), f.Sequence)
}

func TestInitADWithUnlock(t *testing.T) {
	h := newTestEngine(t, testConfig())

	// A CLCW seen before the directive is the FARM-B baseline
	h.clcw(t, clcw.CLCW{COPInEffect: clcw.COP1, Lockout: true, FarmB: 1})
	assert.Equal(t, StateInitial, h.engine.Status().State)
	assert.Empty(t, h.obs.alertCodes())

	h.directive(t, InitADWithUnlock, 0)
	assert.Equal(t, StateInitialisingWithBC, h.engine.Status().State)

	sent := h.sink.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, frame.TypeBC, sent[0].Type)
	assert.Equal(t, frame.ControlUnlock, sent[0].Command)

	// Lockout is what Unlock clears; it is not an alert here
	h.clcw(t, clcw.CLCW{COPInEffect: clcw.COP1, Lockout: true, FarmB: 1})
	assert.Equal(t, StateInitialisingWithBC, h.engine.Status().State)
	assert.Empty(t, h.obs.alertCodes())

	h.clcw(t, clcw.CLCW{COPInEffect: clcw.COP1, FarmB: 2})
	assert.Equal(t, StateActive, h.engine.Status().State)
	last := h.lastDirective(t)
	assert.Equal(t, PositiveConfirm, last.status)
	assert.Equal(t, InitADWithUnlock, last.kind)
	assert.False(t, h.timerRunning())
	assert.EqualValues(t, 1, h.engine.Statistics().Snapshot().ControlSent)
}

func TestInitADWithUnlock_BaselineFromFirstCLCW(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.directive(t, InitADWithUnlock, 0)

	h.clcw(t, clcw.CLCW{COPInEffect: clcw.COP1, FarmB: 3})
	assert.Equal(t, StateInitialisingWithBC, h.engine.Status().State)

	h.clcw(t, clcw.CLCW{COPInEffect: clcw.COP1, FarmB: 3})
	assert.Equal(t, StateInitialisingWithBC, h.engine.Status().State)

	h.clcw(t, clcw.CLCW{COPInEffect: clcw.COP1, FarmB: 0})
	assert.Equal(t, StateActive, h.engine.Status().State)
}

func TestInitADWithSetVR(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.clcw(t, clcw.CLCW{COPInEffect: clcw.COP1, FarmB: 0})

	h.directive(t, InitADWithSetVR, 200)

	sent := h.sink.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, frame.ControlSetVR, sent[0].Command)
	assert.Equal(t, uint8(200), sent[0].VR)
	assert.Equal(t, uint8(200), h.engine.Status().VS)
	assert.Equal(t, uint8(200), h.counter.Peek())

	h.clcw(t, clcw.CLCW{COPInEffect: clcw.COP1, FarmB: 1, ReportValue: 200})
	require.Equal(t, StateActive, h.engine.Status().State)

	f := h.transmit(t, 1)
	assert.Equal(t, uint8(200), f.Sequence)
}

func TestInitADWithSetVR_InvalidQualifier(t *testing.T) {
	h := newTestEngine(t, testConfig())

	h.directive(t, InitADWithSetVR, 256)
	assert.Equal(t, NegativeConfirm, h.lastDirective(t).status)
	assert.Equal(t, StateInitial, h.engine.Status().State)
	assert.Empty(t, h.sink.sent())
}

func TestInitWithBC_RetransmitsUntilLimit(t *testing.T) {
	config := testConfig()
	config.TransmissionLimit = 3
	h := newTestEngine(t, config)
	h.directive(t, InitADWithUnlock, 0)

	h.expireT1(t)
	h.expireT1(t)
	h.expireT1(t)
	assert.Equal(t, 4, h.sink.count(frame.TypeBC))
	assert.Equal(t, StateInitialisingWithBC, h.engine.Status().State)

	h.expireT1(t)
	assert.Equal(t, 4, h.sink.count(frame.TypeBC))
	assert.Equal(t, StateInitial, h.engine.Status().State)
	assert.Equal(t, []AlertCode{AlertT1}, h.obs.alertCodes())
	assert.Equal(t, NegativeConfirm, h.lastDirective(t).status)
}

func TestTerminate_FromInitial(t *testing.T) {
	h := newTestEngine(t, testConfig())

	h.directive(t, Terminate, 0)

	assert.Equal(t, PositiveConfirm, h.lastDirective(t).status)
	assert.Empty(t, h.obs.alertCodes())
	assert.Equal(t, StateInitial, h.engine.Status().State)
}

func TestTerminate_PurgesOutstanding(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.activate(t)
	h.transmit(t, 0)
	h.transmit(t, 1)

	require.NoError(t, h.engine.Directive("stop", Terminate, 0))
	h.sync(t)

	status := h.engine.Status()
	assert.Equal(t, StateInitial, status.State)
	assert.Equal(t, 0, status.QueueDepth)
	assert.False(t, h.timerRunning())
	assert.Equal(t, []AlertCode{AlertTerm}, h.obs.alertCodes())
	assert.Equal(t, 2, h.obs.countTransfers(NegativeConfirm))

	last := h.lastDirective(t)
	assert.Equal(t, PositiveConfirm, last.status)
	assert.Equal(t, "stop", last.tag)

	// Alert, then purge confirmations, then the directive confirmation
	assert.Equal(t, []string{"directive", "alert", "transfer", "transfer", "directive"}, h.obs.eventOrder())
}

func TestTerminate_DuringInitialisation(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.directive(t, InitADWithUnlock, 0)

	h.directive(t, Terminate, 0)

	results := h.obs.directiveResults()
	require.Len(t, results, 2)
	assert.Equal(t, InitADWithUnlock, results[0].kind)
	assert.Equal(t, NegativeConfirm, results[0].status)
	assert.Equal(t, Terminate, results[1].kind)
	assert.Equal(t, PositiveConfirm, results[1].status)
	assert.Equal(t, StateInitial, h.engine.Status().State)
}

func TestTerminate_RejectsWaitingTransmits(t *testing.T) {
	config := testConfig()
	config.WindowSize = 1
	h := newTestEngine(t, config)
	h.activate(t)
	h.transmit(t, 0)

	done := make(chan error, 1)
	go func() {
		done <- h.engine.Transmit(frame.NewAD(0, []byte{1}), 2*time.Second)
	}()
	require.Eventually(t, func() bool {
		return h.engine.Status().Pending == 1
	}, time.Second, time.Millisecond)

	h.directive(t, Terminate, 0)

	var rejected *RejectedError
	require.True(t, errors.As(<-done, &rejected))
	assert.Equal(t, ReasonPurged, rejected.Reason)
}

func TestResume_OnlyWhenSuspended(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.directive(t, Resume, 0)
	assert.Equal(t, NegativeConfirm, h.lastDirective(t).status)

	h.activate(t)
	h.directive(t, Resume, 0)
	assert.Equal(t, NegativeConfirm, h.lastDirective(t).status)
}

func TestSetVS_Validation(t *testing.T) {
	h := newTestEngine(t, testConfig())

	h.directive(t, SetVS, 256)
	assert.Equal(t, NegativeConfirm, h.lastDirective(t).status)
	h.directive(t, SetVS, -1)
	assert.Equal(t, NegativeConfirm, h.lastDirective(t).status)

	h.activate(t)
	h.directive(t, SetVS, 3)
	assert.Equal(t, NegativeConfirm, h.lastDirective(t).status)
	assert.Equal(t, uint8(0), h.engine.Status().VS)
}

func TestDirective_UnknownKind(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.directive(t, DirectiveKind(99), 0)
	assert.Equal(t, NegativeConfirm, h.lastDirective(t).status)
	assert.Equal(t, "UNKNOWN", DirectiveKind(99).String())
}

func TestParseDirectiveKind(t *testing.T) {
	for k := InitADWithoutCLCW; k <= SetTimeoutType; k++ {
		got, err := ParseDirectiveKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseDirectiveKind("LAUNCH")
	assert.ErrorIs(t, err, ErrUnknownDirective)
}
