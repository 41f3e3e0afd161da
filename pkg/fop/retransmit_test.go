package fop

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avaneesh/cop1-go/pkg/frame"
)

func TestT1_RetransmitsOutstanding(t *testing.T) {
	h := activeWithFrames(t, testConfig(), 2)

	h.expireT1(t)

	assert.Equal(t, []uint8{0, 1, 0, 1}, h.sink.sequences())
	assert.Equal(t, StateRetransmitWithoutWait, h.engine.Status().State)
	assert.True(t, h.timerRunning())
}

func TestT1_LimitAlert(t *testing.T) {
	config := testConfig()
	config.TransmissionLimit = 3
	h := activeWithFrames(t, config, 2)

	h.expireT1(t)
	h.expireT1(t)
	h.expireT1(t)
	assert.Len(t, h.sink.sequences(), 8)
	assert.Empty(t, h.obs.alertCodes())

	h.expireT1(t)
	assert.Len(t, h.sink.sequences(), 8, "no frame is retransmitted more than L times")
	assert.Equal(t, []AlertCode{AlertT1}, h.obs.alertCodes())
	assert.Equal(t, StateInitial, h.engine.Status().State)
	assert.Equal(t, 0, h.engine.Status().QueueDepth)
	assert.Equal(t, 2, h.obs.countTransfers(NegativeConfirm))
}

func TestT1_LimitOneAllowsOneRetransmission(t *testing.T) {
	config := testConfig()
	config.TransmissionLimit = 1
	h := activeWithFrames(t, config, 1)

	h.expireT1(t)
	assert.Equal(t, []uint8{0, 0}, h.sink.sequences())
	assert.Empty(t, h.obs.alertCodes())
	assert.Equal(t, StateRetransmitWithoutWait, h.engine.Status().State)

	h.expireT1(t)
	assert.Equal(t, []uint8{0, 0}, h.sink.sequences())
	assert.Equal(t, []AlertCode{AlertT1}, h.obs.alertCodes())
	assert.Equal(t, StateInitial, h.engine.Status().State)
}

func TestT1_ExpiryWithEmptyQueue(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.activate(t)

	h.expireT1(t)

	assert.Equal(t, StateActive, h.engine.Status().State)
	assert.Empty(t, h.obs.alertCodes())
	assert.Empty(t, h.sink.sent())
}

func TestT1_ExpiryIgnoredInInitial(t *testing.T) {
	h := newTestEngine(t, testConfig())
	h.expireT1(t)
	assert.Equal(t, StateInitial, h.engine.Status().State)
	assert.Empty(t, h.obs.alertCodes())
}

func TestT1_RealTimerRetransmission(t *testing.T) {
	config := testConfig()
	config.T1 = 20 * time.Millisecond
	config.TransmissionLimit = 2
	h := newTestEngine(t, config)
	h.activate(t)
	h.transmit(t, 0)

	require.Eventually(t, func() bool {
		return h.engine.Status().State == StateInitial
	}, 2*time.Second, 5*time.Millisecond)

	h.sync(t)
	assert.Equal(t, []uint8{0, 0, 0}, h.sink.sequences())
	assert.Equal(t, []AlertCode{AlertT1}, h.obs.alertCodes())
}

func TestT1_StaleExpiryIgnored(t *testing.T) {
	h := activeWithFrames(t, testConfig(), 1)

	var gen uint64
	h.engine.probe(func() {
		gen = h.engine.t1.gen
		h.engine.t1.start(time.Hour)
	})

	// An expiry from the previous arming must not act
	require.True(t, h.engine.events.Push(event{kind: evTimer, timerGen: gen}))
	h.sync(t)

	assert.Equal(t, []uint8{0}, h.sink.sequences())
	assert.Zero(t, h.engine.Statistics().Snapshot().TimerExpiries)
}

func suspendedEngine(t *testing.T, frames int) *testHarness {
	t.Helper()
	config := testConfig()
	config.TransmissionLimit = 2
	config.TimeoutType = TimeoutSuspend
	h := activeWithFrames(t, config, frames)

	h.expireT1(t)
	h.expireT1(t)
	h.expireT1(t)
	require.Equal(t, StateSuspended, h.engine.Status().State)
	require.Equal(t, 1, h.obs.suspendCount())
	return h
}

func TestSuspend_PreservesQueue(t *testing.T) {
	h := suspendedEngine(t, 2)

	status := h.engine.Status()
	assert.Equal(t, 2, status.QueueDepth)
	assert.Equal(t, 2, status.Config.TransmissionLimit)
	assert.Empty(t, h.obs.alertCodes())
	assert.Zero(t, h.obs.countTransfers(NegativeConfirm))
	assert.False(t, h.timerRunning())

	err := h.engine.Transmit(frame.NewAD(0, []byte{9}), time.Second)
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, ReasonSuspended, rejected.Reason)
}

func TestSuspend_Resume(t *testing.T) {
	h := suspendedEngine(t, 2)

	h.directive(t, Resume, 0)

	assert.Equal(t, PositiveConfirm, h.lastDirective(t).status)
	assert.Equal(t, StateActive, h.engine.Status().State)
	assert.True(t, h.timerRunning())

	var counts []int
	h.engine.probe(func() {
		for _, entry := range h.engine.sent.entries {
			counts = append(counts, entry.transmissions)
		}
	})
	assert.Equal(t, []int{1, 1}, counts)

	// The retransmission budget is available again
	h.expireT1(t)
	assert.Equal(t, StateRetransmitWithoutWait, h.engine.Status().State)
	assert.Len(t, h.sink.sequences(), 8)

	h.transmit(t, 2)
	assert.Equal(t, 3, h.engine.Status().QueueDepth)
}

func TestSuspend_Terminate(t *testing.T) {
	h := suspendedEngine(t, 2)

	h.directive(t, Terminate, 0)

	assert.Equal(t, PositiveConfirm, h.lastDirective(t).status)
	assert.Equal(t, StateInitial, h.engine.Status().State)
	assert.Equal(t, 2, h.obs.countTransfers(NegativeConfirm))
	assert.Equal(t, []AlertCode{AlertTerm}, h.obs.alertCodes())
}

func TestSuspend_ConfigDirectiveAllowed(t *testing.T) {
	h := suspendedEngine(t, 1)

	h.directive(t, SetTransmissionLimit, 5)
	assert.Equal(t, PositiveConfirm, h.lastDirective(t).status)
	assert.Equal(t, StateSuspended, h.engine.Status().State)
}
