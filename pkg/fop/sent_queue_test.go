package fop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avaneesh/cop1-go/pkg/frame"
)

func fillQueue(start uint8, count int) *sentQueue {
	q := newSentQueue()
	for i := 0; i < count; i++ {
		seq := start + uint8(i)
		f := frame.NewAD(0, []byte{seq})
		f.Sequence = seq
		q.push(&sentEntry{frame: f, seq: seq, transmissions: 1})
	}
	return q
}

func TestSentQueue_AcknowledgePartial(t *testing.T) {
	q := fillQueue(10, 5) // 10..14

	acked, res := q.acknowledge(13, 15, 10)
	require.Equal(t, ackValid, res)
	require.Len(t, acked, 3)
	assert.Equal(t, uint8(10), acked[0].seq)
	assert.Equal(t, uint8(12), acked[2].seq)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, uint8(13), q.entries[0].seq)
}

func TestSentQueue_AcknowledgeAcrossWrap(t *testing.T) {
	q := fillQueue(254, 4) // 254, 255, 0, 1

	acked, res := q.acknowledge(1, 2, 10)
	require.Equal(t, ackValid, res)
	assert.Len(t, acked, 3)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, uint8(1), q.entries[0].seq)
}

func TestSentQueue_StaleAndInvalid(t *testing.T) {
	q := fillQueue(20, 3) // 20..22, V(S)=23

	acked, res := q.acknowledge(18, 23, 10)
	assert.Equal(t, ackStale, res)
	assert.Empty(t, acked)
	assert.Equal(t, 3, q.Len())

	acked, res = q.acknowledge(30, 23, 10)
	assert.Equal(t, ackInvalid, res)
	assert.Empty(t, acked)
	assert.Equal(t, 3, q.Len())

	// Duplicate of an already-seen value
	_, res = q.acknowledge(20, 23, 10)
	assert.Equal(t, ackValid, res)
	assert.Equal(t, 3, q.Len())
}

func TestSentQueue_EmptyQueueUsesVS(t *testing.T) {
	q := newSentQueue()

	_, res := q.acknowledge(5, 5, 10)
	assert.Equal(t, ackValid, res)

	_, res = q.acknowledge(4, 5, 10)
	assert.Equal(t, ackStale, res)

	_, res = q.acknowledge(6, 5, 10)
	assert.Equal(t, ackInvalid, res)
}

func TestSentQueue_WideWindow(t *testing.T) {
	q := fillQueue(0, 200) // 0..199, V(S)=200

	// 50 beyond V(S) is also 6 behind the front; with K=200 it can only be beyond
	acked, res := q.acknowledge(250, 200, 200)
	assert.Equal(t, ackInvalid, res)
	assert.Empty(t, acked)
	assert.Equal(t, 200, q.Len())

	acked, res = q.acknowledge(150, 200, 200)
	assert.Equal(t, ackValid, res)
	assert.Len(t, acked, 150)

	// Behind the front but within K of V(S)
	_, res = q.acknowledge(120, 200, 200)
	assert.Equal(t, ackStale, res)
	assert.Equal(t, 50, q.Len())
}

func TestSentQueue_TransmissionBookkeeping(t *testing.T) {
	q := fillQueue(0, 3)
	q.entries[1].transmissions = 4

	assert.Equal(t, 3, q.maxRetransmissions())
	assert.Equal(t, 3, q.entries[1].retransmissions())

	q.resetTransmissions()
	assert.Equal(t, 0, q.maxRetransmissions())

	purged := q.purge()
	assert.Len(t, purged, 3)
	assert.Equal(t, 0, q.Len())
}
