package fop

import (
	"time"

	"avaneesh/cop1-go/pkg/frame"
)

// sentEntry is an AD frame waiting for acknowledgement
type sentEntry struct {
	frame         *frame.Frame
	seq           uint8
	transmissions int // 1 after the first send
	enqueued      time.Time
	lastSent      time.Time
}

// retransmissions returns how many times the frame was sent again
func (e *sentEntry) retransmissions() int {
	if e.transmissions == 0 {
		return 0
	}
	return e.transmissions - 1
}

// ackResult classifies a report value against the sent window
type ackResult int

const (
	ackValid   ackResult = iota // report value inside [lowest, V(S)]
	ackStale                    // report value behind the front, e.g. a reordered CLCW
	ackInvalid                  // report value beyond V(S)
)

// sentQueue holds unacknowledged AD frames ordered by sequence number.
// Sequence numbers are contiguous modulo 256 from the front entry.
type sentQueue struct {
	entries []*sentEntry
}

func newSentQueue() *sentQueue {
	return &sentQueue{}
}

func (q *sentQueue) Len() int {
	return len(q.entries)
}

func (q *sentQueue) push(e *sentEntry) {
	q.entries = append(q.entries, e)
}

// acknowledge removes every entry with sequence before nr (circular compare).
// vs is the next sequence number to be assigned, used when the queue is empty.
// A value behind the front entry is stale only while it lies less than window
// behind vs; anything further away is a report beyond V(S).
func (q *sentQueue) acknowledge(nr, vs uint8, window int) ([]*sentEntry, ackResult) {
	lowest := vs
	if len(q.entries) > 0 {
		lowest = q.entries[0].seq
	}

	n := int(nr - lowest)
	if n <= len(q.entries) {
		if n == 0 {
			return nil, ackValid
		}
		acked := make([]*sentEntry, n)
		copy(acked, q.entries[:n])
		q.entries = q.entries[n:]
		return acked, ackValid
	}

	if int(vs-nr) < window {
		return nil, ackStale
	}
	return nil, ackInvalid
}

// purge removes and returns every entry
func (q *sentQueue) purge() []*sentEntry {
	purged := q.entries
	q.entries = nil
	return purged
}

// maxRetransmissions returns the highest retransmission count in the queue
func (q *sentQueue) maxRetransmissions() int {
	highest := 0
	for _, e := range q.entries {
		if r := e.retransmissions(); r > highest {
			highest = r
		}
	}
	return highest
}

// resetTransmissions sets every entry back to a single transmission
func (q *sentQueue) resetTransmissions() {
	for _, e := range q.entries {
		e.transmissions = 1
	}
}
