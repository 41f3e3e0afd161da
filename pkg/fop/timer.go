package fop

import "time"

// t1Timer is the single-shot retransmission timer. It is only touched from the
// event loop; expiry crosses back into the loop through fire, tagged with a
// generation so a stale expiry after a restart or stop is ignored.
type t1Timer struct {
	timer *time.Timer
	gen   uint64
	fire  func(gen uint64)
}

func newT1Timer(fire func(gen uint64)) *t1Timer {
	return &t1Timer{fire: fire}
}

// start (re)arms the timer
func (t *t1Timer) start(d time.Duration) {
	t.stop()
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		t.fire(gen)
	})
}

// stop disarms the timer
func (t *t1Timer) stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

// running reports whether the timer is armed
func (t *t1Timer) running() bool {
	return t.timer != nil
}

// expired consumes an expiry event, returning false if it is stale
func (t *t1Timer) expired(gen uint64) bool {
	if t.timer == nil || gen != t.gen {
		return false
	}
	t.timer = nil
	return true
}
