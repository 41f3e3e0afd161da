package fop

import (
	"testing"

	"pgregory.net/rapid"

	"avaneesh/cop1-go/pkg/clcw"
	"avaneesh/cop1-go/pkg/frame"
)

// Random submissions and acknowledgements keep the window invariants
func TestEngine_WindowProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		config := testConfig()
		config.WindowSize = rapid.IntRange(1, 12).Draw(t, "window")

		h, err := newHarness(config)
		if err != nil {
			t.Fatalf("new engine: %v", err)
		}
		defer h.engine.Dispose()

		start := rapid.Uint8().Draw(t, "start")
		h.engine.Directive(nil, SetVS, int(start))
		h.engine.Directive(nil, InitADWithCLCW, 0)
		h.engine.CLCW(clcw.CLCW{COPInEffect: clcw.COP1, ReportValue: start})
		if !h.settle() || h.engine.Status().State != StateActive {
			t.Fatalf("engine not active")
		}

		acked := start
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			status := h.engine.Status()
			if rapid.Bool().Draw(t, "submit") {
				if status.QueueDepth < config.WindowSize {
					if err := h.engine.Transmit(frame.NewAD(0, nil), 0); err != nil {
						t.Fatalf("transmit with open window: %v", err)
					}
				}
			} else {
				// Any report value inside [acked, V(S)]
				outstanding := int(status.VS - acked)
				n := rapid.IntRange(0, outstanding).Draw(t, "ack")
				acked += uint8(n)
				h.engine.CLCW(clcw.CLCW{COPInEffect: clcw.COP1, ReportValue: acked})
			}
			if !h.settle() {
				t.Fatalf("engine did not settle")
			}

			status = h.engine.Status()
			if status.QueueDepth > config.WindowSize {
				t.Fatalf("queue depth %d exceeds window %d", status.QueueDepth, config.WindowSize)
			}
			if int(status.VS-acked) != status.QueueDepth {
				t.Fatalf("queue depth %d, expected %d outstanding", status.QueueDepth, status.VS-acked)
			}
		}

		// Every frame was sent once with consecutive sequence numbers
		seqs := h.sink.sequences()
		for i, seq := range seqs {
			if seq != start+uint8(i) {
				t.Fatalf("frame %d has N(S)=%d, expected %d", i, seq, start+uint8(i))
			}
		}

		// Acknowledged in order, none twice
		confirmed := h.obs.positiveTransfers()
		if len(confirmed) != int(acked-start) {
			t.Fatalf("%d frames confirmed, expected %d", len(confirmed), acked-start)
		}
		for i, seq := range confirmed {
			if seq != start+uint8(i) {
				t.Fatalf("confirmation %d for N(S)=%d, expected %d", i, seq, start+uint8(i))
			}
		}
	})
}

// Acknowledgement removes exactly the entries before N(R)
func TestSentQueue_AcknowledgeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.Uint8().Draw(t, "start")
		count := rapid.IntRange(0, MaxWindowSize).Draw(t, "count")
		window := rapid.IntRange(max(count, 1), MaxWindowSize).Draw(t, "window")
		nr := rapid.Uint8().Draw(t, "nr")

		q := fillQueue(start, count)
		vs := start + uint8(count)

		acked, result := q.acknowledge(nr, vs, window)

		offset := int(nr - start)
		switch {
		case offset <= count:
			if result != ackValid || len(acked) != offset || q.Len() != count-offset {
				t.Fatalf("nr=%d: result %d, acked %d, left %d", nr, result, len(acked), q.Len())
			}
			for i, entry := range acked {
				if entry.seq != start+uint8(i) {
					t.Fatalf("acked out of order: %d", entry.seq)
				}
			}
			if q.Len() > 0 && q.entries[0].seq != nr {
				t.Fatalf("front is %d, expected %d", q.entries[0].seq, nr)
			}
		default:
			if result == ackValid || len(acked) != 0 || q.Len() != count {
				t.Fatalf("nr=%d outside window must not remove entries", nr)
			}
			// Only values less than K behind V(S) may be taken as stale
			if stale := int(vs-nr) < window; stale != (result == ackStale) {
				t.Fatalf("nr=%d vs=%d K=%d: result %d", nr, vs, window, result)
			}
		}
	})
}

// V(S) advances by one per accepted frame modulo 256
func TestEngine_SequenceWrapProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h, err := newHarness(testConfig())
		if err != nil {
			t.Fatalf("new engine: %v", err)
		}
		defer h.engine.Dispose()

		vs := rapid.Uint8Range(240, 255).Draw(t, "vs")
		h.engine.Directive(nil, SetVS, int(vs))
		h.engine.Directive(nil, InitADWithCLCW, 0)
		h.engine.CLCW(clcw.CLCW{COPInEffect: clcw.COP1, ReportValue: vs})
		if !h.settle() {
			t.Fatalf("engine did not settle")
		}

		n := rapid.IntRange(1, 10).Draw(t, "frames")
		for i := 0; i < n; i++ {
			f := frame.NewAD(0, nil)
			if err := h.engine.Transmit(f, 0); err != nil {
				t.Fatalf("transmit: %v", err)
			}
			if f.Sequence != vs+uint8(i) {
				t.Fatalf("frame %d got N(S)=%d, expected %d", i, f.Sequence, vs+uint8(i))
			}
		}
		h.settle()
		if got := h.engine.Status().VS; got != vs+uint8(n) {
			t.Fatalf("V(S)=%d, expected %d", got, vs+uint8(n))
		}
	})
}
