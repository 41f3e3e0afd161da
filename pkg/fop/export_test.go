package fop

// probe runs fn on the event loop and waits for it, so tests can inspect
// loop-owned state
func (e *Engine) probe(fn func()) bool {
	done := make(chan struct{})
	if !e.events.Push(event{kind: evProbe, probe: func() {
		fn()
		close(done)
	}}) {
		return false
	}
	<-done
	return true
}
