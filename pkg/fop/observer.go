package fop

import (
	"sync"

	"avaneesh/cop1-go/pkg/internal/logger"
	"avaneesh/cop1-go/pkg/internal/queue"
)

// notification is one observer callback, applied to every registered observer
type notification func(o Observer)

// dispatcher fans notifications out to observers on its own goroutine, in the
// order the event loop posted them. The observer list is copy-on-write.
type dispatcher struct {
	observers []Observer
	mu        sync.Mutex

	mailbox *queue.Mailbox[notification]
	logger  logger.Logger
	done    chan struct{}
}

func newDispatcher(log logger.Logger) *dispatcher {
	return &dispatcher{
		mailbox: queue.NewMailbox[notification](),
		logger:  log,
		done:    make(chan struct{}),
	}
}

func (d *dispatcher) register(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.observers {
		if existing == o {
			return
		}
	}

	next := make([]Observer, 0, len(d.observers)+1)
	next = append(next, d.observers...)
	d.observers = append(next, o)
}

func (d *dispatcher) deregister(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := make([]Observer, 0, len(d.observers))
	for _, existing := range d.observers {
		if existing != o {
			next = append(next, existing)
		}
	}
	d.observers = next
}

func (d *dispatcher) snapshot() []Observer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.observers
}

func (d *dispatcher) post(n notification) {
	if !d.mailbox.Push(n) {
		d.logger.Debug("Dispatcher: notification dropped after close")
	}
}

// close stops accepting notifications; queued ones are still delivered
func (d *dispatcher) close() {
	d.mailbox.Close()
}

func (d *dispatcher) run() {
	defer close(d.done)

	for range d.mailbox.Ready() {
		for {
			n, ok := d.mailbox.Pop()
			if !ok {
				break
			}
			for _, o := range d.snapshot() {
				d.deliver(n, o)
			}
		}
		if d.mailbox.Closed() && d.mailbox.Len() == 0 {
			return
		}
	}
}

func (d *dispatcher) deliver(n notification, o Observer) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Dispatcher: observer panicked: %v", r)
		}
	}()
	n(o)
}
