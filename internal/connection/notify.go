package connection

import (
	"fmt"
	"sync"

	"github.com/convoshop/realtime/internal/bus"
	"github.com/convoshop/realtime/internal/transport"
)

type noteKind int

const (
	noteStatus noteKind = iota
	noteError
	noteEnvelope
	noteDiagnostic
)

// note is one queued notification. Notes are produced under c.mu in the
// order transitions happen and consumed by the dispatcher goroutine.
type note struct {
	kind      noteKind
	status    Status
	transport transport.Kind
	err       error
	env       bus.Envelope
	diag      bus.Diagnostic
}

type observer[F any] struct {
	id uint64
	fn F
}

// observers is an ordered, snapshot-on-read list of callbacks.
type observers[F any] struct {
	mu   sync.RWMutex
	next uint64
	list []observer[F]
}

func (o *observers[F]) add(fn F) func() {
	o.mu.Lock()
	o.next++
	id := o.next
	o.list = append(o.list, observer[F]{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			out := make([]observer[F], 0, len(o.list))
			for _, ob := range o.list {
				if ob.id != id {
					out = append(out, ob)
				}
			}
			o.list = out
		})
	}
}

func (o *observers[F]) snapshot() []observer[F] {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.list
}

func (o *observers[F]) clear() {
	o.mu.Lock()
	o.list = nil
	o.mu.Unlock()
}

func (o *observers[F]) len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.list)
}

// dispatch drains the notification queue until Close, then drops every
// subscription.
func (c *Connection) dispatch() {
	defer close(c.dispatchDone)

	for {
		n, ok := c.notes.Pop()
		if !ok {
			break
		}
		c.deliver(n)
	}

	c.bus.Clear()
	c.statusObs.clear()
	c.errorObs.clear()
}

func (c *Connection) deliver(n note) {
	switch n.kind {
	case noteStatus:
		for _, ob := range c.statusObs.snapshot() {
			c.guard("status", func() { ob.fn(n.status, n.transport) })
		}
	case noteError:
		for _, ob := range c.errorObs.snapshot() {
			c.guard("error", func() { ob.fn(n.err, n.transport) })
		}
	case noteEnvelope:
		c.bus.Dispatch(n.env)
	case noteDiagnostic:
		c.bus.Report(n.diag)
	}
}

// guard runs an observer, turning a panic into a diagnostic.
func (c *Connection) guard(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.bus.Report(bus.Diagnostic{
				Kind: bus.DiagnosticObserverPanic,
				Err:  fmt.Errorf("%s observer panic: %v", what, r),
			})
		}
	}()
	fn()
}
