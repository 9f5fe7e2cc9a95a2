package bus

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Handler receives one envelope.
type Handler func(Envelope)

// subscription is one registered handler. Identity is the pointer.
type subscription struct {
	event    string // empty for wildcard
	wildcard bool

	seq     uint64
	handler Handler
}

// Bus multiplexes envelopes to subscribers. The zero value is not usable;
// call New.
type Bus struct {
	diag   Diagnostics
	logger *slog.Logger

	mu       sync.RWMutex
	seq      uint64
	byEvent  map[string][]*subscription
	wildcard []*subscription
}

// New creates a bus. A nil diag logs diagnostics through logger.
func New(diag Diagnostics, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if diag == nil {
		diag = LogDiagnostics(logger)
	}
	return &Bus{
		diag:    diag,
		logger:  logger,
		byEvent: make(map[string][]*subscription),
	}
}

// On registers h for one event name and returns an idempotent unsubscribe.
func (b *Bus) On(event string, h Handler) func() {
	b.mu.Lock()
	b.seq++
	sub := &subscription{event: event, seq: b.seq, handler: h}
	b.byEvent[event] = append(b.byEvent[event], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub) })
	}
}

// OnAny registers h for every event.
func (b *Bus) OnAny(h Handler) func() {
	b.mu.Lock()
	b.seq++
	sub := &subscription{wildcard: true, seq: b.seq, handler: h}
	b.wildcard = append(b.wildcard, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub) })
	}
}

// remove rebuilds the affected slice so in-flight snapshots are unaffected.
func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	without := func(subs []*subscription) []*subscription {
		out := make([]*subscription, 0, len(subs))
		for _, s := range subs {
			if s != sub {
				out = append(out, s)
			}
		}
		return out
	}

	if sub.wildcard {
		b.wildcard = without(b.wildcard)
		return
	}
	rest := without(b.byEvent[sub.event])
	if len(rest) == 0 {
		delete(b.byEvent, sub.event)
		return
	}
	b.byEvent[sub.event] = rest
}

// Dispatch delivers env to the handlers registered when the call started.
// Handlers added or removed during the dispatch take effect on the next one.
// Returns the number of handlers invoked.
func (b *Bus) Dispatch(env Envelope) int {
	b.mu.RLock()
	exact := b.byEvent[env.Event]
	targets := make([]*subscription, 0, len(exact)+len(b.wildcard))
	targets = append(targets, exact...)
	targets = append(targets, b.wildcard...)
	b.mu.RUnlock()

	if len(exact) > 0 && len(targets) > len(exact) {
		slices.SortFunc(targets, func(x, y *subscription) int { return cmp.Compare(x.seq, y.seq) })
	}

	for _, sub := range targets {
		b.invoke(sub, env)
	}
	return len(targets)
}

func (b *Bus) invoke(sub *subscription, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.diag.Report(Diagnostic{
				Kind:  DiagnosticHandlerPanic,
				Event: env.Event,
				Err:   fmt.Errorf("%w: %v", ErrHandlerPanic, r),
			})
		}
	}()
	sub.handler(env)
}

// Report forwards d to the bus diagnostics sink.
func (b *Bus) Report(d Diagnostic) {
	b.diag.Report(d)
}

// Clear drops every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byEvent = make(map[string][]*subscription)
	b.wildcard = nil
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := len(b.wildcard)
	for _, subs := range b.byEvent {
		n += len(subs)
	}
	return n
}
