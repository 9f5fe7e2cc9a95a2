package consumer

import (
	"context"

	"github.com/convoshop/realtime/internal/bus"
)

// Subscriber is the subscription surface of a connection.
type Subscriber interface {
	On(event string, h bus.Handler) func()
	OnAny(h bus.Handler) func()
}

// Bind subscribes h to event until ctx is done or the returned func is
// called.
func Bind(ctx context.Context, src Subscriber, event string, h bus.Handler) func() {
	return scoped(ctx, src.On(event, h))
}

// BindAny subscribes h to every event until ctx is done.
func BindAny(ctx context.Context, src Subscriber, h bus.Handler) func() {
	return scoped(ctx, src.OnAny(h))
}

func scoped(ctx context.Context, unsubscribe func()) func() {
	if ctx.Done() == nil {
		return unsubscribe
	}
	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}
}
