package bus

import (
	"errors"
	"log/slog"
)

// ErrHandlerPanic wraps the value recovered from a panicking handler.
var ErrHandlerPanic = errors.New("handler panic")

// DiagnosticKind classifies a Diagnostic.
type DiagnosticKind string

const (
	DiagnosticMalformed     DiagnosticKind = "malformed_payload"
	DiagnosticHandlerPanic  DiagnosticKind = "handler_panic"
	DiagnosticObserverPanic DiagnosticKind = "observer_panic"
)

// Diagnostic describes something that was dropped or recovered instead of
// being surfaced to the host.
type Diagnostic struct {
	Kind      DiagnosticKind
	Event     string
	Transport string
	Err       error
	Raw       []byte
}

// Diagnostics receives diagnostics. Report must not block.
type Diagnostics interface {
	Report(d Diagnostic)
}

// DiagnosticsFunc adapts a function to Diagnostics.
type DiagnosticsFunc func(Diagnostic)

func (f DiagnosticsFunc) Report(d Diagnostic) { f(d) }

const maxLoggedPayload = 256

// LogDiagnostics returns a sink that logs each diagnostic at warn level.
func LogDiagnostics(logger *slog.Logger) Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return DiagnosticsFunc(func(d Diagnostic) {
		attrs := []any{"kind", d.Kind, "err", d.Err}
		if d.Event != "" {
			attrs = append(attrs, "event", d.Event)
		}
		if d.Transport != "" {
			attrs = append(attrs, "transport", d.Transport)
		}
		if len(d.Raw) > 0 {
			raw := d.Raw
			if len(raw) > maxLoggedPayload {
				raw = raw[:maxLoggedPayload]
			}
			attrs = append(attrs, "payload", string(raw), "payload_len", len(d.Raw))
		}
		logger.Warn("realtime diagnostic", attrs...)
	})
}

// Tee reports each diagnostic to every non-nil sink in order.
func Tee(sinks ...Diagnostics) Diagnostics {
	return DiagnosticsFunc(func(d Diagnostic) {
		for _, s := range sinks {
			if s != nil {
				s.Report(d)
			}
		}
	})
}
