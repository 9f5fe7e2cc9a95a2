package transport

import (
	"net/url"
	"os"
	"slices"
	"strings"
)

// DisableEnv lists transports an operator has switched off, comma separated.
const DisableEnv = "REALTIME_DISABLE_TRANSPORTS"

// Capabilities records which transports this runtime can use.
type Capabilities struct {
	WebSocket bool `json:"websocket"`
	SSE       bool `json:"sse"`
	Polling   bool `json:"polling"`
}

// Supports reports whether kind is usable.
func (c Capabilities) Supports(kind Kind) bool {
	switch kind {
	case KindWebSocket:
		return c.WebSocket
	case KindSSE:
		return c.SSE
	case KindPolling:
		return c.Polling
	}
	return false
}

// Filter returns order without unsupported kinds, preserving order.
func (c Capabilities) Filter(order []Kind) []Kind {
	out := make([]Kind, 0, len(order))
	for _, k := range order {
		if c.Supports(k) {
			out = append(out, k)
		}
	}
	return out
}

// Probe describes the runtime environment capabilities are derived from.
type Probe struct {
	WebSocketURL string
	SSEURL       string
	PollURL      string
	Disabled     []Kind
}

// DetectCapabilities is pure: the same probe always yields the same result.
func DetectCapabilities(p Probe) Capabilities {
	enabled := func(k Kind) bool { return !slices.Contains(p.Disabled, k) }
	return Capabilities{
		WebSocket: enabled(KindWebSocket) && hasScheme(p.WebSocketURL, "ws", "wss", "http", "https"),
		SSE:       enabled(KindSSE) && hasScheme(p.SSEURL, "http", "https"),
		Polling:   enabled(KindPolling) && hasScheme(p.PollURL, "http", "https"),
	}
}

// ProbeFromEnv appends the kinds named in REALTIME_DISABLE_TRANSPORTS.
// Unknown names are ignored.
func ProbeFromEnv(p Probe) Probe {
	raw := os.Getenv(DisableEnv)
	if raw == "" {
		return p
	}
	for _, name := range strings.Split(raw, ",") {
		if k, err := ParseKind(name); err == nil && !slices.Contains(p.Disabled, k) {
			p.Disabled = append(p.Disabled, k)
		}
	}
	return p
}

func hasScheme(raw string, schemes ...string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return slices.Contains(schemes, u.Scheme)
}
