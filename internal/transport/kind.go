package transport

import (
	"fmt"
	"strings"
)

// Kind names a transport.
type Kind string

const (
	KindNone      Kind = ""
	KindWebSocket Kind = "websocket"
	KindSSE       Kind = "sse"
	KindPolling   Kind = "polling"
)

// Kinds lists every known transport in default fallback order.
var Kinds = []Kind{KindWebSocket, KindSSE, KindPolling}

func (k Kind) String() string {
	if k == KindNone {
		return "none"
	}
	return string(k)
}

// Valid reports whether k is a known transport.
func (k Kind) Valid() bool {
	switch k {
	case KindWebSocket, KindSSE, KindPolling:
		return true
	}
	return false
}

// ParseKind accepts the canonical names plus "ws" and "poll".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "websocket", "ws":
		return KindWebSocket, nil
	case "sse", "eventsource":
		return KindSSE, nil
	case "polling", "poll":
		return KindPolling, nil
	}
	return KindNone, fmt.Errorf("%w: %q", ErrUnknownTransport, s)
}

// ParseKinds parses a comma-separated list, skipping blanks.
func ParseKinds(s string) ([]Kind, error) {
	var out []Kind
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := ParseKind(part)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
