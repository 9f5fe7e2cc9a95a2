package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCapabilities(t *testing.T) {
	full := Probe{
		WebSocketURL: "wss://rt.example.com/realtime/ws",
		SSEURL:       "https://rt.example.com/realtime/sse",
		PollURL:      "https://rt.example.com/realtime/poll",
	}

	tests := []struct {
		name  string
		probe func(Probe) Probe
		want  Capabilities
	}{
		{
			name:  "all endpoints",
			probe: func(p Probe) Probe { return p },
			want:  Capabilities{WebSocket: true, SSE: true, Polling: true},
		},
		{
			name:  "websocket over http scheme",
			probe: func(p Probe) Probe { p.WebSocketURL = "http://rt.example.com/ws"; return p },
			want:  Capabilities{WebSocket: true, SSE: true, Polling: true},
		},
		{
			name:  "no websocket endpoint",
			probe: func(p Probe) Probe { p.WebSocketURL = ""; return p },
			want:  Capabilities{SSE: true, Polling: true},
		},
		{
			name:  "sse with ws scheme is unusable",
			probe: func(p Probe) Probe { p.SSEURL = "ws://rt.example.com/sse"; return p },
			want:  Capabilities{WebSocket: true, Polling: true},
		},
		{
			name:  "relative url",
			probe: func(p Probe) Probe { p.PollURL = "/realtime/poll"; return p },
			want:  Capabilities{WebSocket: true, SSE: true},
		},
		{
			name:  "operator disabled",
			probe: func(p Probe) Probe { p.Disabled = []Kind{KindWebSocket, KindSSE}; return p },
			want:  Capabilities{Polling: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.probe(full)
			got := DetectCapabilities(p)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, DetectCapabilities(p), "detection must be deterministic")
		})
	}
}

func TestCapabilities_Filter(t *testing.T) {
	caps := Capabilities{SSE: true, Polling: true}

	assert.Equal(t, []Kind{KindSSE, KindPolling}, caps.Filter(Kinds))
	assert.Equal(t, []Kind{KindPolling, KindSSE}, caps.Filter([]Kind{KindPolling, KindWebSocket, KindSSE}))
	assert.Empty(t, Capabilities{}.Filter(Kinds))
	assert.False(t, caps.Supports(KindWebSocket))
	assert.False(t, caps.Supports(Kind("carrier-pigeon")))
}

func TestProbeFromEnv(t *testing.T) {
	t.Setenv(DisableEnv, "ws, sse ,bogus")

	p := ProbeFromEnv(Probe{Disabled: []Kind{KindSSE}})
	assert.ElementsMatch(t, []Kind{KindSSE, KindWebSocket}, p.Disabled)

	t.Setenv(DisableEnv, "")
	assert.Empty(t, ProbeFromEnv(Probe{}).Disabled)
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"websocket": KindWebSocket,
		"WS":        KindWebSocket,
		"sse":       KindSSE,
		" polling ": KindPolling,
		"poll":      KindPolling,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("smoke-signal")
	assert.ErrorIs(t, err, ErrUnknownTransport)

	kinds, err := ParseKinds("sse,,polling")
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindSSE, KindPolling}, kinds)

	assert.Equal(t, "none", KindNone.String())
	assert.False(t, KindNone.Valid())
}
